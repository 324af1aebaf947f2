package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Database string `koanf:"database"`  // SQLite path, empty means the XDG data dir
	LogLevel string `koanf:"log_level"` // logrus level name (default: "info")

	Discord DiscordConfig `koanf:"discord"`

	// Lavalink audio node
	Lavalink LavalinkConfig `koanf:"lavalink"`

	// Last.fm similar-artist lookups (autoplay keyword strategy)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Autoplay tuning
	Autoplay AutoplayConfig `koanf:"autoplay"`
}

// DiscordConfig holds the gateway credentials and voice presence settings.
type DiscordConfig struct {
	Token   string `koanf:"token"`
	AppID   string `koanf:"app_id"`
	GuildID string `koanf:"guild_id"` // register commands on one guild only (development)

	IdleTimeout         time.Duration `koanf:"idle_timeout"`          // leave after the queue ran out (default: 5m)
	EmptyChannelTimeout time.Duration `koanf:"empty_channel_timeout"` // leave once no listener is left (default: 30s)
	MaxVolume           int           `koanf:"max_volume"`            // /volume upper bound (default: 100)
}

// LavalinkConfig holds the audio node connection details.
type LavalinkConfig struct {
	Name     string `koanf:"name"` // node name used in logs (default: "main-node")
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	Secure   bool   `koanf:"secure"`
}

// LastfmConfig holds Last.fm API credentials.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// AutoplayConfig holds autoplay recommendation settings.
type AutoplayConfig struct {
	MaxRecentTracks         int           `koanf:"max_recent_tracks"`         // history ring size (default: 30)
	MaxRecentArtists        int           `koanf:"max_recent_artists"`        // artists avoided when picking similar ones (default: 10)
	MaxSameArtistInRow      int           `koanf:"max_same_artist_in_row"`    // looping threshold (default: 2)
	LoopWindow              int           `koanf:"loop_window"`               // entries inspected for looping (default: 5)
	SeedRepeatWindow        int           `koanf:"seed_repeat_window"`        // skip the seed query if the seed artist is this recent (default: 3)
	SearchTimeout           time.Duration `koanf:"search_timeout"`            // default: 8s
	LastfmTimeout           time.Duration `koanf:"lastfm_timeout"`            // default: 3s
	CacheTTL                time.Duration `koanf:"cache_ttl"`                 // default: 24h
	SweepInterval           time.Duration `koanf:"sweep_interval"`            // default: 1h
	SimilarArtistsLimit     int           `koanf:"similar_artists_limit"`     // requested from Last.fm (default: 20)
	SimilarArtistsKept      int           `koanf:"similar_artists_kept"`      // kept per lookup (default: 15)
	SearchResultsConsidered int           `koanf:"search_results_considered"` // per keyword query (default: 15)
	MaxSimilarQueries       int           `koanf:"max_similar_queries"`       // default: 4
	MinTrackLength          time.Duration `koanf:"min_track_length"`          // default: 1m
	MaxTrackLength          time.Duration `koanf:"max_track_length"`          // default: 12m
	SearchPrefix            string        `koanf:"search_prefix"`             // default: "ytsearch"

	// Static similar-artist table consulted when Last.fm has nothing,
	// keyed by lower-cased artist name.
	FallbackSimilar map[string][]string `koanf:"fallback_similar"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg, os.LookupEnv)

	if cfg.Database != "" {
		cfg.Database = expandPath(cfg.Database)
	}
	cfg.Lavalink.Host = strings.TrimSuffix(cfg.Lavalink.Host, "/")

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/wavebot/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wavebot", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// applyEnv overrides secrets and connection details from the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("DISCORD_TOKEN", &cfg.Discord.Token)
	str("DISCORD_APP_ID", &cfg.Discord.AppID)
	str("DISCORD_GUILD_ID", &cfg.Discord.GuildID)
	str("LAVALINK_HOST", &cfg.Lavalink.Host)
	str("LAVALINK_PASSWORD", &cfg.Lavalink.Password)
	str("LASTFM_API_KEY", &cfg.Lastfm.APIKey)
	str("LASTFM_API_SECRET", &cfg.Lastfm.APISecret)
	str("WAVEBOT_DB", &cfg.Database)
	str("WAVEBOT_LOG_LEVEL", &cfg.LogLevel)

	if v, ok := lookup("LAVALINK_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Lavalink.Port = port
		}
	}
	if v, ok := lookup("LAVALINK_SECURE"); ok {
		cfg.Lavalink.Secure = strings.EqualFold(strings.TrimSpace(v), "true")
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("missing discord token (DISCORD_TOKEN)"))
	}
	if c.Discord.AppID == "" {
		errs = append(errs, errors.New("missing discord application id (DISCORD_APP_ID)"))
	}
	if c.Lavalink.Password == "" {
		errs = append(errs, errors.New("missing lavalink password (LAVALINK_PASSWORD)"))
	}
	return errors.Join(errs...)
}

// HasLastfmConfig returns true if Last.fm lookups are configured.
// Only the API key is needed for artist.getSimilar.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != ""
}

// GetDiscordConfig returns the Discord configuration with defaults applied.
func (c *Config) GetDiscordConfig() DiscordConfig {
	cfg := c.Discord
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.EmptyChannelTimeout <= 0 {
		cfg.EmptyChannelTimeout = 30 * time.Second
	}
	if cfg.MaxVolume <= 0 {
		cfg.MaxVolume = 100
	}
	cfg.MaxVolume = min(cfg.MaxVolume, 1000)
	return cfg
}

// GetLavalinkConfig returns the node configuration with defaults applied.
func (c *Config) GetLavalinkConfig() LavalinkConfig {
	cfg := c.Lavalink
	if cfg.Name == "" {
		cfg.Name = "main-node"
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 2333
	}
	return cfg
}

// Address returns host:port of the node.
func (l LavalinkConfig) Address() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// GetAutoplayConfig returns the autoplay configuration with defaults applied.
func (c *Config) GetAutoplayConfig() AutoplayConfig {
	cfg := c.Autoplay

	// History and variety
	if cfg.MaxRecentTracks <= 0 {
		cfg.MaxRecentTracks = 30
	}
	if cfg.MaxRecentArtists <= 0 {
		cfg.MaxRecentArtists = 10
	}
	if cfg.MaxSameArtistInRow <= 0 {
		cfg.MaxSameArtistInRow = 2
	}
	if cfg.LoopWindow <= 0 {
		cfg.LoopWindow = 5
	}
	if cfg.SeedRepeatWindow <= 0 {
		cfg.SeedRepeatWindow = 3
	}

	// Network deadlines
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 8 * time.Second
	}
	if cfg.LastfmTimeout <= 0 {
		cfg.LastfmTimeout = 3 * time.Second
	}

	// Similar-artist cache
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}

	// Candidate generation
	if cfg.SimilarArtistsLimit <= 0 {
		cfg.SimilarArtistsLimit = 20
	}
	if cfg.SimilarArtistsKept <= 0 || cfg.SimilarArtistsKept > cfg.SimilarArtistsLimit {
		cfg.SimilarArtistsKept = min(15, cfg.SimilarArtistsLimit)
	}
	if cfg.SearchResultsConsidered <= 0 {
		cfg.SearchResultsConsidered = 15
	}
	if cfg.MaxSimilarQueries <= 0 {
		cfg.MaxSimilarQueries = 4
	}

	// Suitability
	if cfg.MinTrackLength <= 0 {
		cfg.MinTrackLength = time.Minute
	}
	if cfg.MaxTrackLength <= 0 || cfg.MaxTrackLength < cfg.MinTrackLength {
		cfg.MaxTrackLength = 12 * time.Minute
	}
	if cfg.SearchPrefix == "" {
		cfg.SearchPrefix = "ytsearch"
	}

	if len(cfg.FallbackSimilar) > 0 {
		normalized := make(map[string][]string, len(cfg.FallbackSimilar))
		for artist, similar := range cfg.FallbackSimilar {
			key := strings.ToLower(strings.TrimSpace(artist))
			if key != "" && len(similar) > 0 {
				normalized[key] = similar
			}
		}
		cfg.FallbackSimilar = normalized
	}

	return cfg
}
