package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/wavebot/internal/db"
)

// Defaults for guilds that never changed a setting.
const (
	DefaultVolume         = 60
	DefaultAnnounceTracks = true
)

// GuildConfig holds the persisted settings of one guild.
type GuildConfig struct {
	GuildID        string
	Autoplay       bool
	DefaultVolume  int
	AnnounceTracks bool
}

// DefaultGuildConfig returns the settings used for unknown guilds.
func DefaultGuildConfig(guildID string) GuildConfig {
	return GuildConfig{
		GuildID:        guildID,
		DefaultVolume:  DefaultVolume,
		AnnounceTracks: DefaultAnnounceTracks,
	}
}

// GuildConfig returns the stored settings merged over the defaults.
func (m *Manager) GuildConfig(guildID string) (GuildConfig, error) {
	cfg := DefaultGuildConfig(guildID)
	if guildID == "" {
		return cfg, nil
	}

	var autoplay, announce int
	err := m.db.QueryRow(`
		SELECT autoplay, default_volume, announce_tracks
		FROM guild_config WHERE guild_id = ?
	`, guildID).Scan(&autoplay, &cfg.DefaultVolume, &announce)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("load guild config %s: %w", guildID, err)
	}

	cfg.Autoplay = autoplay != 0
	cfg.AnnounceTracks = announce != 0
	return cfg, nil
}

// SaveGuildConfig upserts the whole settings row.
func (m *Manager) SaveGuildConfig(cfg GuildConfig) error {
	if cfg.GuildID == "" {
		return errors.New("save guild config: empty guild id")
	}
	return db.WithTx(context.Background(), m.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO guild_config (guild_id, autoplay, default_volume, announce_tracks, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(guild_id) DO UPDATE SET
				autoplay = excluded.autoplay,
				default_volume = excluded.default_volume,
				announce_tracks = excluded.announce_tracks,
				updated_at = excluded.updated_at
		`, cfg.GuildID, db.BoolToInt(cfg.Autoplay), cfg.DefaultVolume,
			db.BoolToInt(cfg.AnnounceTracks), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("save guild config %s: %w", cfg.GuildID, err)
		}
		return nil
	})
}

// SetAutoplay updates only the autoplay flag, keeping the other settings.
func (m *Manager) SetAutoplay(guildID string, enabled bool) error {
	cfg, err := m.GuildConfig(guildID)
	if err != nil {
		return err
	}
	cfg.Autoplay = enabled
	return m.SaveGuildConfig(cfg)
}

// DeleteGuildConfig forgets a guild, reverting it to defaults.
func (m *Manager) DeleteGuildConfig(guildID string) error {
	_, err := m.db.Exec(`DELETE FROM guild_config WHERE guild_id = ?`, guildID)
	return err
}

// ListGuildConfigs returns every stored guild, ordered by id.
func (m *Manager) ListGuildConfigs() ([]GuildConfig, error) {
	rows, err := m.db.Query(`
		SELECT guild_id, autoplay, default_volume, announce_tracks
		FROM guild_config ORDER BY guild_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GuildConfig
	for rows.Next() {
		var cfg GuildConfig
		var autoplay, announce int
		if err := rows.Scan(&cfg.GuildID, &autoplay, &cfg.DefaultVolume, &announce); err != nil {
			return nil, err
		}
		cfg.Autoplay = autoplay != 0
		cfg.AnnounceTracks = announce != 0
		result = append(result, cfg)
	}
	return result, rows.Err()
}
