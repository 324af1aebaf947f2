package state

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	GuildConfig(guildID string) (GuildConfig, error)
	SaveGuildConfig(cfg GuildConfig) error
	SetAutoplay(guildID string, enabled bool) error
	DeleteGuildConfig(guildID string) error
	ListGuildConfigs() ([]GuildConfig, error)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
