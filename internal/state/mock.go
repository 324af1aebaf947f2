package state

import (
	"sort"
	"sync"
)

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)

// Mock is an in-memory test double for Manager.
type Mock struct {
	mu      sync.Mutex
	configs map[string]GuildConfig
	closed  bool

	// Err, when set, is returned by every call.
	Err error
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{configs: make(map[string]GuildConfig)}
}

func (m *Mock) GuildConfig(guildID string) (GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return DefaultGuildConfig(guildID), m.Err
	}
	if cfg, ok := m.configs[guildID]; ok {
		return cfg, nil
	}
	return DefaultGuildConfig(guildID), nil
}

func (m *Mock) SaveGuildConfig(cfg GuildConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.configs[cfg.GuildID] = cfg
	return nil
}

func (m *Mock) SetAutoplay(guildID string, enabled bool) error {
	cfg, err := m.GuildConfig(guildID)
	if err != nil {
		return err
	}
	cfg.Autoplay = enabled
	return m.SaveGuildConfig(cfg)
}

func (m *Mock) DeleteGuildConfig(guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, guildID)
	return m.Err
}

func (m *Mock) ListGuildConfigs() ([]GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]GuildConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GuildID < result[j].GuildID })
	return result, m.Err
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
