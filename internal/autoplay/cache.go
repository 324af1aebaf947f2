package autoplay

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	artists   []string
	fetchedAt time.Time
}

// similarCache keeps similar-artist lookups in memory for ttl.
type similarCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

func newSimilarCache(ttl time.Duration, now func() time.Time) *similarCache {
	return &similarCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// isExpired checks if a cached entry is expired.
func (c *similarCache) isExpired(e cacheEntry, now time.Time) bool {
	return now.Sub(e.fetchedAt) >= c.ttl
}

// Get returns cached similar artists if not expired.
func (c *similarCache) Get(artist string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[artist]
	if !ok || c.isExpired(e, c.now()) {
		return nil, false
	}
	return e.artists, true
}

// Set caches similar artists for an artist.
func (c *similarCache) Set(artist string, artists []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[artist] = cacheEntry{artists: artists, fetchedAt: c.now()}
}

// CleanExpired removes expired entries and returns how many were removed.
func (c *similarCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if c.isExpired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired ones included.
func (c *similarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunCacheSweeper drops stale similar-artist entries every SweepInterval
// until ctx is done.
func (e *Engine) RunCacheSweeper(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.cache.CleanExpired(); n > 0 {
				e.logger.WithField("removed", n).Debug("swept similar-artist cache")
			}
		}
	}
}
