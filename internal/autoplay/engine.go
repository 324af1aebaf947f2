// Package autoplay picks the next track when a guild's queue runs dry, using
// the platform radio mix first and similar-artist keyword searches second.
package autoplay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/config"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
)

// Engine holds the per-guild recommendation state. All of it is soft state
// and is lost on restart, except the enabled flag kept in the ConfigStore.
type Engine struct {
	cfg     config.AutoplayConfig
	store   ConfigStore
	similar SimilarArtistSource
	logger  *log.Entry
	cache   *similarCache
	shuffle func(n int, swap func(i, j int))

	mu         sync.Mutex
	recent     map[string][]RecentTrackEntry
	seeds      map[string]SeedInfo
	inProgress map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.cache.now = now }
}

// WithShuffle overrides the shuffle used to randomize candidates.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

// New creates an engine. similar may be nil when no Last.fm key is
// configured; keyword search then relies on the seed artist and the
// fallback table.
func New(cfg config.AutoplayConfig, store ConfigStore, similar SimilarArtistSource, logger *log.Entry, opts ...Option) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	e := &Engine{
		cfg:        cfg,
		store:      store,
		similar:    similar,
		logger:     logger,
		cache:      newSimilarCache(cfg.CacheTTL, time.Now),
		shuffle:    rand.Shuffle,
		recent:     make(map[string][]RecentTrackEntry),
		seeds:      make(map[string]SeedInfo),
		inProgress: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsEnabled reports whether autoplay is on for the guild. Store errors read
// as disabled.
func (e *Engine) IsEnabled(guildID string) bool {
	cfg, err := e.store.GuildConfig(guildID)
	if err != nil {
		e.logger.WithError(err).WithField("guild", guildID).Warn("read guild config")
		return false
	}
	return cfg.Autoplay
}

// SetEnabled persists the autoplay flag. Disabling forgets the guild's
// history.
func (e *Engine) SetEnabled(guildID string, enabled bool) error {
	if err := e.store.SetAutoplay(guildID, enabled); err != nil {
		return fmt.Errorf("set autoplay: %w", err)
	}
	if !enabled {
		e.mu.Lock()
		delete(e.recent, guildID)
		e.mu.Unlock()
	}
	return nil
}

// Toggle flips the autoplay flag and returns the new value.
func (e *Engine) Toggle(guildID string) (bool, error) {
	enabled := !e.IsEnabled(guildID)
	if err := e.SetEnabled(guildID, enabled); err != nil {
		return !enabled, err
	}
	return enabled, nil
}

// ResetSeed forgets the guild's history after a manual request and, if info
// is given, makes it the seed of the next recommendation.
func (e *Engine) ResetSeed(guildID string, info *SeedInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.recent, guildID)
	if info != nil {
		e.seeds[guildID] = *info
		e.logger.WithFields(log.Fields{
			"guild": guildID,
			"title": info.Title,
		}).Debug("preferred seed set")
	}
}

// ClearState drops the guild's history and pending seed.
func (e *Engine) ClearState(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.recent, guildID)
	delete(e.seeds, guildID)
}

// tryAcquire marks the guild busy. It never blocks.
func (e *Engine) tryAcquire(guildID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inProgress[guildID]; busy {
		return false
	}
	e.inProgress[guildID] = struct{}{}
	return true
}

func (e *Engine) release(guildID string) {
	e.mu.Lock()
	delete(e.inProgress, guildID)
	e.mu.Unlock()
}

// HandleAutoplay queues a recommendation after lastTrack when autoplay is
// enabled and the player has nothing left. It reports whether a track was
// queued. Failures are logged, never returned.
func (e *Engine) HandleAutoplay(ctx context.Context, p Player, lastTrack *playback.Track, requester string) (queued bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("autoplay panicked")
			queued = false
		}
	}()

	guildID := p.GuildID()
	if !e.IsEnabled(guildID) {
		return false
	}
	if p.QueueLen() > 0 {
		return false
	}
	if p.Current() != nil && p.Playing() {
		return false
	}
	if !e.tryAcquire(guildID) {
		e.logger.WithField("guild", guildID).Debug("autoplay already in progress")
		return false
	}
	defer e.release(guildID)

	logger := e.logger.WithField("guild", guildID)
	next := e.FindNextTrack(ctx, p, lastTrack, requester)
	if next == nil {
		logger.Info("no suitable autoplay track found")
		return false
	}
	if ctx.Err() != nil {
		// The player went away while we were searching.
		return false
	}
	next.Autoplay = true
	p.Add(*next)

	if !p.Playing() && !p.Paused() {
		if err := p.Play(ctx); err != nil {
			logger.WithError(err).Error("start autoplay track")
			return false
		}
	}
	logger.WithFields(log.Fields{
		"title":  next.Info.Title,
		"author": next.Info.Author,
	}).Info("autoplay queued track")
	return true
}

// FindNextTrack picks a track to follow lastTrack, or nil when nothing
// suitable turns up.
func (e *Engine) FindNextTrack(ctx context.Context, p Player, lastTrack *playback.Track, requester string) *playback.Track {
	if lastTrack == nil {
		return nil
	}
	guildID := p.GuildID()
	logger := e.logger.WithField("guild", guildID)

	seed := e.resolveSeed(guildID, lastTrack)
	e.AddToRecentTracks(guildID, lastTrack.Track)

	seedArtist := ExtractArtistName(seed.Title, seed.Author)
	looping := isArtistOverplayed(e.RecentTracks(guildID), seedArtist, e.cfg.LoopWindow, e.cfg.MaxSameArtistInRow)
	if looping {
		logger.WithField("artist", seedArtist).Info("artist loop detected, forcing variety")
	}

	pick := func(candidates []lavalink.Track) *playback.Track {
		history := e.RecentTracks(guildID)
		for _, c := range candidates {
			if looping && ExtractArtistName(c.Info.Title, c.Info.Author) == seedArtist {
				continue
			}
			if trackSuitable(c, history, lastTrack, e.cfg.MinTrackLength, e.cfg.MaxTrackLength) {
				return &playback.Track{Track: c, Requester: requester}
			}
		}
		return nil
	}

	var node Searcher = p.Node()

	if node.Connected() && seed.Identifier != "" {
		mix := e.radioMix(ctx, node, seed.Identifier)
		candidates := make([]lavalink.Track, 0, len(mix))
		for _, t := range mix {
			if t.Info.Identifier != seed.Identifier && t.Info.Identifier != lastTrack.Identifier() {
				candidates = append(candidates, t)
			}
		}
		e.shuffleTracks(candidates)
		if t := pick(candidates); t != nil {
			logger.WithField("title", t.Info.Title).Debug("picked from radio mix")
			return t
		}
	}

	for _, q := range e.BuildSearchQueries(ctx, seed, guildID) {
		results := e.search(ctx, node, e.cfg.SearchPrefix+":"+q)
		results = results[:min(len(results), e.cfg.SearchResultsConsidered)]
		e.shuffleTracks(results)
		if t := pick(results); t != nil {
			logger.WithFields(log.Fields{"title": t.Info.Title, "query": q}).Debug("picked from search")
			return t
		}
	}
	return nil
}

// resolveSeed consumes the guild's preferred seed, or falls back to
// lastTrack. A human-queued lastTrack starts a fresh history.
func (e *Engine) resolveSeed(guildID string, lastTrack *playback.Track) SeedInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seed, ok := e.seeds[guildID]; ok {
		delete(e.seeds, guildID)
		return seed
	}
	if !lastTrack.Autoplay {
		delete(e.recent, guildID)
	}
	return SeedFromTrack(lastTrack.Track)
}

// RadioMixURL returns the YouTube mix playlist seeded by a video id.
func RadioMixURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID + "&list=RD" + videoID
}

func (e *Engine) radioMix(ctx context.Context, node Searcher, videoID string) []lavalink.Track {
	return e.search(ctx, node, RadioMixURL(videoID))
}

// search resolves identifier within SearchTimeout. Errors read as no results.
func (e *Engine) search(ctx context.Context, node Searcher, identifier string) []lavalink.Track {
	tracks, err := withTimeout(ctx, e.cfg.SearchTimeout, func(ctx context.Context) ([]lavalink.Track, error) {
		return node.Search(ctx, identifier)
	})
	if err != nil {
		e.logger.WithError(err).WithField("identifier", identifier).Info("autoplay search failed")
		return nil
	}
	return tracks
}

func (e *Engine) shuffleTracks(tracks []lavalink.Track) {
	e.shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}
