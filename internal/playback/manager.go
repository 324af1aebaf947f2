package playback

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

// Autoplayer picks a track when a guild's queue runs dry.
type Autoplayer interface {
	HandleAutoplay(ctx context.Context, p *Player, lastTrack *Track, requester string) bool
}

// AutoplayFunc adapts a function to Autoplayer.
type AutoplayFunc func(ctx context.Context, p *Player, lastTrack *Track, requester string) bool

// HandleAutoplay calls f.
func (f AutoplayFunc) HandleAutoplay(ctx context.Context, p *Player, lastTrack *Track, requester string) bool {
	return f(ctx, p, lastTrack, requester)
}

// Manager owns the per-guild players and reacts to node events.
type Manager struct {
	node     Node
	logger   *log.Entry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onRemove func(guildID string)

	mu         sync.RWMutex
	closed     bool
	players    map[string]*Player
	autoplayer Autoplayer
	selfID     string // requester recorded on autoplay picks

	subsMu sync.RWMutex
	subs   []*Subscription
}

// NewManager creates a manager for players on node.
func NewManager(node Node, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		node:    node,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		players: make(map[string]*Player),
	}
}

// SetAutoplayer installs the handler called when a queue runs dry.
func (m *Manager) SetAutoplayer(a Autoplayer) {
	m.mu.Lock()
	m.autoplayer = a
	m.mu.Unlock()
}

// SetSelfID sets the bot's own user id, credited as the requester of
// autoplay picks.
func (m *Manager) SetSelfID(id string) {
	m.mu.Lock()
	m.selfID = id
	m.mu.Unlock()
}

// OnRemove registers a hook called after a guild's player is removed.
func (m *Manager) OnRemove(fn func(guildID string)) {
	m.mu.Lock()
	m.onRemove = fn
	m.mu.Unlock()
}

// Get returns the guild's player, or nil.
func (m *Manager) Get(guildID string) *Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[guildID]
}

// GetOrCreate returns the guild's player, creating it if needed.
func (m *Manager) GetOrCreate(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[guildID]
	if !ok {
		p = newPlayer(m.ctx, guildID, m.node)
		m.players[guildID] = p
	}
	return p
}

// Remove destroys the guild's player on the node and forgets it.
func (m *Manager) Remove(ctx context.Context, guildID string) error {
	m.mu.Lock()
	p, ok := m.players[guildID]
	delete(m.players, guildID)
	hook := m.onRemove
	m.mu.Unlock()
	if !ok {
		return nil
	}

	p.remove()
	if hook != nil {
		hook(guildID)
	}
	err := m.node.DestroyPlayer(ctx, guildID)
	if errors.Is(err, lavalink.ErrNotConnected) {
		return nil
	}
	return err
}

// Skip skips the guild's current track. When the queue is empty, the
// skipped track is handed to the autoplayer, which runs on the manager's
// context rather than ctx. Returns the started track.
func (m *Manager) Skip(ctx context.Context, guildID string) (*Track, error) {
	p := m.Get(guildID)
	if p == nil {
		return nil, ErrNothingPlaying
	}
	skipped, started, err := p.Skip(ctx)
	if err != nil {
		return nil, err
	}
	if started == nil && skipped != nil {
		if !m.begin() {
			return nil, nil
		}
		defer m.wg.Done()
		if !m.runAutoplay(p, skipped) {
			m.emitIdle(p)
		}
		return p.Current(), nil
	}
	return started, nil
}

// begin registers background work, unless the manager is closed.
func (m *Manager) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}

// Subscribe creates a new event subscription.
func (m *Manager) Subscribe() *Subscription {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	sub := newSubscription()
	m.subs = append(m.subs, sub)
	return sub
}

func (m *Manager) emitTrack(e TrackChange) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, s := range m.subs {
		s.sendTrack(e)
	}
}

func (m *Manager) emitError(e ErrorEvent) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, s := range m.subs {
		s.sendError(e)
	}
}

func (m *Manager) emitIdle(p *Player) {
	if p.Current() != nil || p.QueueLen() > 0 {
		return
	}
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for _, s := range m.subs {
		s.sendIdle(IdleEvent{GuildID: p.GuildID()})
	}
}

// Close stops background work and closes subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()

	m.subsMu.Lock()
	for _, sub := range m.subs {
		sub.close()
	}
	m.subs = nil
	m.subsMu.Unlock()
}

// HandleEvent is the node listener. Track end handling may call out to the
// autoplayer and runs off the node's read goroutine.
func (m *Manager) HandleEvent(ev lavalink.Event) {
	switch e := ev.(type) {
	case lavalink.TrackStartEvent:
		p := m.Get(e.Guild)
		if p == nil {
			return
		}
		prev, cur := p.trackStarted(e.Track)
		m.emitTrack(TrackChange{GuildID: e.Guild, Previous: prev, Current: cur})

	case lavalink.TrackEndEvent:
		p := m.Get(e.Guild)
		if p == nil || !m.begin() {
			return
		}
		go func() {
			defer m.wg.Done()
			m.onTrackEnd(p, e)
		}()

	case lavalink.TrackExceptionEvent:
		m.logger.WithFields(log.Fields{
			"guild":    e.Guild,
			"track":    e.Track.Info.Title,
			"severity": e.Exception.Severity,
		}).Warn("track exception: " + e.Exception.Message)
		m.emitError(ErrorEvent{GuildID: e.Guild, Operation: "play", Track: e.Track.Info.Title, Err: &e.Exception})

	case lavalink.TrackStuckEvent:
		fields := log.Fields{
			"guild":     e.Guild,
			"track":     e.Track.Info.Title,
			"threshold": e.ThresholdMs,
		}
		if p := m.Get(e.Guild); p != nil {
			fields["state"] = p.State()
		}
		m.logger.WithFields(fields).Warn("track stuck")

	case lavalink.WebSocketClosedEvent:
		m.logger.WithFields(log.Fields{
			"guild":     e.Guild,
			"code":      e.Code,
			"by_remote": e.ByRemote,
		}).Info("voice websocket closed: " + e.Reason)
	}
}

func (m *Manager) onTrackEnd(p *Player, e lavalink.TrackEndEvent) {
	ended := p.trackEnded(e.Track)
	if ended == nil || !e.Reason.MayStartNext() {
		return
	}

	if p.QueueLen() > 0 {
		ctx, cancel := m.playerContext(p)
		defer cancel()
		if err := p.Play(ctx); err != nil && !errors.Is(err, ErrPlayerRemoved) {
			m.logger.WithError(err).WithField("guild", p.GuildID()).Error("advance queue")
			m.emitError(ErrorEvent{GuildID: p.GuildID(), Operation: "advance", Err: err})
		}
		return
	}
	if !m.runAutoplay(p, ended) {
		m.emitIdle(p)
	}
}

// playerContext returns a context cancelled when either the manager closes
// or p is removed.
func (m *Manager) playerContext(p *Player) (context.Context, context.CancelFunc) {
	return context.WithCancel(p.ctx)
}

func (m *Manager) runAutoplay(p *Player, last *Track) bool {
	m.mu.RLock()
	a, self := m.autoplayer, m.selfID
	m.mu.RUnlock()
	if a == nil {
		return false
	}
	ctx, cancel := m.playerContext(p)
	defer cancel()
	return a.HandleAutoplay(ctx, p, last, self)
}
