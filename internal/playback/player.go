package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

var (
	// ErrQueueEmpty is returned by Play when there is nothing to start.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrNothingPlaying is returned by Pause when no track is loaded.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrPlayerRemoved is returned by Play once the player was removed.
	ErrPlayerRemoved = errors.New("player was removed")
)

// Node is the part of a Lavalink node a player drives.
type Node interface {
	Connected() bool
	Search(ctx context.Context, identifier string) ([]lavalink.Track, error)
	UpdatePlayer(ctx context.Context, guildID string, update lavalink.PlayerUpdate) error
	DestroyPlayer(ctx context.Context, guildID string) error
}

var _ Node = (*lavalink.Node)(nil)

// Player is the playback state of one guild.
type Player struct {
	guildID string
	node    Node

	// ctx is cancelled when the player is removed or its manager closes.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	removed     bool
	volume      int
	hasVolume   bool
	queue       queue
	current     *Track
	state       State
	voice       lavalink.VoiceState
	textChannel string
}

// NewPlayer creates an idle player for guildID.
func NewPlayer(guildID string, node Node) *Player {
	return newPlayer(context.Background(), guildID, node)
}

func newPlayer(parent context.Context, guildID string, node Node) *Player {
	ctx, cancel := context.WithCancel(parent)
	return &Player{guildID: guildID, node: node, ctx: ctx, cancel: cancel}
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Node returns the node the player is bound to.
func (p *Player) Node() Node { return p.node }

// QueueLen returns the number of upcoming tracks.
func (p *Player) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Queue returns a copy of the upcoming tracks.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Tracks()
}

// Current returns a copy of the loaded track, or nil.
func (p *Player) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	t := *p.current
	return &t
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Playing reports whether a track is playing and not paused.
func (p *Player) Playing() bool { return p.State() == StatePlaying }

// Paused reports whether playback is paused.
func (p *Player) Paused() bool { return p.State() == StatePaused }

// TextChannel returns the channel used for announcements.
func (p *Player) TextChannel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textChannel
}

// SetTextChannel sets the channel used for announcements.
func (p *Player) SetTextChannel(id string) {
	p.mu.Lock()
	p.textChannel = id
	p.mu.Unlock()
}

// Volume returns the player volume and whether one was set.
func (p *Player) Volume() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, p.hasVolume
}

// SetInitialVolume sets the volume sent with the next track unless a volume
// was already set.
func (p *Player) SetInitialVolume(v int) {
	p.mu.Lock()
	if !p.hasVolume {
		p.volume, p.hasVolume = v, true
	}
	p.mu.Unlock()
}

// SetVolume changes the volume, right away when a track is loaded.
func (p *Player) SetVolume(ctx context.Context, v int) error {
	p.mu.Lock()
	p.volume, p.hasVolume = v, true
	loaded := p.current != nil
	p.mu.Unlock()

	if !loaded {
		return nil
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, lavalink.PlayerUpdate{Volume: &v}); err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	return nil
}

// Add appends tracks to the end of the queue. Removed players ignore it.
func (p *Player) Add(tracks ...Track) {
	p.mu.Lock()
	if !p.removed {
		p.queue.Add(tracks...)
	}
	p.mu.Unlock()
}

// Enqueue inserts user-requested tracks ahead of any autoplay picks and
// returns the 1-based queue position of the first one.
func (p *Player) Enqueue(tracks ...Track) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Enqueue(tracks...) + 1
}

// Play starts the next queued track if nothing is loaded. It is a no-op
// while a track is loaded.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.removed {
		p.mu.Unlock()
		return ErrPlayerRemoved
	}
	if p.current != nil {
		p.mu.Unlock()
		return nil
	}
	next := p.queue.Pop()
	if next == nil {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	p.current = next
	p.state = StatePlaying
	p.mu.Unlock()

	return p.start(ctx, next)
}

func (p *Player) start(ctx context.Context, t *Track) error {
	update := lavalink.PlayTrack(t.Encoded)
	p.mu.Lock()
	if p.hasVolume {
		v := p.volume
		update.Volume = &v
	}
	p.mu.Unlock()

	if err := p.node.UpdatePlayer(ctx, p.guildID, update); err != nil {
		p.mu.Lock()
		if p.current != nil && p.current.Encoded == t.Encoded {
			p.current = nil
			p.state = StateStopped
		}
		p.mu.Unlock()
		return fmt.Errorf("play %q: %w", t.Info.Title, err)
	}
	return nil
}

// Skip replaces the loaded track with the next queued one. It returns the
// track that was skipped and the one started, nil when the queue was empty
// and playback stopped.
func (p *Player) Skip(ctx context.Context) (skipped, started *Track, err error) {
	p.mu.Lock()
	skipped = p.current
	started = p.queue.Pop()
	p.current = started
	if started != nil {
		p.state = StatePlaying
	} else {
		p.state = StateStopped
	}
	p.mu.Unlock()

	if started != nil {
		return skipped, started, p.start(ctx, started)
	}
	if skipped == nil {
		return nil, nil, nil
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, lavalink.StopTrack()); err != nil {
		return skipped, nil, fmt.Errorf("stop: %w", err)
	}
	return skipped, nil, nil
}

// Stop clears the queue and stops the loaded track.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	hadTrack := p.current != nil
	p.queue.Clear()
	p.current = nil
	p.state = StateStopped
	p.mu.Unlock()

	if !hadTrack {
		return nil
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, lavalink.StopTrack()); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Pause pauses or resumes the loaded track.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNothingPlaying
	}
	prev := p.state
	if paused {
		p.state = StatePaused
	} else {
		p.state = StatePlaying
	}
	p.mu.Unlock()

	if err := p.node.UpdatePlayer(ctx, p.guildID, lavalink.PlayerUpdate{Paused: &paused}); err != nil {
		p.mu.Lock()
		p.state = prev
		p.mu.Unlock()
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

// UpdateVoice merges the non-empty fields of v into the player's voice state
// and forwards it to the node once both gateway halves have arrived.
func (p *Player) UpdateVoice(ctx context.Context, v lavalink.VoiceState) error {
	p.mu.Lock()
	if v.SessionID != "" {
		p.voice.SessionID = v.SessionID
	}
	if v.Token != "" {
		p.voice.Token = v.Token
	}
	if v.Endpoint != "" {
		p.voice.Endpoint = v.Endpoint
	}
	voice := p.voice
	p.mu.Unlock()

	if !voice.Complete() {
		return nil
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, lavalink.PlayerUpdate{Voice: &voice}); err != nil {
		return fmt.Errorf("voice update: %w", err)
	}
	return nil
}

// remove drops the queue and cancels work bound to the player.
func (p *Player) remove() {
	p.mu.Lock()
	p.removed = true
	p.queue.Clear()
	p.mu.Unlock()
	p.cancel()
}

// trackStarted marks t as playing. It returns the previously loaded track if
// it differs from t.
func (p *Player) trackStarted(t lavalink.Track) (previous *Track, current Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.Encoded != t.Encoded {
		previous = p.current
		p.current = &Track{Track: t}
	}
	if p.state != StatePaused {
		p.state = StatePlaying
	}
	return previous, *p.current
}

// trackEnded unloads t if it is still the loaded track and returns it.
// Returns nil when t was already replaced or cleared.
func (p *Player) trackEnded(t lavalink.Track) *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.Encoded != t.Encoded {
		return nil
	}
	ended := p.current
	p.current = nil
	p.state = StateStopped
	return ended
}
