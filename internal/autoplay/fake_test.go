package autoplay

import (
	"context"
	"sync"
	"time"

	"github.com/llehouerou/wavebot/internal/config"
	"github.com/llehouerou/wavebot/internal/lastfm"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
	"github.com/llehouerou/wavebot/internal/state"
)

func mkTrack(id, title, author string, lengthMs int64) lavalink.Track {
	return lavalink.Track{
		Encoded: "enc-" + id,
		Info: lavalink.TrackInfo{
			Identifier: id,
			Title:      title,
			Author:     author,
			Length:     lengthMs,
			SourceName: "youtube",
		},
	}
}

func human(t lavalink.Track) *playback.Track {
	return &playback.Track{Track: t, Requester: "user-1"}
}

func auto(t lavalink.Track) *playback.Track {
	return &playback.Track{Track: t, Autoplay: true, Requester: "user-1"}
}

// fakeNode answers searches from a table and records every identifier.
type fakeNode struct {
	mu        sync.Mutex
	connected bool
	results   map[string][]lavalink.Track
	errs      map[string]error
	block     bool          // wait for ctx instead of answering
	gate      chan struct{} // when set, wait for it before answering
	entered   chan struct{} // signalled on each call when set
	panics    bool
	calls     []string
}

func newFakeNode(connected bool) *fakeNode {
	return &fakeNode{
		connected: connected,
		results:   make(map[string][]lavalink.Track),
		errs:      make(map[string]error),
	}
}

func (n *fakeNode) Connected() bool { return n.connected }

func (n *fakeNode) Search(ctx context.Context, identifier string) ([]lavalink.Track, error) {
	n.mu.Lock()
	n.calls = append(n.calls, identifier)
	block, gate, entered, panics := n.block, n.gate, n.entered, n.panics
	res, err := n.results[identifier], n.errs[identifier]
	n.mu.Unlock()

	if panics {
		var hits map[string]int
		hits[identifier]++
	}
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return res, err
}

func (n *fakeNode) UpdatePlayer(context.Context, string, lavalink.PlayerUpdate) error { return nil }

func (n *fakeNode) DestroyPlayer(context.Context, string) error { return nil }

func (n *fakeNode) searched() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// fakePlayer is a minimal guild player.
type fakePlayer struct {
	guildID string
	node    playback.Node
	queue   []playback.Track
	current *playback.Track
	playing bool
	paused  bool
	playErr error
}

func newFakePlayer(node playback.Node) *fakePlayer {
	return &fakePlayer{guildID: "guild-1", node: node}
}

func (p *fakePlayer) GuildID() string { return p.guildID }

func (p *fakePlayer) QueueLen() int { return len(p.queue) }

func (p *fakePlayer) Current() *playback.Track { return p.current }

func (p *fakePlayer) Playing() bool { return p.playing }

func (p *fakePlayer) Paused() bool { return p.paused }

func (p *fakePlayer) Node() playback.Node { return p.node }

func (p *fakePlayer) Add(tracks ...playback.Track) { p.queue = append(p.queue, tracks...) }

func (p *fakePlayer) Play(context.Context) error {
	if p.playErr != nil {
		return p.playErr
	}
	if len(p.queue) == 0 {
		return playback.ErrQueueEmpty
	}
	t := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &t
	p.playing = true
	return nil
}

// fakeSimilar returns a fixed answer after an optional delay.
type fakeSimilar struct {
	mu      sync.Mutex
	artists map[string][]string
	err     error
	delay   time.Duration
	panics  bool
	calls   []string
}

func (s *fakeSimilar) GetSimilarArtists(artist string, limit int) ([]lastfm.SimilarArtist, error) {
	s.mu.Lock()
	s.calls = append(s.calls, artist)
	names, err, delay, panics := s.artists[artist], s.err, s.delay, s.panics
	s.mu.Unlock()

	if panics {
		var byName map[string]int
		byName[artist]++
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	out := make([]lastfm.SimilarArtist, 0, len(names))
	for i, n := range names {
		if i == limit {
			break
		}
		out = append(out, lastfm.SimilarArtist{Name: n, MatchScore: 1})
	}
	return out, nil
}

func (s *fakeSimilar) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func noShuffle(int, func(i, j int)) {}

func defaultConfig() config.AutoplayConfig {
	return (&config.Config{}).GetAutoplayConfig()
}

// newTestEngine returns an engine with autoplay enabled for guild-1 and
// deterministic ordering.
func newTestEngine(similar SimilarArtistSource, opts ...Option) (*Engine, *state.Mock) {
	store := state.NewMock()
	_ = store.SetAutoplay("guild-1", true)
	opts = append([]Option{WithShuffle(noShuffle)}, opts...)
	return New(defaultConfig(), store, similar, nil, opts...), store
}
