package playback

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

type recordingAutoplayer struct {
	mu        sync.Mutex
	calls     []string
	requester string
	ctxErr    error
	pick      *Track

	entered chan struct{} // signalled on entry when set
	release chan struct{} // waited on before picking when set
}

func (a *recordingAutoplayer) HandleAutoplay(ctx context.Context, p *Player, last *Track, requester string) bool {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	a.mu.Lock()
	a.calls = append(a.calls, last.Identifier())
	a.requester = requester
	a.ctxErr = ctx.Err()
	pick := a.pick
	a.mu.Unlock()
	if pick == nil {
		return false
	}
	p.Add(*pick)
	return p.Play(ctx) == nil
}

func endEvent(guild string, t Track, reason lavalink.EndReason) lavalink.TrackEndEvent {
	return lavalink.TrackEndEvent{Guild: guild, Track: t.Track, Reason: reason}
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	defer m.Close()

	assert.Nil(t, m.Get("g1"))
	p := m.GetOrCreate("g1")
	assert.Same(t, p, m.GetOrCreate("g1"))
	assert.Same(t, p, m.Get("g1"))
}

func TestManager_TrackEndAdvancesQueue(t *testing.T) {
	node := &fakeNode{}
	m := NewManager(node, nil)
	auto := &recordingAutoplayer{}
	m.SetAutoplayer(auto)

	p := m.GetOrCreate("g1")
	p.Add(track("a"), track("b"))
	require.NoError(t, p.Play(context.Background()))

	m.HandleEvent(endEvent("g1", track("a"), lavalink.EndReasonFinished))
	m.Close()

	assert.Equal(t, "b", p.Current().Identifier())
	assert.Empty(t, auto.calls)
}

func TestManager_TrackEndEmptyQueueCallsAutoplay(t *testing.T) {
	node := &fakeNode{}
	m := NewManager(node, nil)
	m.SetSelfID("bot-1")
	rec := autoTrack("r1")
	auto := &recordingAutoplayer{pick: &rec}
	m.SetAutoplayer(auto)

	p := m.GetOrCreate("g1")
	a := track("a")
	a.Requester = "user-1"
	p.Add(a)
	require.NoError(t, p.Play(context.Background()))

	m.HandleEvent(endEvent("g1", a, lavalink.EndReasonFinished))
	m.Close()

	assert.Equal(t, []string{"a"}, auto.calls)
	assert.Equal(t, "bot-1", auto.requester, "picks are credited to the bot")
	assert.Equal(t, "r1", p.Current().Identifier())
	assert.True(t, p.Current().Autoplay)
}

func TestManager_TrackEndIgnoredReasons(t *testing.T) {
	for _, reason := range []lavalink.EndReason{
		lavalink.EndReasonStopped,
		lavalink.EndReasonReplaced,
		lavalink.EndReasonCleanup,
	} {
		t.Run(string(reason), func(t *testing.T) {
			m := NewManager(&fakeNode{}, nil)
			auto := &recordingAutoplayer{}
			m.SetAutoplayer(auto)

			p := m.GetOrCreate("g1")
			p.Add(track("a"), track("b"))
			require.NoError(t, p.Play(context.Background()))

			m.HandleEvent(endEvent("g1", track("a"), reason))
			m.Close()

			assert.Nil(t, p.Current())
			assert.Equal(t, 1, p.QueueLen(), "queue does not advance")
			assert.Empty(t, auto.calls)
		})
	}
}

func TestManager_SkipEmptyQueueHandsOffToAutoplay(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	defer m.Close()
	rec := autoTrack("r1")
	auto := &recordingAutoplayer{pick: &rec}
	m.SetAutoplayer(auto)

	p := m.GetOrCreate("g1")
	p.Add(track("a"))
	require.NoError(t, p.Play(context.Background()))

	started, err := m.Skip(context.Background(), "g1")
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, "r1", started.Identifier())
	assert.Equal(t, []string{"a"}, auto.calls)
}

func TestManager_SkipAutoplayOutlivesCommandContext(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	defer m.Close()
	rec := autoTrack("r1")
	auto := &recordingAutoplayer{pick: &rec}
	m.SetAutoplayer(auto)

	p := m.GetOrCreate("g1")
	p.Add(track("a"))
	require.NoError(t, p.Play(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Skip(ctx, "g1")
	require.NoError(t, err)
	assert.NoError(t, auto.ctxErr)
}

func TestManager_EmptyQueueWithoutPickEmitsIdle(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	sub := m.Subscribe()
	m.SetAutoplayer(&recordingAutoplayer{})

	p := m.GetOrCreate("g1")
	p.Add(track("a"))
	require.NoError(t, p.Play(context.Background()))

	m.HandleEvent(endEvent("g1", track("a"), lavalink.EndReasonFinished))
	ev := <-sub.Idle
	assert.Equal(t, "g1", ev.GuildID)
	m.Close()
}

func TestManager_RemoveCancelsAutoplay(t *testing.T) {
	node := &fakeNode{}
	m := NewManager(node, nil)
	rec := autoTrack("r1")
	auto := &recordingAutoplayer{
		pick:    &rec,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m.SetAutoplayer(auto)

	p := m.GetOrCreate("g1")
	p.Add(track("a"))
	require.NoError(t, p.Play(context.Background()))

	m.HandleEvent(endEvent("g1", track("a"), lavalink.EndReasonFinished))
	<-auto.entered
	require.NoError(t, m.Remove(context.Background(), "g1"))
	close(auto.release)
	m.Close()

	assert.ErrorIs(t, auto.ctxErr, context.Canceled)
	assert.Zero(t, p.QueueLen())
	assert.Nil(t, p.Current())
	assert.Equal(t, []string{"enc-a"}, node.played(), "removed player never plays the pick")
}

func TestManager_SkipUnknownGuild(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	defer m.Close()
	_, err := m.Skip(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestManager_TrackStartEmitsChange(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	sub := m.Subscribe()

	p := m.GetOrCreate("g1")
	p.Add(track("a"))
	require.NoError(t, p.Play(context.Background()))

	m.HandleEvent(lavalink.TrackStartEvent{Guild: "g1", Track: track("a").Track})
	change := <-sub.TrackChanged
	assert.Equal(t, "g1", change.GuildID)
	assert.Equal(t, "a", change.Current.Identifier())

	m.Close()
	<-sub.Done
}

func TestManager_TrackExceptionEmitsError(t *testing.T) {
	m := NewManager(&fakeNode{}, nil)
	defer m.Close()
	sub := m.Subscribe()

	m.HandleEvent(lavalink.TrackExceptionEvent{
		Guild:     "g1",
		Track:     track("a").Track,
		Exception: lavalink.Exception{Message: "boom", Severity: "fault"},
	})
	ev := <-sub.Error
	assert.Equal(t, "play", ev.Operation)
	assert.ErrorContains(t, ev.Err, "boom")
}

func TestManager_Remove(t *testing.T) {
	node := &fakeNode{}
	m := NewManager(node, nil)
	defer m.Close()
	var removed []string
	m.OnRemove(func(id string) { removed = append(removed, id) })

	m.GetOrCreate("g1")
	require.NoError(t, m.Remove(context.Background(), "g1"))
	require.NoError(t, m.Remove(context.Background(), "g1"))

	assert.Nil(t, m.Get("g1"))
	assert.Equal(t, []string{"g1"}, removed)
	assert.Equal(t, []string{"g1"}, node.destroyed)
}

func TestAutoplayFunc(t *testing.T) {
	called := false
	var a Autoplayer = AutoplayFunc(func(context.Context, *Player, *Track, string) bool {
		called = true
		return true
	})
	assert.True(t, a.HandleAutoplay(context.Background(), nil, nil, ""))
	assert.True(t, called)
}
