package autoplay

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
)

func TestToggle(t *testing.T) {
	e, store := newTestEngine(nil)
	e.AddToRecentTracks("guild-1", mkTrack("a", "Band - Song", "Band", 200000))

	enabled, err := e.Toggle("guild-1")
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.False(t, e.IsEnabled("guild-1"))
	assert.Empty(t, e.RecentTracks("guild-1"), "disabling clears history")

	cfg, _ := store.GuildConfig("guild-1")
	assert.False(t, cfg.Autoplay)

	enabled, err = e.Toggle("guild-1")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestIsEnabled_StoreErrorReadsDisabled(t *testing.T) {
	e, store := newTestEngine(nil)
	store.Err = errors.New("disk gone")
	assert.False(t, e.IsEnabled("guild-1"))

	_, err := e.Toggle("guild-1")
	assert.Error(t, err)
}

func TestResetSeedAndClearState(t *testing.T) {
	e, _ := newTestEngine(nil)
	e.AddToRecentTracks("guild-1", mkTrack("a", "Band - Song", "Band", 200000))

	e.ResetSeed("guild-1", &SeedInfo{Title: "Seed", Identifier: "s"})
	assert.Empty(t, e.RecentTracks("guild-1"))
	assert.Contains(t, e.seeds, "guild-1")

	e.ClearState("guild-1")
	assert.NotContains(t, e.seeds, "guild-1")
}

func TestHandleAutoplay_Guards(t *testing.T) {
	node := newFakeNode(true)

	t.Run("disabled", func(t *testing.T) {
		e, store := newTestEngine(nil)
		_ = store.SetAutoplay("guild-1", false)
		p := newFakePlayer(node)
		assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "A - B", "A", 200000)), "u"))
	})

	t.Run("queue not empty", func(t *testing.T) {
		e, _ := newTestEngine(nil)
		p := newFakePlayer(node)
		p.queue = []playback.Track{*human(mkTrack("q", "Q - Q", "Q", 200000))}
		assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "A - B", "A", 200000)), "u"))
	})

	t.Run("track playing", func(t *testing.T) {
		e, _ := newTestEngine(nil)
		p := newFakePlayer(node)
		p.current = human(mkTrack("c", "C - C", "C", 200000))
		p.playing = true
		assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "A - B", "A", 200000)), "u"))
	})

	t.Run("already in progress", func(t *testing.T) {
		e, _ := newTestEngine(nil)
		require.True(t, e.tryAcquire("guild-1"))
		p := newFakePlayer(node)
		assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "A - B", "A", 200000)), "u"))
	})

	assert.Empty(t, node.searched(), "guards never reach the node")
}

func TestHandleAutoplay_RadioMix(t *testing.T) {
	node := newFakeNode(true)
	last := mkTrack("seed", "Artist X - Song", "Artist X", 200000)
	node.results[RadioMixURL("seed")] = []lavalink.Track{
		last,
		mkTrack("live", "Band - Live Concert Recording", "Band", 200000),
		mkTrack("next", "Band - Studio Song", "Band", 200000),
	}
	e, _ := newTestEngine(nil)
	p := newFakePlayer(node)

	require.True(t, e.HandleAutoplay(context.Background(), p, human(last), "user-7"))

	require.NotNil(t, p.current)
	assert.Equal(t, "next", p.current.Info.Identifier)
	assert.True(t, p.current.Autoplay)
	assert.Equal(t, "user-7", p.current.Requester)
	assert.Equal(t, []string{RadioMixURL("seed")}, node.searched())
	assert.True(t, e.tryAcquire("guild-1"), "flag released")
}

func TestHandleAutoplay_DoesNotRestartWhilePaused(t *testing.T) {
	node := newFakeNode(true)
	last := mkTrack("seed", "Artist X - Song", "Artist X", 200000)
	node.results[RadioMixURL("seed")] = []lavalink.Track{mkTrack("next", "Band - Song", "Band", 200000)}
	e, _ := newTestEngine(nil)
	p := newFakePlayer(node)
	p.paused = true

	require.True(t, e.HandleAutoplay(context.Background(), p, human(last), "u"))
	assert.Nil(t, p.current)
	assert.Len(t, p.queue, 1)
}

func TestHandleAutoplay_PlayErrorReturnsFalse(t *testing.T) {
	node := newFakeNode(true)
	last := mkTrack("seed", "Artist X - Song", "Artist X", 200000)
	node.results[RadioMixURL("seed")] = []lavalink.Track{mkTrack("next", "Band - Song", "Band", 200000)}
	e, _ := newTestEngine(nil)
	p := newFakePlayer(node)
	p.playErr = lavalink.ErrNotConnected

	assert.False(t, e.HandleAutoplay(context.Background(), p, human(last), "u"))
}

func TestHandleAutoplay_NothingFound(t *testing.T) {
	e, _ := newTestEngine(nil)
	p := newFakePlayer(newFakeNode(true))
	assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "Artist X - Song", "Artist X", 200000)), "u"))
	assert.Empty(t, p.queue)
}

func TestHandleAutoplay_RecoversPanic(t *testing.T) {
	e, _ := newTestEngine(nil)
	p := newFakePlayer(nil) // Node() is nil, so the first node call panics

	assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("a", "A - B", "A", 200000)), "u"))
	assert.True(t, e.tryAcquire("guild-1"), "flag released after panic")
}

func TestHandleAutoplay_SimilarLookupPanicIsContained(t *testing.T) {
	node := newFakeNode(false)
	node.results["ytsearch:artist x music"] = []lavalink.Track{mkTrack("x2", "Artist X - Other", "Artist X", 200000)}
	src := &fakeSimilar{panics: true}
	e, _ := newTestEngine(src)
	p := newFakePlayer(node)

	require.True(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("x1", "Artist X - Song", "Artist X", 200000)), "u"))
	assert.Equal(t, "x2", p.current.Info.Identifier)
	assert.Equal(t, 1, src.callCount())
}

func TestHandleAutoplay_SearchPanicIsContained(t *testing.T) {
	node := newFakeNode(true)
	node.panics = true
	e, _ := newTestEngine(nil)
	p := newFakePlayer(node)

	assert.False(t, e.HandleAutoplay(context.Background(), p, human(mkTrack("x1", "Artist X - Song", "Artist X", 200000)), "u"))
	assert.NotEmpty(t, node.searched())
	assert.Empty(t, p.queue)
	assert.True(t, e.tryAcquire("guild-1"), "flag released")
}

func TestHandleAutoplay_MutualExclusion(t *testing.T) {
	node := newFakeNode(true)
	node.gate = make(chan struct{})
	node.entered = make(chan struct{}, 8)
	last := mkTrack("seed", "Artist X - Song", "Artist X", 200000)
	node.results[RadioMixURL("seed")] = []lavalink.Track{mkTrack("next", "Band - Song", "Band", 200000)}
	e, _ := newTestEngine(nil)

	first := make(chan bool, 1)
	go func() {
		first <- e.HandleAutoplay(context.Background(), newFakePlayer(node), human(last), "u")
	}()
	<-node.entered

	assert.False(t, e.HandleAutoplay(context.Background(), newFakePlayer(node), human(last), "u"),
		"second trigger is dropped while the first is in flight")

	close(node.gate)
	assert.True(t, <-first)
	assert.Len(t, node.searched(), 1)
}

func TestHandleAutoplay_NodeDisconnectedUsesKeywordSearch(t *testing.T) {
	node := newFakeNode(false)
	node.results["ytsearch:artist z music"] = []lavalink.Track{
		mkTrack("abc123", "Artist X - Song A", "Artist X - Topic", 200000),
		mkTrack("z1", "Artist Z - Tune", "Artist Z", 200000),
	}
	src := &fakeSimilar{artists: map[string][]string{"artist x": {"artist y", "artist z"}}}
	e, _ := newTestEngine(src)
	p := newFakePlayer(node)
	last := human(mkTrack("abc123", "Artist X - Song A", "Artist X - Topic", 200000))

	require.True(t, e.HandleAutoplay(context.Background(), p, last, "u"))

	require.NotNil(t, p.current)
	assert.Equal(t, "z1", p.current.Info.Identifier)
	assert.True(t, p.current.Autoplay)
	assert.Equal(t, []string{"ytsearch:artist y music", "ytsearch:artist z music"}, node.searched())
	assert.Equal(t, []string{
		"artist y music",
		"artist z music",
		"artist x music",
	}, e.BuildSearchQueries(context.Background(), SeedFromTrack(last.Track), "guild-1"))
}

func TestFindNextTrack_SeedQueryComesLast(t *testing.T) {
	node := newFakeNode(false)
	node.results["ytsearch:artist x music"] = []lavalink.Track{mkTrack("x2", "Artist X - Song B", "Artist X", 200000)}
	src := &fakeSimilar{artists: map[string][]string{"artist x": {"band a"}}}
	e, _ := newTestEngine(src)
	last := human(mkTrack("seed", "Artist X - Song", "Artist X", 200000))

	got := e.FindNextTrack(context.Background(), newFakePlayer(node), last, "u")

	require.NotNil(t, got)
	assert.Equal(t, "x2", got.Info.Identifier)
	assert.Equal(t, []string{"ytsearch:band a music", "ytsearch:artist x music"}, node.searched())
}

func TestFindNextTrack_SearchConsidersFirstFifteen(t *testing.T) {
	node := newFakeNode(false)
	var results []lavalink.Track
	for i := range 15 {
		results = append(results, mkTrack("s"+string(rune('a'+i)), "Band A - Short", "Band A", 30000))
	}
	results = append(results, mkTrack("sixteenth", "Band A - Good", "Band A", 200000))
	node.results["ytsearch:band a music"] = results
	src := &fakeSimilar{artists: map[string][]string{"artist x": {"band a"}}}
	e, _ := newTestEngine(src)

	got := e.FindNextTrack(context.Background(), newFakePlayer(node), human(mkTrack("seed", "Artist X - Song", "Artist X", 200000)), "u")
	assert.Nil(t, got)
}

func TestFindNextTrack_LoopingArtistSkipped(t *testing.T) {
	node := newFakeNode(true)
	last := auto(mkTrack("x3", "Artist X - Third", "Artist X", 200000))
	node.results[RadioMixURL("x3")] = []lavalink.Track{
		mkTrack("x4", "Artist X - Fourth", "Artist X", 200000),
		mkTrack("y1", "Artist Y - Other", "Artist Y", 200000),
	}
	e, _ := newTestEngine(nil)
	e.AddToRecentTracks("guild-1", mkTrack("x1", "Artist X - First", "Artist X", 200000))
	e.AddToRecentTracks("guild-1", mkTrack("x2", "Artist X - Second", "Artist X", 200000))

	got := e.FindNextTrack(context.Background(), newFakePlayer(node), last, "u")

	require.NotNil(t, got)
	assert.Equal(t, "y1", got.Info.Identifier)
	assert.Len(t, e.RecentTracks("guild-1"), 3, "autoplay last track keeps history")
}

func TestFindNextTrack_NotLoopingAllowsSameArtist(t *testing.T) {
	node := newFakeNode(true)
	last := human(mkTrack("x1", "Artist X - First", "Artist X", 200000))
	node.results[RadioMixURL("x1")] = []lavalink.Track{
		mkTrack("x2", "Artist X - Second", "Artist X", 200000),
	}
	e, _ := newTestEngine(nil)

	got := e.FindNextTrack(context.Background(), newFakePlayer(node), last, "u")
	require.NotNil(t, got)
	assert.Equal(t, "x2", got.Info.Identifier)
}

func TestFindNextTrack_HumanTrackResetsHistory(t *testing.T) {
	node := newFakeNode(true)
	e, _ := newTestEngine(nil)
	e.AddToRecentTracks("guild-1", mkTrack("old", "Old - Song", "Old", 200000))

	e.FindNextTrack(context.Background(), newFakePlayer(node), human(mkTrack("new", "New - Song", "New", 200000)), "u")

	recent := e.RecentTracks("guild-1")
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].Identifier)
}

func TestFindNextTrack_PreferredSeedWinsOnce(t *testing.T) {
	node := newFakeNode(true)
	e, _ := newTestEngine(nil)
	p := newFakePlayer(node)
	last := auto(mkTrack("last", "Band - Last", "Band", 200000))

	e.ResetSeed("guild-1", &SeedInfo{Title: "Seed Artist - Seed", Author: "Seed Artist", Identifier: "seed"})
	e.FindNextTrack(context.Background(), p, last, "u")
	e.FindNextTrack(context.Background(), p, last, "u")

	searched := node.searched()
	require.NotEmpty(t, searched)
	assert.Equal(t, RadioMixURL("seed"), searched[0], "preferred seed used first")
	assert.Contains(t, searched, RadioMixURL("last"), "seed consumed, last track used next")
	assert.NotContains(t, e.seeds, "guild-1")
}

func TestFindNextTrack_RadioMixExcludesSeedAndLast(t *testing.T) {
	node := newFakeNode(true)
	last := auto(mkTrack("last", "Band - Last", "Band", 200000))
	node.results[RadioMixURL("seed")] = []lavalink.Track{
		mkTrack("seed", "Seed Artist - Seed", "Seed Artist", 200000),
		last.Track,
	}
	e, _ := newTestEngine(nil)
	e.ResetSeed("guild-1", &SeedInfo{Title: "Seed Artist - Seed", Author: "Seed Artist", Identifier: "seed"})

	assert.Nil(t, e.FindNextTrack(context.Background(), newFakePlayer(node), last, "u"))
}

func TestFindNextTrack_NilLastTrack(t *testing.T) {
	e, _ := newTestEngine(nil)
	assert.Nil(t, e.FindNextTrack(context.Background(), newFakePlayer(newFakeNode(true)), nil, "u"))
}

func TestFindNextTrack_SearchTimeouts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		node := newFakeNode(true)
		node.block = true
		src := &fakeSimilar{artists: map[string][]string{"artist x": {"band a"}}}
		e, _ := newTestEngine(src)
		start := time.Now()

		got := e.FindNextTrack(context.Background(), newFakePlayer(node), human(mkTrack("seed", "Artist X - Song", "Artist X", 200000)), "u")

		assert.Nil(t, got)
		// Radio mix plus two keyword queries, each cut off at 8s.
		assert.Equal(t, 24*time.Second, time.Since(start))
		assert.Equal(t, []string{
			RadioMixURL("seed"),
			"ytsearch:band a music",
			"ytsearch:artist x music",
		}, node.searched())
	})
}
