package playback

import (
	"context"
	"sync"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

type fakeNode struct {
	mu        sync.Mutex
	updates   []lavalink.PlayerUpdate
	destroyed []string
	updateErr error
}

func (n *fakeNode) Connected() bool { return true }

func (n *fakeNode) Search(context.Context, string) ([]lavalink.Track, error) { return nil, nil }

func (n *fakeNode) UpdatePlayer(_ context.Context, _ string, u lavalink.PlayerUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.updateErr != nil {
		return n.updateErr
	}
	n.updates = append(n.updates, u)
	return nil
}

func (n *fakeNode) DestroyPlayer(_ context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroyed = append(n.destroyed, guildID)
	return nil
}

func (n *fakeNode) played() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, u := range n.updates {
		if u.Track == nil {
			continue
		}
		if u.Track.Encoded == nil {
			out = append(out, "<stop>")
		} else {
			out = append(out, *u.Track.Encoded)
		}
	}
	return out
}

// volumes lists the volume carried by each update that set one.
func (n *fakeNode) volumes() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int
	for _, u := range n.updates {
		if u.Volume != nil {
			out = append(out, *u.Volume)
		}
	}
	return out
}

func track(id string) Track {
	return Track{Track: lavalink.Track{
		Encoded: "enc-" + id,
		Info:    lavalink.TrackInfo{Identifier: id, Title: "Title " + id, Author: "Author", Length: 200000},
	}}
}

func autoTrack(id string) Track {
	t := track(id)
	t.Autoplay = true
	return t
}

func ids(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Identifier()
	}
	return out
}
