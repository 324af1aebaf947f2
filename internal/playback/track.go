package playback

import "github.com/llehouerou/wavebot/internal/lavalink"

// Track is a queued track plus who asked for it.
type Track struct {
	lavalink.Track
	// Autoplay marks tracks picked by the recommendation engine.
	Autoplay  bool
	Requester string
}

// NewTrack wraps a resolved track requested by a user.
func NewTrack(t lavalink.Track, requester string) Track {
	return Track{Track: t, Requester: requester}
}

// Title returns the display title.
func (t *Track) Title() string { return t.Info.Title }

// Identifier returns the source identifier (e.g. a YouTube video id).
func (t *Track) Identifier() string { return t.Info.Identifier }
