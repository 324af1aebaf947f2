package playback

// TrackChange is emitted when the node starts playing a track.
//
// Emitted by the TrackStartEvent handler only, so a skip that replaces the
// track yields exactly one change once the node confirms it.
type TrackChange struct {
	GuildID  string
	Previous *Track
	Current  Track
}

// ErrorEvent is emitted when playback fails in the background.
type ErrorEvent struct {
	GuildID   string
	Operation string // e.g. "play", "advance"
	Track     string // track title if applicable
	Err       error
}

// IdleEvent is emitted when a guild's queue ran out and autoplay queued
// nothing to follow.
type IdleEvent struct {
	GuildID string
}
