package playback

// State represents the playback state of a guild player.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is loaded on the node (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
