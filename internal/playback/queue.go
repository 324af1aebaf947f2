package playback

// queue holds the upcoming tracks of a player. The playing track is not part
// of it.
type queue struct {
	tracks []Track
}

// Add appends tracks.
func (q *queue) Add(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// Enqueue inserts tracks before the first autoplay track so user requests
// play ahead of recommendations. Returns the index of the first inserted
// track.
func (q *queue) Enqueue(tracks ...Track) int {
	at := len(q.tracks)
	for i, t := range q.tracks {
		if t.Autoplay {
			at = i
			break
		}
	}
	rest := append([]Track(nil), q.tracks[at:]...)
	q.tracks = append(append(q.tracks[:at], tracks...), rest...)
	return at
}

// Pop removes and returns the first track, or nil when empty.
func (q *queue) Pop() *Track {
	if len(q.tracks) == 0 {
		return nil
	}
	t := q.tracks[0]
	q.tracks = q.tracks[1:]
	return &t
}

// Clear removes all tracks.
func (q *queue) Clear() {
	q.tracks = nil
}

// Tracks returns a copy of the upcoming tracks.
func (q *queue) Tracks() []Track {
	out := make([]Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Len returns the number of upcoming tracks.
func (q *queue) Len() int {
	return len(q.tracks)
}
