package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	TrackChanged <-chan TrackChange
	Error        <-chan ErrorEvent
	Idle         <-chan IdleEvent
	Done         <-chan struct{}

	trackCh chan TrackChange
	errorCh chan ErrorEvent
	idleCh  chan IdleEvent
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		trackCh: make(chan TrackChange, eventBufferSize),
		errorCh: make(chan ErrorEvent, eventBufferSize),
		idleCh:  make(chan IdleEvent, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.TrackChanged = s.trackCh
	s.Error = s.errorCh
	s.Idle = s.idleCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// sendTrack sends a track change event (non-blocking).
func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
		// Drop if buffer full
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}

// sendIdle sends an idle event (non-blocking).
func (s *Subscription) sendIdle(e IdleEvent) {
	select {
	case s.idleCh <- e:
	default:
	}
}
