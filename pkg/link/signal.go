package link

import "sync"

// Signal is a one-shot wake-up: one party waits on Done, one party Fires.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal creates an unfired Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire wakes the waiter. Only the first call has an effect and
// returns true.
func (s *Signal) Fire() (fired bool) {
	s.once.Do(func() {
		close(s.ch)
		fired = true
	})
	return
}

// Done is closed once the Signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
