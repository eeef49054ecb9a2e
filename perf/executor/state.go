package executor

import (
	"sync"
	"sync/atomic"
)

// State is the "continue running" flag shared by the workers and the
// reporter of one run. It starts running and flips to stopped exactly once.
type State struct {
	running atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewState returns a State in the running position.
func NewState() *State {
	s := &State{done: make(chan struct{})}
	s.running.Store(true)
	return s
}

// Running reports whether the run should continue.
func (s *State) Running() bool {
	return s.running.Load()
}

// Stop requests the run to end. Only the first call has an effect; it
// returns true for that call.
func (s *State) Stop() bool {
	stopped := false
	s.once.Do(func() {
		s.running.Store(false)
		close(s.done)
		stopped = true
	})
	return stopped
}

// Done returns a channel closed when Stop is first called.
func (s *State) Done() <-chan struct{} {
	return s.done
}
