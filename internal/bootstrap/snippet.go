package bootstrap

import (
	"errors"
	"sync"

	"github.com/GriffinCanCode/insights/internal/config"
)

// ErrNilCall is returned when a nil call is queued.
var ErrNilCall = errors.New("bootstrap: pending call is nil")

// PendingCall is a telemetry call captured before the client finished
// loading. It is invoked with no arguments during the drain.
type PendingCall func() error

// Snippet carries the configuration and the call buffer from before load.
// Calls pushed after the drain run immediately.
type Snippet struct {
	Config *config.Configuration

	mu      sync.Mutex
	queue   []PendingCall
	drained bool
	target  *ApplicationInsights
}

// NewSnippet creates an empty buffer for cfg, which may be nil.
func NewSnippet(cfg *config.Configuration) *Snippet {
	return &Snippet{Config: cfg}
}

// Push queues call, or runs it when the buffer has been drained.
func (s *Snippet) Push(call PendingCall) error {
	if call == nil {
		return ErrNilCall
	}

	s.mu.Lock()
	if !s.drained {
		s.queue = append(s.queue, call)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return invoke(0, call)
}

// Call queues fn against the controller the snippet is loaded into.
func (s *Snippet) Call(fn func(*ApplicationInsights) error) error {
	if fn == nil {
		return ErrNilCall
	}
	return s.Push(func() error {
		target := s.Target()
		if target == nil {
			return ErrNotLoaded
		}
		return fn(target)
	})
}

// Len returns the number of queued calls.
func (s *Snippet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Drained reports whether the buffer has been drained.
func (s *Snippet) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained
}

// Target returns the controller the snippet was loaded into.
func (s *Snippet) Target() *ApplicationInsights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Snippet) bind(a *ApplicationInsights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = a
}

// take clears the buffer and marks it drained. ok is false on every call
// after the first.
func (s *Snippet) take() (calls []PendingCall, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return nil, false
	}
	calls = s.queue
	s.queue = nil
	s.drained = true
	return calls, true
}
