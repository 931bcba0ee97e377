package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errSend = errors.New("send failed")

func run(b *Breaker, ok bool) error {
	_, err := Execute(b, func() (string, error) {
		if ok {
			return "ok", nil
		}
		return "", errSend
	})
	return err
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 3 },
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name: "success resets the failure streak",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
			},
			requests:      []bool{false, true, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("ingestion", tt.settings)
			for _, ok := range tt.requests {
				_ = run(breaker, ok)
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("ingestion", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	require.ErrorIs(t, run(breaker, false), errSend)
	assert.ErrorIs(t, run(breaker, true), ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	var transitions []State
	breaker := New("ingestion", Settings{
		MaxRequests: 1,
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		OnStateChange: func(_ string, _ State, to State) {
			transitions = append(transitions, to)
		},
		Now: clock.Now,
	})

	_ = run(breaker, false)
	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, run(breaker, true))
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("ingestion", Settings{
		Timeout:     time.Second,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	_ = run(breaker, false)
	clock.Advance(2 * time.Second)
	_ = run(breaker, false)

	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerCountsResetAfterInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("ingestion", Settings{Interval: time.Minute, Now: clock.Now})

	_ = run(breaker, false)
	assert.Equal(t, uint32(1), breaker.Counts().TotalFailures)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("ingestion", Settings{})
	assert.Panics(t, func() {
		_, _ = Execute(breaker, func() (int, error) { panic("boom") })
	})
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
