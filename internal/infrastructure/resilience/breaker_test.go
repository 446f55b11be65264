package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

// clock is a manually advanced time source
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func tripAfter(n uint32) func(Counts) bool {
	return func(counts Counts) bool { return counts.ConsecutiveFailures >= n }
}

func run(b *Breaker, results ...bool) {
	for _, ok := range results {
		_ = b.Execute(func() error {
			if ok {
				return nil
			}
			return errFailed
		})
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		results  []bool // true = success
		elapsed  time.Duration
		want     State
	}{
		{
			name:    "stays closed on successes",
			results: []bool{true, true, true},
			want:    StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{ReadyToTrip: tripAfter(3)},
			results:  []bool{false, false, false},
			want:     StateOpen,
		},
		{
			name:     "a success resets the streak",
			settings: Settings{ReadyToTrip: tripAfter(3)},
			results:  []bool{false, false, true, false, false},
			want:     StateClosed,
		},
		{
			name:     "half-open once the timeout passes",
			settings: Settings{Timeout: 30 * time.Second, ReadyToTrip: tripAfter(2)},
			results:  []bool{false, false},
			elapsed:  30 * time.Second,
			want:     StateHalfOpen,
		},
		{
			name:     "still open before the timeout",
			settings: Settings{Timeout: 30 * time.Second, ReadyToTrip: tripAfter(2)},
			results:  []bool{false, false},
			elapsed:  29 * time.Second,
			want:     StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newClock()
			tt.settings.Now = clk.Now
			b := New("test", tt.settings)

			run(b, tt.results...)
			clk.Advance(tt.elapsed)

			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := New("test", Settings{})

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, Counts{Requests: 1, TotalSuccesses: 1, ConsecutiveSuccesses: 1}, b.Counts())

	assert.ErrorIs(t, b.Execute(func() error { return errFailed }), errFailed)
	assert.Equal(t, Counts{Requests: 2, TotalSuccesses: 1, TotalFailures: 1, ConsecutiveFailures: 1}, b.Counts())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(3), Now: clk.Now})

	run(b, false, false)
	clk.Advance(time.Minute)
	run(b, false)

	// Only one failure in the new interval
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerOpenRejects(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(2)})
	run(b, false, false)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, Rejected(err))
	assert.False(t, called)
	assert.False(t, Rejected(errFailed))
}

func TestBreakerHalfOpen(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		Now:         clk.Now,
	})

	run(b, false, false)
	clk.Advance(time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, true)
	assert.Equal(t, StateHalfOpen, b.State(), "one probe is not enough")
	run(b, true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(5), Now: clk.Now})

	run(b, false, false, false, false, false)
	clk.Advance(time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	// A single failed probe is enough
	run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	run(b, false)
	clk.Advance(time.Second)

	err := b.Execute(func() error {
		// A second caller while the probe is in flight
		inner := b.Execute(func() error { return nil })
		assert.ErrorIs(t, inner, ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCallbacks(t *testing.T) {
	clk := newClock()
	var transitions []string

	b := New("hook", Settings{
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		Now:         clk.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	run(b, false, false)
	clk.Advance(time.Second)
	run(b, true)

	assert.Equal(t, []string{
		"hook:closed->open",
		"hook:open->half-open",
		"hook:half-open->closed",
	}, transitions)
}

func TestBreakerIsSuccessful(t *testing.T) {
	errNotFound := errors.New("not found")

	b := New("test", Settings{
		ReadyToTrip: tripAfter(1),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
	})

	err := b.Execute(func() error { return errNotFound })
	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, StateClosed, b.State())

	run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
