package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

type clock struct{ t time.Time }

func (c *clock) now() time.Time            { return c.t }
func (c *clock) advance(d time.Duration)   { c.t = c.t.Add(d) }
func fail() error                          { return errFailed }
func ok() error                            { return nil }
func tripAfter(n uint32) func(Counts) bool { return func(c Counts) bool { return c.ConsecutiveFailures >= n } }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		trip     uint32
		requests []bool
		want     State
	}{
		{"stays closed on successes", 3, []bool{true, true, true}, StateClosed},
		{"opens after consecutive failures", 3, []bool{false, false, false}, StateOpen},
		{"success resets the streak", 3, []bool{false, false, true, false, false}, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", Settings{ReadyToTrip: tripAfter(tt.trip)})
			for _, success := range tt.requests {
				if success {
					_ = b.Do(ok)
				} else {
					_ = b.Do(fail)
				}
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := New("test", Settings{})

	require.NoError(t, b.Do(ok))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, b.Do(fail), errFailed)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRejects(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(2)})
	_ = b.Do(fail)
	_ = b.Do(fail)
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpen(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	var transitions []string
	b := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Minute,
		ReadyToTrip: tripAfter(2),
		Now:         c.now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(fail)
	_ = b.Do(fail)
	require.Equal(t, StateOpen, b.State())

	c.advance(time.Minute + time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(ok))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: c.now})

	_ = b.Do(fail)
	c.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = b.Do(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: c.now})

	_ = b.Do(fail)
	c.advance(2 * time.Second)

	err := b.Do(func() error {
		assert.ErrorIs(t, b.Do(ok), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	b := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(3), Now: c.now})

	_ = b.Do(fail)
	_ = b.Do(fail)
	c.advance(2 * time.Minute)
	_ = b.Do(fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerIsFailure(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: tripAfter(1),
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, context.Canceled) },
	})

	assert.ErrorIs(t, b.Do(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(1)})
	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestGroupIsolatesKeys(t *testing.T) {
	g := NewGroup("fetch", Settings{ReadyToTrip: tripAfter(1)})

	assert.ErrorIs(t, g.Do("bad.example", fail), errFailed)
	assert.ErrorIs(t, g.Do("bad.example", ok), ErrCircuitOpen)
	assert.NoError(t, g.Do("good.example", ok))

	assert.Equal(t, "fetch:bad.example", g.Get("bad.example").Name())
	assert.Equal(t, map[string]State{"bad.example": StateOpen, "good.example": StateClosed}, g.States())
}
