// Package throttle bounds the number of outbound calls issued within a
// rolling time window.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock is the time source used by a Throttle.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Throttle) {
		t.clock = c
	}
}

// Throttle is a sliding-window call limiter. At most limit calls are
// recorded in any half-open interval (now-window, now].
type Throttle struct {
	limit  int
	window time.Duration
	clock  Clock

	mu    sync.Mutex
	calls []time.Time // oldest first
}

// New returns a Throttle allowing limit calls per window.
func New(limit int, window time.Duration, opts ...Option) (*Throttle, error) {
	if limit < 1 {
		return nil, fmt.Errorf("throttle: limit must be at least 1, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("throttle: window must be positive, got %s", window)
	}

	t := &Throttle{
		limit:  limit,
		window: window,
		clock:  realClock{},
		calls:  make([]time.Time, 0, limit),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Limit returns the configured call limit.
func (t *Throttle) Limit() int { return t.limit }

// Window returns the configured window.
func (t *Throttle) Window() time.Duration { return t.window }

// Wait blocks until one more call fits in the window, then records it.
// Callers are served one at a time.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		now := t.clock.Now()
		t.evict(now)
		if len(t.calls) < t.limit {
			t.calls = append(t.calls, now)
			return nil
		}

		wait := t.calls[0].Add(t.window).Sub(now)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(wait):
		}
	}
}

// Do waits for a slot and then runs fn.
func (t *Throttle) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := t.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Len reports how many calls are recorded in the current window.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evict(t.clock.Now())
	return len(t.calls)
}

// evict drops calls at or before now-window. Caller holds mu.
func (t *Throttle) evict(now time.Time) {
	cutoff := now.Add(-t.window)
	n := 0
	for n < len(t.calls) && !t.calls[n].After(cutoff) {
		n++
	}
	if n > 0 {
		t.calls = append(t.calls[:0], t.calls[n:]...)
	}
}

// Wrap returns fn guarded by t: every invocation waits for a slot first.
func Wrap[T any](t *Throttle, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var out T
		err := t.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		return out, err
	}
}
