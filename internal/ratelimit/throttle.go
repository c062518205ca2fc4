package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Throttle enforces a minimum spacing between dispatched requests to one
// source. Concurrent callers are queued onto successive slots, never rejected.
type Throttle struct {
	mu       sync.Mutex
	wait     time.Duration
	leading  bool      // an idle throttle lets the first caller through immediately
	trailing bool      // spacing is also measured from the completion reported via Done
	next     time.Time // earliest dispatch time for the next caller
	now      func() time.Time
}

// NewThrottle creates a throttle with the given spacing.
func NewThrottle(wait time.Duration, leading, trailing bool) *Throttle {
	return &Throttle{
		wait:     wait,
		leading:  leading,
		trailing: trailing,
		now:      time.Now,
	}
}

// Wait blocks until the caller's slot comes up. Returns an error if the
// context is cancelled while waiting; the reserved slot is then forfeited.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.wait <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := t.now()
	at := t.next
	if at.IsZero() || at.Before(now) {
		// Idle throttle.
		at = now
		if !t.leading {
			at = now.Add(t.wait)
		}
	}
	t.next = at.Add(t.wait)
	t.mu.Unlock()

	remaining := at.Sub(now)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("throttle wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Done reports that a dispatched request finished. With trailing spacing the
// next slot is pushed to at least wait after completion.
func (t *Throttle) Done() {
	if !t.trailing || t.wait <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if candidate := t.now().Add(t.wait); candidate.After(t.next) {
		t.next = candidate
	}
}

// Reset forgets any reserved slots.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.next = time.Time{}
	t.mu.Unlock()
}
