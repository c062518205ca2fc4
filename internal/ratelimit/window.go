package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const minPoll = 10 * time.Millisecond

// SlidingWindow caps requests to maxRequests within any trailing interval of
// length window. Callers block on WaitForSlot rather than fail.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	stamps      []time.Time // dispatch times inside the current window, oldest first
	now         func() time.Time
}

// NewSlidingWindow creates a limiter. maxRequests <= 0 disables limiting.
func NewSlidingWindow(maxRequests int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// prune drops timestamps that have left the window. Caller holds mu.
func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]
}

// CheckLimit reports whether a request could be dispatched right now without
// recording one.
func (w *SlidingWindow) CheckLimit() bool {
	if w.maxRequests <= 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps) < w.maxRequests
}

// TryAcquire records a request if a slot is free and reports whether it did.
func (w *SlidingWindow) TryAcquire() bool {
	ok, _ := w.tryAcquire()
	return ok
}

// tryAcquire returns, on failure, how long until the oldest stamp expires.
func (w *SlidingWindow) tryAcquire() (bool, time.Duration) {
	if w.maxRequests <= 0 {
		return true, 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.stamps) < w.maxRequests {
		w.stamps = append(w.stamps, now)
		return true, 0
	}
	return false, w.stamps[0].Add(w.window).Sub(now)
}

// WaitForSlot sleeps until a slot is free and records the request.
func (w *SlidingWindow) WaitForSlot(ctx context.Context) error {
	for {
		ok, wait := w.tryAcquire()
		if ok {
			return nil
		}
		if wait < minPoll {
			wait = minPoll
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Reset clears the recorded requests.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	w.stamps = nil
	w.mu.Unlock()
}
