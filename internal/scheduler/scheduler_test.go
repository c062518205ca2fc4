package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// orderRecorder collects job names in the order they ran.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) job(name, spec string, err error) Job {
	return Job{Name: name, Spec: spec, Run: func(context.Context) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return err
	}}
}

func (r *orderRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(d)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
}

func TestRun_CancelReturnsPromptly(t *testing.T) {
	rec := &orderRecorder{}
	s := NewScheduler([]Job{rec.job("ats", "@every 1h", nil)}, false, discardLogger())
	runFor(t, s, 100*time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("jobs ran without a tick: %v", got)
	}
}

func TestRun_ImmediateRunInOrder(t *testing.T) {
	rec := &orderRecorder{}
	jobs := []Job{
		rec.job("ats", "@every 1h", nil),
		rec.job("aggregator", "@every 1h", errors.New("feed down")),
		rec.job("discovery", "@every 1h", nil),
	}
	s := NewScheduler(jobs, true, discardLogger())
	runFor(t, s, 200*time.Millisecond)

	got := rec.snapshot()
	want := []string{"ats", "aggregator", "discovery"}
	if len(got) != len(want) {
		t.Fatalf("ran %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRun_TicksOnSpec(t *testing.T) {
	var calls atomic.Int32
	job := Job{Name: "ats", Spec: "@every 1s", Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}
	s := NewScheduler([]Job{job}, false, discardLogger())
	runFor(t, s, 1500*time.Millisecond)

	if got := calls.Load(); got < 1 {
		t.Errorf("calls = %d, want >= 1", got)
	}
}

func TestRun_SkipsOverlappingRuns(t *testing.T) {
	var running, maxRunning, calls atomic.Int32
	job := Job{Name: "slow", Spec: "@every 1s", Run: func(ctx context.Context) error {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case <-ctx.Done():
		case <-time.After(1500 * time.Millisecond):
		}
		return nil
	}}
	s := NewScheduler([]Job{job}, true, discardLogger())
	runFor(t, s, 1200*time.Millisecond)

	if got := maxRunning.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
}

func TestRun_InvalidSpec(t *testing.T) {
	s := NewScheduler([]Job{{Name: "bad", Spec: "every now and then", Run: func(context.Context) error { return nil }}}, false, discardLogger())
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
