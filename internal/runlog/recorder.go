package runlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobsync/internal/model"
)

// Recorder owns the audit record of one run: it creates the SyncRun, appends
// leveled log lines to it, forwards everything to a sink, and finalizes the
// run with exactly one terminal event.
type Recorder struct {
	store  model.RunStore
	sink   Sink
	logger *slog.Logger
	ctx    context.Context
	now    func() time.Time

	mu       sync.Mutex
	run      model.SyncRun
	finished bool
}

// Start creates a running SyncRun for syncType and emits sync_started.
// Store writes made through the recorder outlive ctx cancellation so an
// aborted run is still finalized.
func Start(ctx context.Context, store model.RunStore, sink Sink, logger *slog.Logger, syncType, source string) (*Recorder, error) {
	if sink == nil {
		sink = NopSink{}
	}
	r := &Recorder{
		store:  store,
		sink:   sink,
		logger: logger,
		ctx:    context.WithoutCancel(ctx),
		now:    time.Now,
	}
	r.run = model.SyncRun{
		ID:        uuid.NewString(),
		SyncType:  syncType,
		Source:    source,
		Status:    model.RunRunning,
		StartedAt: r.now().UTC(),
	}
	run := r.run
	if err := store.CreateSyncRun(r.ctx, &run); err != nil {
		return nil, err
	}
	r.emit(Event{Type: EventSyncStarted})
	return r, nil
}

// ID returns the run id.
func (r *Recorder) ID() string {
	return r.run.ID
}

// Run returns a copy of the current run record.
func (r *Recorder) Run() model.SyncRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

// SetSource records which source the run ended up processing.
func (r *Recorder) SetSource(source string) {
	r.mu.Lock()
	r.run.Source = source
	r.mu.Unlock()
}

// Log appends one leveled line to the run and forwards it. It matches
// model.LogFunc so it can be handed to sources and workers.
func (r *Recorder) Log(level model.LogLevel, msg string) {
	entry := model.LogEntry{Time: r.now().UTC(), Level: level, Message: msg}
	if err := r.store.AppendRunLog(r.ctx, r.run.ID, entry); err != nil {
		r.logger.Warn("appending run log failed", "run_id", r.run.ID, "error", err)
	}
	r.emit(Event{Type: EventLog, Level: level, Message: msg, Time: entry.Time})
}

// Report emits intermediate stats without changing the run status.
func (r *Recorder) Report(stats model.RunStats) {
	r.mu.Lock()
	r.run.Stats = stats
	r.mu.Unlock()
	r.emit(Event{Type: EventReport, Stats: &stats})
}

// Complete finalizes the run as completed. Aborted runs also complete, with
// stats.Aborted set.
func (r *Recorder) Complete(stats model.RunStats) error {
	return r.finish(model.RunCompleted, stats, nil)
}

// Fail finalizes the run as failed with cause.
func (r *Recorder) Fail(stats model.RunStats, cause error) error {
	return r.finish(model.RunFailed, stats, cause)
}

func (r *Recorder) finish(status model.RunStatus, stats model.RunStats, cause error) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil
	}
	r.finished = true
	done := r.now().UTC()
	r.run.Status = status
	r.run.Stats = stats
	r.run.CompletedAt = &done
	if cause != nil {
		r.run.Error = cause.Error()
	}
	run := r.run
	r.mu.Unlock()

	err := r.store.UpdateSyncRun(r.ctx, &run)
	if err != nil {
		r.logger.Error("finalizing run failed", "run_id", run.ID, "error", err)
	}

	if status == model.RunFailed {
		r.emit(Event{Type: EventError, Message: run.Error, Stats: &stats, Time: done})
	} else {
		r.emit(Event{Type: EventComplete, Stats: &stats, Time: done})
	}
	return err
}

func (r *Recorder) emit(e Event) {
	r.mu.Lock()
	e.RunID, e.SyncType, e.Source = r.run.ID, r.run.SyncType, r.run.Source
	r.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = r.now().UTC()
	}
	r.sink.Emit(e)
}
