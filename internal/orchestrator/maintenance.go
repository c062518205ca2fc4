package orchestrator

import (
	"context"
	"fmt"

	"github.com/amishk599/jobsync/internal/ingest"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

// RunDiscovery probes one bounded batch of pending candidates.
func (o *Orchestrator) RunDiscovery(ctx context.Context, opts Options) (model.SyncRun, error) {
	rec, err := runlog.Start(ctx, o.store, o.sink(opts), o.logger, model.SyncDiscovery, "")
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("starting discovery run: %w", err)
	}
	stats, cause := o.prober.Run(ctx, rec.Log)
	return finish(ctx, rec, stats, cause)
}

// RunCleanup removes duplicate jobs using the configured grouping mode.
func (o *Orchestrator) RunCleanup(ctx context.Context, mode ingest.DedupMode, opts Options) (model.SyncRun, error) {
	rec, err := runlog.Start(ctx, o.store, o.sink(opts), o.logger, model.SyncCleanup, "")
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("starting cleanup run: %w", err)
	}
	var stats model.RunStats
	cause := o.cleanup(ctx, mode, rec, &stats)
	return finish(ctx, rec, stats, cause)
}

func (o *Orchestrator) cleanup(ctx context.Context, mode ingest.DedupMode, rec *runlog.Recorder, stats *model.RunStats) error {
	if mode == "" {
		mode = o.settings.DedupMode
	}
	if mode == "" {
		mode = ingest.ByTitleCompany
	}
	removed, err := ingest.ResolveDuplicates(ctx, o.store, mode, o.logger)
	if err != nil {
		return err
	}
	stats.DuplicatesRemoved += removed
	rec.Log(model.LevelSuccess, fmt.Sprintf("removed %d duplicate jobs (%s)", removed, mode))
	return nil
}
