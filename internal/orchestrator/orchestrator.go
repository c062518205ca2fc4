package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/amishk599/jobsync/internal/categorize"
	"github.com/amishk599/jobsync/internal/discovery"
	"github.com/amishk599/jobsync/internal/ingest"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

// Settings are the per-invocation bounds read from configuration.
type Settings struct {
	CompaniesPerRun int  // ATS companies processed per invocation
	JobsPerCompany  int  // jobs taken from one company per invocation; 0 = all
	AggregatorLimit int  // jobs taken from one aggregator feed per invocation; 0 = no cap
	DiscoveryBatch  int  // candidates probed per discovery invocation
	AddNew          bool // default upsert policy for scheduled runs
	UpdateExisting  bool
	DedupMode       ingest.DedupMode
}

// DefaultSettings returns conservative bounds for short invocations.
func DefaultSettings() Settings {
	return Settings{
		CompaniesPerRun: 5,
		JobsPerCompany:  50,
		AggregatorLimit: 100,
		DiscoveryBatch:  discovery.DefaultBatchSize,
		AddNew:          true,
		UpdateExisting:  true,
		DedupMode:       ingest.ByTitleCompany,
	}
}

// Options narrow one invocation. Zero-valued policy fields fall back to
// Settings for scheduled runs.
type Options struct {
	Sources        []string // restrict to these source names; empty = all enabled
	AddNew         *bool
	UpdateExisting *bool
	Discovery      bool // interactive: also probe pending candidates
	Cleanup        bool // interactive: also resolve duplicates
	Sink           runlog.Sink
}

// Orchestrator runs one bounded slice of work per call and persists the
// cursor the next call resumes from.
type Orchestrator struct {
	store       model.Store
	cursors     model.CursorStore
	ats         []model.JobSource
	aggregators []model.JobSource
	prober      *discovery.Prober
	settings    Settings
	logger      *slog.Logger
}

// New wires an orchestrator. sources keep their order, which is the rotation
// order; they are split by Kind. A nil cursors uses the main store.
func New(store model.Store, cursors model.CursorStore, sources []model.JobSource, boards []model.BoardProber, settings Settings, logger *slog.Logger) *Orchestrator {
	if cursors == nil {
		cursors = store
	}
	o := &Orchestrator{
		store:    store,
		cursors:  cursors,
		prober:   discovery.NewProber(store, boards, settings.DiscoveryBatch, logger),
		settings: settings,
		logger:   logger,
	}
	for _, src := range sources {
		switch src.Kind() {
		case model.KindATS:
			o.ats = append(o.ats, src)
		case model.KindAggregator:
			o.aggregators = append(o.aggregators, src)
		}
	}
	return o
}

// Prepare seeds the category lookup table.
func (o *Orchestrator) Prepare(ctx context.Context) error {
	if err := o.store.EnsureCategories(ctx, categorize.Categories()); err != nil {
		return fmt.Errorf("preparing store: %w", err)
	}
	return nil
}

// Sources returns the names of every wired source, ATS first.
func (o *Orchestrator) Sources() []string {
	var names []string
	for _, s := range append(slices.Clone(o.ats), o.aggregators...) {
		names = append(names, s.Name())
	}
	return names
}

func (o *Orchestrator) upserter(opts Options) *ingest.Upserter {
	policy := ingest.Policy{AddNew: o.settings.AddNew, UpdateExisting: o.settings.UpdateExisting}
	if opts.AddNew != nil {
		policy.AddNew = *opts.AddNew
	}
	if opts.UpdateExisting != nil {
		policy.UpdateExisting = *opts.UpdateExisting
	}
	return ingest.NewUpserter(o.store, policy, o.logger)
}

func (o *Orchestrator) sink(opts Options) runlog.Sink {
	if opts.Sink == nil {
		return runlog.NewSlogSink(o.logger)
	}
	return opts.Sink
}

// loadCursor treats a missing or unreadable cursor as the start of rotation.
func (o *Orchestrator) loadCursor(ctx context.Context, syncType string, rec *runlog.Recorder) model.BatchState {
	state, err := o.cursors.LoadCursor(ctx, syncType)
	if err != nil {
		rec.Log(model.LevelWarning, fmt.Sprintf("cursor unreadable, starting rotation over: %v", err))
		return model.BatchState{}
	}
	return state
}

// saveCursor persists the rotation state. A failure fails the run.
func (o *Orchestrator) saveCursor(ctx context.Context, syncType string, state model.BatchState) error {
	// Saved even when the caller has gone away mid-write.
	if err := o.cursors.SaveCursor(context.WithoutCancel(ctx), syncType, state); err != nil {
		return fmt.Errorf("saving %s cursor: %w", syncType, err)
	}
	return nil
}

// finish closes the run: aborted runs complete with the flag set, failures
// are recorded with their cause.
func finish(ctx context.Context, rec *runlog.Recorder, stats model.RunStats, cause error) (model.SyncRun, error) {
	switch {
	case ctx.Err() != nil && (cause == nil || errors.Is(cause, ctx.Err())):
		stats.Aborted = true
		rec.Log(model.LevelWarning, "run aborted")
		rec.Complete(stats)
		return rec.Run(), nil
	case cause != nil:
		rec.Log(model.LevelError, cause.Error())
		rec.Fail(stats, cause)
		return rec.Run(), cause
	default:
		rec.Complete(stats)
		return rec.Run(), nil
	}
}

// nextSource picks the source after last in rotation order, wrapping to the
// first. An unknown or empty last starts at the first.
func nextSource(sources []model.JobSource, last string) model.JobSource {
	for i, s := range sources {
		if s.Name() == last {
			return sources[(i+1)%len(sources)]
		}
	}
	return sources[0]
}

func filterSources(sources []model.JobSource, names []string) []model.JobSource {
	if len(names) == 0 {
		return sources
	}
	var out []model.JobSource
	for _, s := range sources {
		if slices.Contains(names, s.Name()) {
			out = append(out, s)
		}
	}
	return out
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// drain upserts every batch of stream and folds the counts into stats.
func drain(ctx context.Context, stream model.BatchStream, up *ingest.Upserter, rec *runlog.Recorder, stats *model.RunStats) ([]model.Batch, error) {
	defer stream.Close()

	var batches []model.Batch
	for stream.Next(ctx) {
		b := stream.Batch()
		batches = append(batches, b)
		bs, err := up.UpsertBatch(ctx, b.Jobs, rec.Log)
		stats.Add(bs)
		if err != nil {
			return batches, err
		}
		rec.Report(*stats)
	}

	ss := stream.Stats()
	stats.Companies += ss.Companies
	stats.NoBoard += ss.NoBoard
	stats.Failed += ss.Failed
	stats.Skipped += ss.Skipped
	return batches, stream.Err()
}
