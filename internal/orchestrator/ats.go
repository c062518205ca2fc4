package orchestrator

import (
	"context"
	"fmt"

	"github.com/amishk599/jobsync/internal/ingest"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

// RunATS processes the next slice of companies on the next ATS in rotation.
// A company whose remote jobs exceed JobsPerCompany keeps the cursor on
// itself, with its own job offset advanced, until its list is exhausted.
func (o *Orchestrator) RunATS(ctx context.Context, opts Options) (model.SyncRun, error) {
	rec, err := runlog.Start(ctx, o.store, o.sink(opts), o.logger, model.SyncATS, "")
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("starting ats run: %w", err)
	}
	var stats model.RunStats

	sources := filterSources(o.ats, opts.Sources)
	if len(sources) == 0 {
		rec.Log(model.LevelWarning, "no ATS sources enabled")
		return finish(ctx, rec, stats, nil)
	}

	state := o.loadCursor(ctx, model.SyncATS, rec)
	src := nextSource(sources, state.LastSource)
	rec.SetSource(src.Name())

	var companies []string
	if cl, ok := src.(model.CompanyLister); ok {
		companies = cl.Companies()
	}

	next := model.BatchState{
		LastSource: src.Name(),
		Indices:    copyMap(state.Indices),
		Offsets:    state.Offsets,
		TagIndex:   state.TagIndex,
	}
	if len(companies) == 0 {
		rec.Log(model.LevelWarning, fmt.Sprintf("%s has no companies configured", src.Name()))
		return finish(ctx, rec, stats, o.saveCursor(ctx, model.SyncATS, next))
	}

	start := state.Indices[src.Name()]
	if start < 0 || start >= len(companies) {
		start = 0
	}
	perRun := o.settings.CompaniesPerRun
	if perRun <= 0 {
		perRun = len(companies)
	}
	end := min(start+perRun, len(companies))
	rec.Log(model.LevelInfo, fmt.Sprintf("%s: companies %d-%d of %d", src.Name(), start+1, end, len(companies)))

	up := o.upserter(opts)
	index := start
	var cause error
	for index < end {
		slug := companies[index]
		more, err := o.syncCompany(ctx, src, slug, up, rec, &stats)
		if ctx.Err() != nil {
			// Aborted: the slice is retried next tick.
			return finish(ctx, rec, stats, ctx.Err())
		}
		if err != nil {
			cause = fmt.Errorf("%s company %s: %w", src.Name(), slug, err)
			index++
			break
		}
		if more {
			break
		}
		index++
	}

	if index >= len(companies) {
		index = 0
		rec.Log(model.LevelInfo, fmt.Sprintf("%s: reached end of company list, wrapping", src.Name()))
	}
	next.Indices[src.Name()] = index
	if err := o.saveCursor(ctx, model.SyncATS, next); err != nil && cause == nil {
		cause = err
	}
	return finish(ctx, rec, stats, cause)
}

// syncCompany fetches one window of a company's remote jobs and saves its
// progress. more reports that jobs remain past the window.
func (o *Orchestrator) syncCompany(ctx context.Context, src model.JobSource, slug string, up *ingest.Upserter, rec *runlog.Recorder, stats *model.RunStats) (bool, error) {
	progress, err := o.store.GetCompanyProgress(ctx, slug, src.Name())
	if err != nil {
		rec.Log(model.LevelWarning, fmt.Sprintf("%s: progress unreadable, starting at 0: %v", slug, err))
		progress = model.CompanyJobProgress{CompanySlug: slug, Source: src.Name()}
	}

	stream := src.Fetch(model.FetchOptions{
		Companies: []string{slug},
		JobOffset: progress.LastJobOffset,
		Limit:     o.settings.JobsPerCompany,
		Log:       rec.Log,
	})
	batches, err := drain(ctx, stream, up, rec, stats)
	if err != nil {
		return false, err
	}

	taken, total := 0, 0
	for _, b := range batches {
		taken += len(b.Jobs)
		total = b.TotalRemote
	}

	more := taken > 0 && progress.LastJobOffset+taken < total
	if more {
		progress.LastJobOffset += taken
		rec.Log(model.LevelInfo, fmt.Sprintf("%s: %d of %d remote jobs done, continuing next run", slug, progress.LastJobOffset, total))
	} else {
		progress.LastJobOffset = 0
	}
	if taken > 0 {
		progress.TotalJobsDiscovered = total
	}
	if err := o.store.SaveCompanyProgress(context.WithoutCancel(ctx), progress); err != nil {
		rec.Log(model.LevelWarning, fmt.Sprintf("%s: saving progress: %v", slug, err))
	}
	return more, nil
}
