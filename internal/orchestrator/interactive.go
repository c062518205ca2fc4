package orchestrator

import (
	"context"
	"fmt"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

// RunInteractive syncs every selected source in one go for an operator
// watching the event stream. It ignores and never writes cursors. Failures
// are isolated per source; the run fails only when every source failed.
func (o *Orchestrator) RunInteractive(ctx context.Context, opts Options) (model.SyncRun, error) {
	rec, err := runlog.Start(ctx, o.store, o.sink(opts), o.logger, model.SyncManual, "")
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("starting interactive run: %w", err)
	}
	var stats model.RunStats
	up := o.upserter(opts)

	ats := filterSources(o.ats, opts.Sources)
	aggregators := filterSources(o.aggregators, opts.Sources)
	total := len(ats) + len(aggregators)
	failed := 0
	var lastErr error

	for _, src := range ats {
		var companies []string
		if cl, ok := src.(model.CompanyLister); ok {
			companies = cl.Companies()
		}
		rec.Log(model.LevelInfo, fmt.Sprintf("%s: syncing %d companies", src.Name(), len(companies)))
		stream := src.Fetch(model.FetchOptions{Limit: o.settings.JobsPerCompany, Log: rec.Log})
		if _, err := drain(ctx, stream, up, rec, &stats); err != nil {
			if ctx.Err() != nil {
				return finish(ctx, rec, stats, ctx.Err())
			}
			failed++
			lastErr = fmt.Errorf("%s: %w", src.Name(), err)
			rec.Log(model.LevelError, lastErr.Error())
		}
	}

	for _, src := range aggregators {
		queries := []string{""}
		if tr, ok := src.(model.TagRotator); ok && len(tr.Tags()) > 0 {
			queries = tr.Tags()
		}
		var srcErr error
		for _, q := range queries {
			rec.Log(model.LevelInfo, fmt.Sprintf("%s: syncing %s", src.Name(), describeQuery(q)))
			stream := src.Fetch(model.FetchOptions{Query: q, Limit: o.settings.AggregatorLimit, Log: rec.Log})
			if _, err := drain(ctx, stream, up, rec, &stats); err != nil {
				if ctx.Err() != nil {
					return finish(ctx, rec, stats, ctx.Err())
				}
				srcErr = fmt.Errorf("%s: %w", src.Name(), err)
				rec.Log(model.LevelError, srcErr.Error())
			}
		}
		if srcErr != nil {
			failed++
			lastErr = srcErr
		}
	}

	if opts.Discovery {
		ds, err := o.prober.Run(ctx, rec.Log)
		stats.Add(ds)
		if err != nil {
			if ctx.Err() != nil {
				return finish(ctx, rec, stats, ctx.Err())
			}
			rec.Log(model.LevelError, fmt.Sprintf("discovery: %v", err))
		}
	}

	if opts.Cleanup {
		if err := o.cleanup(ctx, "", rec, &stats); err != nil {
			if ctx.Err() != nil {
				return finish(ctx, rec, stats, ctx.Err())
			}
			rec.Log(model.LevelError, fmt.Sprintf("cleanup: %v", err))
		}
	}

	rec.Report(stats)
	var cause error
	if total > 0 && failed == total {
		cause = fmt.Errorf("all %d sources failed, last: %w", total, lastErr)
	}
	return finish(ctx, rec, stats, cause)
}

func describeQuery(q string) string {
	if q == "" {
		return "full feed"
	}
	return fmt.Sprintf("%q", q)
}
