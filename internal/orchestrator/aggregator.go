package orchestrator

import (
	"context"
	"fmt"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/runlog"
)

// RunAggregator pulls one bounded slice from the next aggregator in rotation.
// Paged feeds resume from the saved offset; tag-rotating feeds move to the
// next tag once a tag's feed is exhausted. A failed feed still hands the
// rotation on to the next source.
func (o *Orchestrator) RunAggregator(ctx context.Context, opts Options) (model.SyncRun, error) {
	rec, err := runlog.Start(ctx, o.store, o.sink(opts), o.logger, model.SyncAggregator, "")
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("starting aggregator run: %w", err)
	}
	var stats model.RunStats

	sources := filterSources(o.aggregators, opts.Sources)
	if len(sources) == 0 {
		rec.Log(model.LevelWarning, "no aggregator sources enabled")
		return finish(ctx, rec, stats, nil)
	}

	state := o.loadCursor(ctx, model.SyncAggregator, rec)
	src := nextSource(sources, state.LastSource)
	name := src.Name()
	rec.SetSource(name)

	var tags []string
	if tr, ok := src.(model.TagRotator); ok {
		tags = tr.Tags()
	}
	tagIndex := 0
	query := ""
	if len(tags) > 0 {
		tagIndex = state.TagIndex[name]
		if tagIndex < 0 || tagIndex >= len(tags) {
			tagIndex = 0
		}
		query = tags[tagIndex]
	}
	offset := state.Offsets[name]

	msg := fmt.Sprintf("%s: fetching from offset %d", name, offset)
	if query != "" {
		msg = fmt.Sprintf("%s: fetching %q from offset %d", name, query, offset)
	}
	rec.Log(model.LevelInfo, msg)

	stream := src.Fetch(model.FetchOptions{
		Query:     query,
		JobOffset: offset,
		Limit:     o.settings.AggregatorLimit,
		Log:       rec.Log,
	})
	_, cause := drain(ctx, stream, o.upserter(opts), rec, &stats)
	if ctx.Err() != nil {
		return finish(ctx, rec, stats, ctx.Err())
	}

	next := model.BatchState{
		LastSource: name,
		Indices:    state.Indices,
		Offsets:    copyMap(state.Offsets),
		TagIndex:   copyMap(state.TagIndex),
	}
	ss := stream.Stats()
	switch {
	case cause != nil:
		cause = fmt.Errorf("%s feed: %w", name, cause)
	case ss.Exhausted:
		next.Offsets[name] = 0
		if len(tags) > 0 {
			next.TagIndex[name] = (tagIndex + 1) % len(tags)
		}
		rec.Log(model.LevelInfo, fmt.Sprintf("%s: feed exhausted, rotating", name))
	default:
		next.Offsets[name] = ss.NextOffset
	}
	if err := o.saveCursor(ctx, model.SyncAggregator, next); err != nil && cause == nil {
		cause = err
	}
	return finish(ctx, rec, stats, cause)
}
