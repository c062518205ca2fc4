package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsync/internal/model"
)

// Outcome is what happened to one listing.
type Outcome int

const (
	Skipped Outcome = iota
	Added
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "skipped"
	}
}

// Policy selects which writes the upserter may perform.
type Policy struct {
	AddNew         bool
	UpdateExisting bool
}

// Upserter writes normalized listings to the job store keyed by source URL.
type Upserter struct {
	store  model.JobStore
	policy Policy
	logger *slog.Logger
}

// NewUpserter creates an upserter over store.
func NewUpserter(store model.JobStore, policy Policy, logger *slog.Logger) *Upserter {
	return &Upserter{store: store, policy: policy, logger: logger}
}

// Upsert normalizes raw and inserts or updates it according to the policy.
// Listings without a title or source URL are skipped.
func (u *Upserter) Upsert(ctx context.Context, raw model.RawJob) (Outcome, error) {
	job := Normalize(raw)
	if job.Title == "" || job.SourceURL == "" {
		return Skipped, nil
	}

	existing, err := u.store.GetJobBySourceURL(ctx, job.SourceURL)
	switch {
	case errors.Is(err, model.ErrNotFound):
		if !u.policy.AddNew {
			return Skipped, nil
		}
		if err := u.store.InsertJob(ctx, job); err != nil {
			if errors.Is(err, model.ErrDuplicate) {
				// Lost a race with a concurrent writer.
				return Skipped, nil
			}
			return Skipped, fmt.Errorf("upserting %s: %w", job.SourceURL, err)
		}
		return Added, nil

	case err != nil:
		return Skipped, fmt.Errorf("upserting %s: %w", job.SourceURL, err)
	}

	if !u.policy.UpdateExisting {
		return Skipped, nil
	}
	job.ID = existing.ID
	job.CreatedAt = existing.CreatedAt
	if err := u.store.UpdateJob(ctx, job); err != nil {
		return Skipped, fmt.Errorf("upserting %s: %w", job.SourceURL, err)
	}
	return Updated, nil
}

// UpsertBatch writes every listing of a batch. One listing failing never stops
// the rest; only a cancelled context returns an error.
func (u *Upserter) UpsertBatch(ctx context.Context, jobs []model.RawJob, logf model.LogFunc) (model.RunStats, error) {
	var stats model.RunStats
	for _, raw := range jobs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Fetched++

		outcome, err := u.Upsert(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			u.logger.Warn("upsert failed", "url", raw.SourceURL, "error", err)
			if logf != nil {
				logf(model.LevelWarning, fmt.Sprintf("failed to save %q: %v", raw.Title, err))
			}
			continue
		}

		switch outcome {
		case Added:
			stats.Added++
		case Updated:
			stats.Updated++
		default:
			stats.Skipped++
		}
	}
	return stats, nil
}
