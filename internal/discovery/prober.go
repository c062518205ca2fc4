package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobsync/internal/categorize"
	"github.com/amishk599/jobsync/internal/model"
)

// DefaultBatchSize bounds how many candidates one run checks.
const DefaultBatchSize = 10

// Prober checks pending candidates against each ATS in a fixed order and
// records the boards it finds.
type Prober struct {
	store     model.DiscoveryStore
	boards    []model.BoardProber
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewProber creates a prober. boards are tried in the order given.
func NewProber(store model.DiscoveryStore, boards []model.BoardProber, batchSize int, logger *slog.Logger) *Prober {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Prober{
		store:     store,
		boards:    boards,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// staleChecking is how long a candidate may stay in checking before it is
// assumed orphaned by a crashed run and handed back to pending.
const staleChecking = 15 * time.Minute

// Run checks one batch of pending candidates. A failure on one candidate is
// counted and logged, and the batch moves on.
func (p *Prober) Run(ctx context.Context, logf model.LogFunc) (model.RunStats, error) {
	var stats model.RunStats
	emit := func(level model.LogLevel, msg string) {
		if logf != nil {
			logf(level, msg)
		}
	}

	if n := p.releaseStale(ctx); n > 0 {
		emit(model.LevelWarning, fmt.Sprintf("returned %d stale checking candidates to pending", n))
	}

	candidates, err := p.store.ListPotentialCompanies(ctx, model.CandidatePending, p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("discovery: listing candidates: %w", err)
	}
	if len(candidates) == 0 {
		emit(model.LevelInfo, "no pending companies to check")
		return stats, nil
	}
	emit(model.LevelInfo, fmt.Sprintf("checking %d candidate companies", len(candidates)))

	for _, pc := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		summary, inserted, err := p.Check(ctx, pc)
		stats.Checked++
		switch {
		case err == nil:
			stats.Discovered++
			if inserted {
				stats.Added++
			} else {
				stats.Updated++
			}
			emit(model.LevelSuccess, fmt.Sprintf("found %s on %s (%d remote of %d jobs)",
				summary.Slug, summary.Source, summary.RemoteJobCount, summary.JobCount))
		case errors.Is(err, model.ErrNoBoard):
			stats.NotFound++
			emit(model.LevelInfo, fmt.Sprintf("%s: no board on any ATS", pc.Slug))
		case ctx.Err() != nil:
			return stats, ctx.Err()
		default:
			stats.Failed++
			p.logger.Warn("candidate check failed", "candidate", pc.Slug, "error", err)
			emit(model.LevelWarning, fmt.Sprintf("%s: %v", pc.Slug, err))
		}
	}

	p.logger.Info("discovery batch done",
		"checked", stats.Checked,
		"discovered", stats.Discovered,
		"not_found", stats.NotFound,
		"failed", stats.Failed,
	)
	return stats, nil
}

// releaseStale returns candidates left in checking for longer than
// staleChecking to pending and reports how many it moved.
func (p *Prober) releaseStale(ctx context.Context) int {
	checking, err := p.store.ListPotentialCompanies(ctx, model.CandidateChecking, 0)
	if err != nil {
		p.logger.Warn("listing checking candidates", "error", err)
		return 0
	}

	cutoff := p.now().Add(-staleChecking)
	released := 0
	for _, pc := range checking {
		if pc.LastCheckedAt != nil && pc.LastCheckedAt.After(cutoff) {
			continue
		}
		pc.Status = model.CandidatePending
		if err := p.store.UpdatePotentialCompany(ctx, pc); err != nil {
			p.logger.Warn("releasing stale candidate", "candidate", pc.Slug, "error", err)
			continue
		}
		released++
	}
	return released
}

// Check probes every ATS with every slug variation of pc until one board
// answers, records the board, then persists the candidate's new status.
// inserted reports that the discovered company was new. It returns
// model.ErrNoBoard when no ATS knows the company. Probe and record errors
// leave the candidate pending so a later run retries it.
func (p *Prober) Check(ctx context.Context, pc model.PotentialCompany) (summary model.BoardSummary, inserted bool, err error) {
	now := p.now()
	pc.Status = model.CandidateChecking
	pc.LastCheckedAt = &now
	if err := p.store.UpdatePotentialCompany(ctx, pc); err != nil {
		return model.BoardSummary{}, false, fmt.Errorf("discovery: marking %s checking: %w", pc.Slug, err)
	}

	summary, err = p.probe(ctx, pc.Slug)
	if err == nil {
		// The company row goes first: a discovered candidate always has one.
		inserted, err = p.record(context.WithoutCancel(ctx), summary)
	}

	now = p.now()
	pc.CheckCount++
	pc.LastCheckedAt = &now
	switch {
	case err == nil:
		pc.Status = model.CandidateDiscovered
	case errors.Is(err, model.ErrNoBoard):
		pc.Status = model.CandidateNotFound
	default:
		pc.Status = model.CandidatePending
	}

	// The status write must land even when the caller has gone away.
	if uerr := p.store.UpdatePotentialCompany(context.WithoutCancel(ctx), pc); uerr != nil {
		return model.BoardSummary{}, false, fmt.Errorf("discovery: updating %s: %w", pc.Slug, uerr)
	}
	return summary, inserted, err
}

func (p *Prober) probe(ctx context.Context, name string) (model.BoardSummary, error) {
	variations := SlugVariations(name)
	var lastErr error
	for _, board := range p.boards {
		for _, v := range variations {
			summary, err := board.Probe(ctx, v)
			if err == nil {
				p.logger.Debug("board found", "candidate", name, "slug", v, "source", board.Name())
				return summary, nil
			}
			if ctx.Err() != nil {
				return model.BoardSummary{}, ctx.Err()
			}
			if !errors.Is(err, model.ErrNoBoard) {
				p.logger.Warn("probe failed", "candidate", name, "slug", v, "source", board.Name(), "error", err)
				lastErr = err
			}
		}
	}
	if lastErr != nil {
		return model.BoardSummary{}, lastErr
	}
	return model.BoardSummary{}, fmt.Errorf("discovery: %s: %w", name, model.ErrNoBoard)
}

func (p *Prober) record(ctx context.Context, s model.BoardSummary) (bool, error) {
	dc := model.DiscoveredCompany{
		Slug:              s.Slug,
		Source:            s.Source,
		JobCount:          s.JobCount,
		RemoteJobCount:    s.RemoteJobCount,
		Departments:       s.Departments,
		SuggestedCategory: categorize.SuggestFromTitles(s.Titles),
	}
	inserted, err := p.store.UpsertDiscoveredCompany(ctx, dc)
	if err != nil {
		return false, fmt.Errorf("discovery: saving %s: %w", s.Slug, err)
	}
	return inserted, nil
}
