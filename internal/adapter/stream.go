package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsync/internal/model"
)

// listing is one posting from a per-company board, before remote filtering.
type listing struct {
	job        model.RawJob
	department string
	remote     bool
}

// listFunc loads a company's full board. A missing board yields model.ErrNoBoard.
type listFunc func(ctx context.Context, slug string) ([]listing, error)

// companyStream walks a company list, yielding one batch per company with at
// least one remote job. Failures are isolated to the company that caused them.
type companyStream struct {
	source    string
	list      listFunc
	companies []string
	next      int
	opts      model.FetchOptions
	logger    *slog.Logger

	batch  model.Batch
	err    error
	stats  model.StreamStats
	closed bool
}

func newCompanyStream(source string, list listFunc, companies []string, opts model.FetchOptions, logger *slog.Logger) *companyStream {
	if len(opts.Companies) > 0 {
		companies = opts.Companies
	}
	return &companyStream{
		source:    source,
		list:      list,
		companies: companies,
		opts:      opts,
		logger:    logger,
	}
}

func (s *companyStream) Next(ctx context.Context) bool {
	for !s.closed && s.next < len(s.companies) {
		if err := ctx.Err(); err != nil {
			s.err = err
			s.closed = true
			return false
		}

		slug := s.companies[s.next]
		s.next++
		s.stats.Companies++

		listings, err := s.list(ctx, slug)
		switch {
		case errors.Is(err, model.ErrNoBoard):
			s.stats.NoBoard++
			s.logger.Debug("no board", "company", slug)
			s.opts.Logf(model.LevelWarning, fmt.Sprintf("%s: no %s board", slug, s.source))
			continue
		case err != nil && ctx.Err() != nil:
			s.err = ctx.Err()
			s.closed = true
			return false
		case err != nil:
			s.stats.Failed++
			s.logger.Error("company fetch failed", "company", slug, "error", err)
			s.opts.Logf(model.LevelError, fmt.Sprintf("%s: %v", slug, err))
			continue
		}

		remote := make([]model.RawJob, 0, len(listings))
		for _, l := range listings {
			if !l.remote {
				continue
			}
			if !valid(l.job) {
				s.stats.Skipped++
				s.logger.Warn("skipping malformed job", "company", slug, "external_id", l.job.ExternalID)
				continue
			}
			remote = append(remote, l.job)
		}

		total := len(remote)
		remote = window(remote, s.opts.JobOffset, s.opts.Limit)
		if len(remote) == 0 {
			s.opts.Logf(model.LevelInfo, fmt.Sprintf("%s: no remote jobs (%d listed)", slug, len(listings)))
			continue
		}

		s.stats.Jobs += len(remote)
		s.batch = model.Batch{Company: slug, Jobs: remote, TotalRemote: total}
		s.opts.Logf(model.LevelInfo, fmt.Sprintf("%s: %d remote jobs (%d total)", slug, len(remote), total))
		return true
	}
	return false
}

func (s *companyStream) Batch() model.Batch       { return s.batch }
func (s *companyStream) Err() error               { return s.err }
func (s *companyStream) Stats() model.StreamStats { return s.stats }
func (s *companyStream) Close() error             { s.closed = true; return nil }

// feedItem is one entry of an aggregator page.
type feedItem struct {
	job  model.RawJob
	keep bool // passed the source's remote filter
}

// pageFunc fetches one page of an aggregator feed.
type pageFunc func(ctx context.Context, offset, size int) ([]feedItem, error)

// maxFeedPages bounds how many pages one stream may request.
const maxFeedPages = 20

// feedStream pages through an aggregator feed until a short page, the item
// cap, or the page bound. Unpaged feeds read their only page from the offset
// on and are exhausted once its end is reached.
type feedStream struct {
	source string
	page   pageFunc
	paged  bool
	offset int
	size   int
	opts   model.FetchOptions
	pages  int
	logger *slog.Logger

	batch  model.Batch
	err    error
	stats  model.StreamStats
	closed bool
}

func newFeedStream(source string, page pageFunc, paged bool, size int, opts model.FetchOptions, logger *slog.Logger) *feedStream {
	offset := max(opts.JobOffset, 0)
	return &feedStream{
		source: source,
		page:   page,
		paged:  paged,
		offset: offset,
		size:   size,
		opts:   opts,
		logger: logger,
		stats:  model.StreamStats{NextOffset: offset},
	}
}

func (s *feedStream) Next(ctx context.Context) bool {
	for !s.closed && s.pages < maxFeedPages {
		if err := ctx.Err(); err != nil {
			s.err = err
			s.closed = true
			return false
		}

		items, err := s.page(ctx, s.offset, s.size)
		s.pages++
		if err != nil {
			if ctx.Err() == nil {
				s.stats.Failed++
			}
			s.err = fmt.Errorf("%s feed at offset %d: %w", s.source, s.offset, err)
			s.closed = true
			return false
		}

		// An unpaged feed returns the same page every time, so the offset
		// selects where to resume inside it.
		if !s.paged {
			items = items[min(s.offset, len(items)):]
		}

		var jobs []model.RawJob
		consumed := 0
		for _, it := range items {
			if s.opts.Limit > 0 && s.stats.Jobs+len(jobs) >= s.opts.Limit {
				s.closed = true
				break
			}
			consumed++
			if !it.keep {
				continue
			}
			if !valid(it.job) {
				s.stats.Skipped++
				s.logger.Warn("skipping malformed job", "source", s.source, "external_id", it.job.ExternalID)
				continue
			}
			jobs = append(jobs, it.job)
		}

		if s.opts.Limit > 0 && s.stats.Jobs+len(jobs) >= s.opts.Limit {
			s.closed = true
		}
		s.offset += consumed
		s.stats.NextOffset = s.offset
		if consumed == len(items) && (!s.paged || len(items) < s.size) {
			s.stats.Exhausted = true
			s.closed = true
		}
		if !s.paged {
			s.closed = true
		}

		s.opts.Logf(model.LevelInfo, fmt.Sprintf("%s: page of %d, %d kept", s.source, len(items), len(jobs)))
		if len(jobs) > 0 {
			s.stats.Jobs += len(jobs)
			s.batch = model.Batch{Jobs: jobs, TotalRemote: len(jobs)}
			return true
		}
	}
	return false
}

func (s *feedStream) Batch() model.Batch       { return s.batch }
func (s *feedStream) Err() error               { return s.err }
func (s *feedStream) Stats() model.StreamStats { return s.stats }
func (s *feedStream) Close() error             { s.closed = true; return nil }

// probeBoard summarises a company board for discovery.
func probeBoard(ctx context.Context, source string, list listFunc, slug string) (model.BoardSummary, error) {
	listings, err := list(ctx, slug)
	if err != nil {
		return model.BoardSummary{}, err
	}

	summary := model.BoardSummary{Slug: slug, Source: source, JobCount: len(listings)}
	seen := make(map[string]bool)
	for _, l := range listings {
		if l.remote {
			summary.RemoteJobCount++
		}
		summary.Titles = append(summary.Titles, l.job.Title)
		if l.department != "" && !seen[l.department] {
			seen[l.department] = true
			summary.Departments = append(summary.Departments, l.department)
		}
	}
	return summary, nil
}
