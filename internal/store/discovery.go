package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// AddPotentialCompanies seeds pending candidates, ignoring slugs already
// present. It returns how many rows were inserted.
func (s *SQLStore) AddPotentialCompanies(ctx context.Context, slugs []string) (int, error) {
	now := time.Now().UTC()
	added := 0
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		res, err := s.exec(ctx, `
			INSERT INTO potential_companies (slug, status, check_count, created_at)
			VALUES (?, ?, 0, ?)
			ON CONFLICT (slug) DO NOTHING`, slug, string(model.CandidatePending), now)
		if err != nil {
			return added, fmt.Errorf("adding candidate %s: %w", slug, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	return added, nil
}

// ListPotentialCompanies returns up to limit candidates in status, oldest first.
func (s *SQLStore) ListPotentialCompanies(ctx context.Context, status model.CandidateStatus, limit int) ([]model.PotentialCompany, error) {
	q := `SELECT slug, status, check_count, last_checked_at, created_at
		FROM potential_companies WHERE status = ? ORDER BY created_at, slug`
	args := []any{string(status)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var out []model.PotentialCompany
	for rows.Next() {
		var (
			pc      model.PotentialCompany
			st      string
			checked sql.NullTime
		)
		if err := rows.Scan(&pc.Slug, &st, &pc.CheckCount, &checked, &pc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		pc.Status = model.CandidateStatus(st)
		if checked.Valid {
			t := checked.Time
			pc.LastCheckedAt = &t
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// UpdatePotentialCompany persists the status, check count and last check time.
func (s *SQLStore) UpdatePotentialCompany(ctx context.Context, pc model.PotentialCompany) error {
	res, err := s.exec(ctx, `
		UPDATE potential_companies SET status = ?, check_count = ?, last_checked_at = ?
		WHERE slug = ?`,
		string(pc.Status), pc.CheckCount, nullTime(pc.LastCheckedAt), pc.Slug)
	if err != nil {
		return fmt.Errorf("updating candidate %s: %w", pc.Slug, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating candidate %s: %w", pc.Slug, model.ErrNotFound)
	}
	return nil
}

// GetDiscoveredCompany returns the confirmed company or model.ErrNotFound.
func (s *SQLStore) GetDiscoveredCompany(ctx context.Context, slug string) (*model.DiscoveredCompany, error) {
	var (
		dc    model.DiscoveredCompany
		depts string
	)
	err := s.queryRow(ctx, `
		SELECT slug, source, job_count, remote_job_count, departments, suggested_category, created_at, updated_at
		FROM discovered_companies WHERE slug = ?`, slug).
		Scan(&dc.Slug, &dc.Source, &dc.JobCount, &dc.RemoteJobCount, &depts, &dc.SuggestedCategory, &dc.CreatedAt, &dc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting company %s: %w", slug, err)
	}
	if err := json.Unmarshal([]byte(depts), &dc.Departments); err != nil {
		return nil, fmt.Errorf("decoding departments: %w", err)
	}
	return &dc, nil
}

// UpsertDiscoveredCompany inserts dc, or refreshes the stored row when the
// slug is already known. inserted reports which path was taken.
func (s *SQLStore) UpsertDiscoveredCompany(ctx context.Context, dc model.DiscoveredCompany) (bool, error) {
	depts, err := json.Marshal(nonNil(dc.Departments))
	if err != nil {
		return false, fmt.Errorf("encoding departments: %w", err)
	}
	now := time.Now().UTC()

	res, err := s.exec(ctx, `
		INSERT INTO discovered_companies (slug, source, job_count, remote_job_count, departments, suggested_category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING`,
		dc.Slug, dc.Source, dc.JobCount, dc.RemoteJobCount, string(depts), dc.SuggestedCategory, now, now)
	if err != nil {
		return false, fmt.Errorf("inserting company %s: %w", dc.Slug, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	_, err = s.exec(ctx, `
		UPDATE discovered_companies SET source = ?, job_count = ?, remote_job_count = ?,
			departments = ?, suggested_category = ?, updated_at = ?
		WHERE slug = ?`,
		dc.Source, dc.JobCount, dc.RemoteJobCount, string(depts), dc.SuggestedCategory, now, dc.Slug)
	if err != nil {
		return false, fmt.Errorf("updating company %s: %w", dc.Slug, err)
	}
	return false, nil
}

// ListDiscoveredCompanies returns confirmed companies for source, or all of
// them when source is empty.
func (s *SQLStore) ListDiscoveredCompanies(ctx context.Context, source string) ([]model.DiscoveredCompany, error) {
	q := `SELECT slug, source, job_count, remote_job_count, departments, suggested_category, created_at, updated_at
		FROM discovered_companies`
	var args []any
	if source != "" {
		q += ` WHERE source = ?`
		args = append(args, source)
	}
	q += ` ORDER BY slug`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var out []model.DiscoveredCompany
	for rows.Next() {
		var (
			dc    model.DiscoveredCompany
			depts string
		)
		if err := rows.Scan(&dc.Slug, &dc.Source, &dc.JobCount, &dc.RemoteJobCount, &depts, &dc.SuggestedCategory, &dc.CreatedAt, &dc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		if err := json.Unmarshal([]byte(depts), &dc.Departments); err != nil {
			return nil, fmt.Errorf("decoding departments: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// GetCompanyProgress returns the saved cursor for slug on source, or the zero
// value with the key fields set when none exists.
func (s *SQLStore) GetCompanyProgress(ctx context.Context, slug, source string) (model.CompanyJobProgress, error) {
	p := model.CompanyJobProgress{CompanySlug: slug, Source: source}
	err := s.queryRow(ctx, `
		SELECT last_job_offset, total_jobs_discovered, updated_at
		FROM company_job_progress WHERE company_slug = ? AND source = ?`, slug, source).
		Scan(&p.LastJobOffset, &p.TotalJobsDiscovered, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("getting progress for %s/%s: %w", source, slug, err)
	}
	return p, nil
}

// SaveCompanyProgress upserts the per-company cursor.
func (s *SQLStore) SaveCompanyProgress(ctx context.Context, p model.CompanyJobProgress) error {
	_, err := s.exec(ctx, `
		INSERT INTO company_job_progress (company_slug, source, last_job_offset, total_jobs_discovered, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (company_slug, source) DO UPDATE SET
			last_job_offset = excluded.last_job_offset,
			total_jobs_discovered = excluded.total_jobs_discovered,
			updated_at = excluded.updated_at`,
		p.CompanySlug, p.Source, p.LastJobOffset, p.TotalJobsDiscovered, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving progress for %s/%s: %w", p.Source, p.CompanySlug, err)
	}
	return nil
}
