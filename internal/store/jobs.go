package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

const jobColumns = `id, title, company, description, description_raw, full_description,
	location, salary, post_date, source_url, source_name, tags, category_id,
	remote_type, is_cleansed, created_at, updated_at`

// deleteChunk bounds the number of placeholders in one DELETE.
const deleteChunk = 500

// GetJobBySourceURL returns the job stored under sourceURL or model.ErrNotFound.
func (s *SQLStore) GetJobBySourceURL(ctx context.Context, sourceURL string) (*model.Job, error) {
	row := s.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE source_url = ?`, sourceURL)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", sourceURL, err)
	}
	return job, nil
}

// InsertJob stores a new job and sets its ID and timestamps. A concurrent
// insert of the same source URL yields model.ErrDuplicate.
func (s *SQLStore) InsertJob(ctx context.Context, job *model.Job) error {
	tags, err := json.Marshal(nonNil(job.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	now := time.Now().UTC()
	err = s.queryRow(ctx, `
		INSERT INTO jobs (title, company, description, description_raw, full_description,
			location, salary, post_date, source_url, source_name, tags, category_id,
			remote_type, is_cleansed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		job.Title, job.Company, job.Description, job.DescriptionRaw, job.FullDescription,
		job.Location, job.Salary, nullTime(job.PostedAt), job.SourceURL, job.SourceName,
		string(tags), job.CategoryID, job.RemoteType, job.IsCleansed, now, now,
	).Scan(&job.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting job %s: %w", job.SourceURL, model.ErrDuplicate)
		}
		return fmt.Errorf("inserting job %s: %w", job.SourceURL, err)
	}
	job.CreatedAt, job.UpdatedAt = now, now
	return nil
}

// UpdateJob rewrites the mutable columns of the job with job.ID.
func (s *SQLStore) UpdateJob(ctx context.Context, job *model.Job) error {
	tags, err := json.Marshal(nonNil(job.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.exec(ctx, `
		UPDATE jobs SET title = ?, company = ?, description = ?, description_raw = ?,
			full_description = ?, location = ?, salary = ?, post_date = ?, source_name = ?,
			tags = ?, category_id = ?, remote_type = ?, is_cleansed = ?, updated_at = ?
		WHERE id = ?`,
		job.Title, job.Company, job.Description, job.DescriptionRaw, job.FullDescription,
		job.Location, job.Salary, nullTime(job.PostedAt), job.SourceName, string(tags),
		job.CategoryID, job.RemoteType, job.IsCleansed, now, job.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job %d: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating job %d: %w", job.ID, model.ErrNotFound)
	}
	job.UpdatedAt = now
	return nil
}

// ListJobKeys returns the projection used for duplicate resolution.
func (s *SQLStore) ListJobKeys(ctx context.Context) ([]model.JobKey, error) {
	rows, err := s.query(ctx, `SELECT id, title, company, source_url, source_name, created_at FROM jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing job keys: %w", err)
	}
	defer rows.Close()

	var keys []model.JobKey
	for rows.Next() {
		var k model.JobKey
		if err := rows.Scan(&k.ID, &k.Title, &k.Company, &k.SourceURL, &k.SourceName, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteJobs removes the given job IDs in chunks.
func (s *SQLStore) DeleteJobs(ctx context.Context, ids []int64) error {
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		if _, err := s.exec(ctx, `DELETE FROM jobs WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("deleting jobs: %w", err)
		}
	}
	return nil
}

// EnsureCategories inserts or renames the static category rows.
func (s *SQLStore) EnsureCategories(ctx context.Context, categories []model.Category) error {
	for _, c := range categories {
		_, err := s.exec(ctx, `
			INSERT INTO categories (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`, c.ID, c.Name)
		if err != nil {
			return fmt.Errorf("seeding category %d: %w", c.ID, err)
		}
	}
	return nil
}

// ListCategories returns every category ordered by ID.
func (s *SQLStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		j        model.Job
		postDate sql.NullTime
		tags     string
	)
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.DescriptionRaw,
		&j.FullDescription, &j.Location, &j.Salary, &postDate, &j.SourceURL, &j.SourceName,
		&tags, &j.CategoryID, &j.RemoteType, &j.IsCleansed, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if postDate.Valid {
		t := postDate.Time
		j.PostedAt = &t
	}
	if err := json.Unmarshal([]byte(tags), &j.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return &j, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
