package model

import "context"

// JobStore persists jobs keyed by source URL.
type JobStore interface {
	GetJobBySourceURL(ctx context.Context, sourceURL string) (*Job, error) // ErrNotFound when absent
	InsertJob(ctx context.Context, job *Job) error                         // ErrDuplicate on unique violation
	UpdateJob(ctx context.Context, job *Job) error
	ListJobKeys(ctx context.Context) ([]JobKey, error)
	DeleteJobs(ctx context.Context, ids []int64) error
}

// CategoryStore exposes the category lookup table.
type CategoryStore interface {
	EnsureCategories(ctx context.Context, categories []Category) error
	ListCategories(ctx context.Context) ([]Category, error)
}

// DiscoveryStore persists discovery candidates and confirmed companies.
type DiscoveryStore interface {
	AddPotentialCompanies(ctx context.Context, slugs []string) (int, error)
	ListPotentialCompanies(ctx context.Context, status CandidateStatus, limit int) ([]PotentialCompany, error)
	UpdatePotentialCompany(ctx context.Context, pc PotentialCompany) error
	GetDiscoveredCompany(ctx context.Context, slug string) (*DiscoveredCompany, error) // ErrNotFound when absent
	UpsertDiscoveredCompany(ctx context.Context, dc DiscoveredCompany) (inserted bool, err error)
}

// RunStore persists SyncRun audit records.
type RunStore interface {
	CreateSyncRun(ctx context.Context, run *SyncRun) error
	UpdateSyncRun(ctx context.Context, run *SyncRun) error
	AppendRunLog(ctx context.Context, runID string, entry LogEntry) error
	ListSyncRuns(ctx context.Context, syncType string, limit int) ([]SyncRun, error)
}

// ProgressStore persists per-company pagination cursors.
type ProgressStore interface {
	GetCompanyProgress(ctx context.Context, slug, source string) (CompanyJobProgress, error) // zero value when absent
	SaveCompanyProgress(ctx context.Context, p CompanyJobProgress) error
}

// CursorStore persists one BatchState per sync type. A missing cursor loads as
// the zero state (start of rotation).
type CursorStore interface {
	LoadCursor(ctx context.Context, syncType string) (BatchState, error)
	SaveCursor(ctx context.Context, syncType string, state BatchState) error
}

// Store is the full persistence contract the engine needs.
type Store interface {
	JobStore
	CategoryStore
	DiscoveryStore
	RunStore
	ProgressStore
	CursorStore
}
