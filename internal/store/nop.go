package store

import (
	"context"

	"github.com/amishk599/jobsync/internal/model"
)

// NopStore is a no-op store used in dry-run mode. It never remembers a job,
// so every listing appears new on each run, and writes are discarded.
type NopStore struct{}

var _ model.Store = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) GetJobBySourceURL(context.Context, string) (*model.Job, error) {
	return nil, model.ErrNotFound
}

func (s *NopStore) InsertJob(context.Context, *model.Job) error {
	return nil
}

func (s *NopStore) UpdateJob(context.Context, *model.Job) error {
	return nil
}

func (s *NopStore) ListJobKeys(context.Context) ([]model.JobKey, error) {
	return nil, nil
}

func (s *NopStore) DeleteJobs(context.Context, []int64) error {
	return nil
}

func (s *NopStore) EnsureCategories(context.Context, []model.Category) error {
	return nil
}

func (s *NopStore) ListCategories(context.Context) ([]model.Category, error) {
	return nil, nil
}

func (s *NopStore) AddPotentialCompanies(_ context.Context, slugs []string) (int, error) {
	return len(slugs), nil
}

func (s *NopStore) ListPotentialCompanies(context.Context, model.CandidateStatus, int) ([]model.PotentialCompany, error) {
	return nil, nil
}

func (s *NopStore) UpdatePotentialCompany(context.Context, model.PotentialCompany) error {
	return nil
}

func (s *NopStore) GetDiscoveredCompany(context.Context, string) (*model.DiscoveredCompany, error) {
	return nil, model.ErrNotFound
}

func (s *NopStore) UpsertDiscoveredCompany(context.Context, model.DiscoveredCompany) (bool, error) {
	return true, nil
}

func (s *NopStore) CreateSyncRun(context.Context, *model.SyncRun) error {
	return nil
}

func (s *NopStore) UpdateSyncRun(context.Context, *model.SyncRun) error {
	return nil
}

func (s *NopStore) AppendRunLog(context.Context, string, model.LogEntry) error {
	return nil
}

func (s *NopStore) ListSyncRuns(context.Context, string, int) ([]model.SyncRun, error) {
	return nil, nil
}

func (s *NopStore) GetCompanyProgress(_ context.Context, slug, source string) (model.CompanyJobProgress, error) {
	return model.CompanyJobProgress{CompanySlug: slug, Source: source}, nil
}

func (s *NopStore) SaveCompanyProgress(context.Context, model.CompanyJobProgress) error {
	return nil
}

func (s *NopStore) LoadCursor(context.Context, string) (model.BatchState, error) {
	return model.BatchState{}, nil
}

func (s *NopStore) SaveCursor(context.Context, string, model.BatchState) error {
	return nil
}
