package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amishk599/jobsync/internal/model"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(url string) *model.Job {
	posted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Job{
		Title:           "Backend Engineer",
		Company:         "Acme",
		Description:     "Build things",
		DescriptionRaw:  "<p>Build things</p>",
		FullDescription: "<p>Build things</p>",
		Location:        "Remote",
		Salary:          "$100k - $150k",
		PostedAt:        &posted,
		SourceURL:       url,
		SourceName:      "greenhouse",
		Tags:            []string{"go", "remote"},
		CategoryID:      1,
		RemoteType:      model.RemoteTypeRemote,
		IsCleansed:      true,
	}
}

func TestSQLStore_InsertAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := testJob("https://example.com/jobs/1")
	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	got, err := s.GetJobBySourceURL(ctx, job.SourceURL)
	if err != nil {
		t.Fatalf("GetJobBySourceURL: %v", err)
	}
	if got.ID != job.ID || got.Title != job.Title || got.Salary != job.Salary {
		t.Errorf("got %+v, want %+v", got, job)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.PostedAt == nil || !got.PostedAt.Equal(*job.PostedAt) {
		t.Errorf("PostedAt = %v, want %v", got.PostedAt, job.PostedAt)
	}
	if !got.IsCleansed {
		t.Error("expected IsCleansed")
	}
}

func TestSQLStore_GetJobNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJobBySourceURL(context.Background(), "https://example.com/missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_InsertDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertJob(ctx, testJob("https://example.com/jobs/1")); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	err := s.InsertJob(ctx, testJob("https://example.com/jobs/1"))
	if !errors.Is(err, model.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestSQLStore_UpdateJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := testJob("https://example.com/jobs/1")
	job.PostedAt = nil
	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	job.Title = "Senior Backend Engineer"
	job.CategoryID = 7
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	got, err := s.GetJobBySourceURL(ctx, job.SourceURL)
	if err != nil {
		t.Fatalf("GetJobBySourceURL: %v", err)
	}
	if got.Title != "Senior Backend Engineer" || got.CategoryID != 7 {
		t.Errorf("got title %q category %d", got.Title, got.CategoryID)
	}
	if got.PostedAt != nil {
		t.Errorf("PostedAt = %v, want nil", got.PostedAt)
	}

	missing := testJob("https://example.com/jobs/404")
	missing.ID = 9999
	if err := s.UpdateJob(ctx, missing); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_ListAndDeleteJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, u := range []string{"https://a/1", "https://a/2", "https://a/3"} {
		j := testJob(u)
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("InsertJob: %v", err)
		}
		ids = append(ids, j.ID)
	}

	if err := s.DeleteJobs(ctx, ids[:2]); err != nil {
		t.Fatalf("DeleteJobs: %v", err)
	}
	keys, err := s.ListJobKeys(ctx)
	if err != nil {
		t.Fatalf("ListJobKeys: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != ids[2] || keys[0].SourceURL != "https://a/3" {
		t.Errorf("keys = %+v", keys)
	}
	if keys[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt on key")
	}

	if err := s.DeleteJobs(ctx, nil); err != nil {
		t.Errorf("DeleteJobs(nil): %v", err)
	}
}

func TestSQLStore_Categories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cats := []model.Category{{ID: 1, Name: "Software"}, {ID: 2, Name: "Support"}}
	if err := s.EnsureCategories(ctx, cats); err != nil {
		t.Fatalf("EnsureCategories: %v", err)
	}
	cats[0].Name = "Software Development"
	if err := s.EnsureCategories(ctx, cats); err != nil {
		t.Fatalf("EnsureCategories again: %v", err)
	}

	got, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Software Development" || got[1].ID != 2 {
		t.Errorf("categories = %+v", got)
	}
}

func TestSQLStore_PotentialCompanies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.AddPotentialCompanies(ctx, []string{"acme", "globex", ""})
	if err != nil {
		t.Fatalf("AddPotentialCompanies: %v", err)
	}
	if n != 2 {
		t.Errorf("added = %d, want 2", n)
	}
	n, err = s.AddPotentialCompanies(ctx, []string{"acme", "initech"})
	if err != nil {
		t.Fatalf("AddPotentialCompanies: %v", err)
	}
	if n != 1 {
		t.Errorf("added = %d, want 1", n)
	}

	pending, err := s.ListPotentialCompanies(ctx, model.CandidatePending, 2)
	if err != nil {
		t.Fatalf("ListPotentialCompanies: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	now := time.Now().UTC().Truncate(time.Second)
	pc := pending[0]
	pc.Status = model.CandidateDiscovered
	pc.CheckCount = 1
	pc.LastCheckedAt = &now
	if err := s.UpdatePotentialCompany(ctx, pc); err != nil {
		t.Fatalf("UpdatePotentialCompany: %v", err)
	}

	done, err := s.ListPotentialCompanies(ctx, model.CandidateDiscovered, 0)
	if err != nil {
		t.Fatalf("ListPotentialCompanies: %v", err)
	}
	if len(done) != 1 || done[0].Slug != pc.Slug || done[0].CheckCount != 1 {
		t.Fatalf("discovered = %+v", done)
	}
	if done[0].LastCheckedAt == nil || !done[0].LastCheckedAt.Equal(now) {
		t.Errorf("LastCheckedAt = %v, want %v", done[0].LastCheckedAt, now)
	}

	err = s.UpdatePotentialCompany(ctx, model.PotentialCompany{Slug: "nope", Status: model.CandidateNotFound})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_UpsertDiscoveredCompany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := model.DiscoveredCompany{
		Slug:              "acme",
		Source:            "lever",
		JobCount:          5,
		RemoteJobCount:    2,
		Departments:       []string{"Engineering"},
		SuggestedCategory: 1,
	}
	inserted, err := s.UpsertDiscoveredCompany(ctx, dc)
	if err != nil {
		t.Fatalf("UpsertDiscoveredCompany: %v", err)
	}
	if !inserted {
		t.Error("first upsert should insert")
	}

	dc.RemoteJobCount = 3
	inserted, err = s.UpsertDiscoveredCompany(ctx, dc)
	if err != nil {
		t.Fatalf("UpsertDiscoveredCompany: %v", err)
	}
	if inserted {
		t.Error("second upsert should update")
	}

	got, err := s.GetDiscoveredCompany(ctx, "acme")
	if err != nil {
		t.Fatalf("GetDiscoveredCompany: %v", err)
	}
	if got.RemoteJobCount != 3 || got.Source != "lever" || len(got.Departments) != 1 {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetDiscoveredCompany(ctx, "globex"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	list, err := s.ListDiscoveredCompanies(ctx, "greenhouse")
	if err != nil {
		t.Fatalf("ListDiscoveredCompanies: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("greenhouse companies = %d, want 0", len(list))
	}
	list, err = s.ListDiscoveredCompanies(ctx, "")
	if err != nil {
		t.Fatalf("ListDiscoveredCompanies: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("companies = %d, want 1", len(list))
	}
}

func TestSQLStore_CompanyProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.GetCompanyProgress(ctx, "acme", "greenhouse")
	if err != nil {
		t.Fatalf("GetCompanyProgress: %v", err)
	}
	if p.LastJobOffset != 0 || p.CompanySlug != "acme" || p.Source != "greenhouse" {
		t.Errorf("zero progress = %+v", p)
	}

	p.LastJobOffset = 50
	p.TotalJobsDiscovered = 120
	if err := s.SaveCompanyProgress(ctx, p); err != nil {
		t.Fatalf("SaveCompanyProgress: %v", err)
	}
	p.LastJobOffset = 100
	if err := s.SaveCompanyProgress(ctx, p); err != nil {
		t.Fatalf("SaveCompanyProgress: %v", err)
	}

	got, err := s.GetCompanyProgress(ctx, "acme", "greenhouse")
	if err != nil {
		t.Fatalf("GetCompanyProgress: %v", err)
	}
	if got.LastJobOffset != 100 || got.TotalJobsDiscovered != 120 {
		t.Errorf("progress = %+v", got)
	}
}

func TestSQLStore_SyncRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := &model.SyncRun{ID: "run-1", SyncType: model.SyncATS, Status: model.RunRunning, StartedAt: base}
	second := &model.SyncRun{ID: "run-2", SyncType: model.SyncATS, Status: model.RunRunning, StartedAt: base.Add(time.Hour)}
	other := &model.SyncRun{ID: "run-3", SyncType: model.SyncAggregator, Status: model.RunRunning, StartedAt: base}
	for _, r := range []*model.SyncRun{first, second, other} {
		if err := s.CreateSyncRun(ctx, r); err != nil {
			t.Fatalf("CreateSyncRun: %v", err)
		}
	}

	for _, msg := range []string{"starting", "done"} {
		entry := model.LogEntry{Time: base, Level: model.LevelInfo, Message: msg}
		if err := s.AppendRunLog(ctx, "run-1", entry); err != nil {
			t.Fatalf("AppendRunLog: %v", err)
		}
	}
	if err := s.AppendRunLog(ctx, "missing", model.LogEntry{}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("append to missing run: err = %v, want ErrNotFound", err)
	}

	completed := base.Add(time.Minute)
	first.Status = model.RunCompleted
	first.CompletedAt = &completed
	first.Stats = model.RunStats{Fetched: 3, Added: 2, Skipped: 1}
	if err := s.UpdateSyncRun(ctx, first); err != nil {
		t.Fatalf("UpdateSyncRun: %v", err)
	}

	if err := s.SaveCursor(ctx, model.SyncATS, model.BatchState{Indices: map[string]int{"greenhouse": 4}}); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	runs, err := s.ListSyncRuns(ctx, model.SyncATS, 10)
	if err != nil {
		t.Fatalf("ListSyncRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2 (cursor row excluded)", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("newest run = %s, want run-2", runs[0].ID)
	}
	r1 := runs[1]
	if r1.Status != model.RunCompleted || r1.CompletedAt == nil || r1.Stats.Added != 2 {
		t.Errorf("run-1 = %+v", r1)
	}
	if len(r1.Logs) != 2 || r1.Logs[1].Message != "done" {
		t.Errorf("run-1 logs = %+v", r1.Logs)
	}

	all, err := s.ListSyncRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListSyncRuns: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all runs = %d, want 3", len(all))
	}
}

func TestSQLStore_Cursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.LoadCursor(ctx, model.SyncAggregator)
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	if state.LastSource != "" || len(state.Offsets) != 0 {
		t.Errorf("missing cursor = %+v, want zero state", state)
	}

	want := model.BatchState{
		LastSource: "himalayas",
		Offsets:    map[string]int{"himalayas": 40},
		TagIndex:   map[string]int{"jobicy": 2},
	}
	if err := s.SaveCursor(ctx, model.SyncAggregator, want); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	want.Offsets["himalayas"] = 60
	if err := s.SaveCursor(ctx, model.SyncAggregator, want); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	got, err := s.LoadCursor(ctx, model.SyncAggregator)
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	if got.LastSource != "himalayas" || got.Offsets["himalayas"] != 60 || got.TagIndex["jobicy"] != 2 {
		t.Errorf("cursor = %+v", got)
	}

	other, err := s.LoadCursor(ctx, model.SyncATS)
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	if other.LastSource != "" {
		t.Errorf("ats cursor leaked from aggregator: %+v", other)
	}
}

func TestSQLStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s1.InsertJob(ctx, testJob("https://a/1")); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore (reopen): %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetJobBySourceURL(ctx, "https://a/1"); err != nil {
		t.Errorf("job lost after reopen: %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: dialectPostgres}
	got := pg.rebind(`SELECT a FROM t WHERE b = ? AND c IN (?, ?)`)
	want := `SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &SQLStore{dialect: dialectSQLite}
	if q := lite.rebind(`x = ?`); q != `x = ?` {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("pg 23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("pg 23503 is a foreign key violation")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("jobs.db"); got != "jobs.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite" {
		t.Errorf("sqliteDSN = %q", got)
	}
	if got := sqliteDSN("file:jobs.db?_pragma=foreign_keys(1)"); got != "file:jobs.db?_pragma=foreign_keys(1)" {
		t.Errorf("explicit pragmas should be kept, got %q", got)
	}
}
