package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/orchestrator"
	"github.com/amishk599/jobsync/internal/runlog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner emits a fixed event sequence, or blocks until cancelled.
type fakeRunner struct {
	mu      sync.Mutex
	opts    []orchestrator.Options
	block   bool
	started chan struct{}
	aborted chan struct{}
}

func newFakeRunner(block bool) *fakeRunner {
	return &fakeRunner{block: block, started: make(chan struct{}, 1), aborted: make(chan struct{})}
}

func (f *fakeRunner) Sources() []string {
	return []string{"greenhouse", "himalayas"}
}

func (f *fakeRunner) RunInteractive(ctx context.Context, opts orchestrator.Options) (model.SyncRun, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	opts.Sink.Emit(runlog.Event{Type: runlog.EventSyncStarted, RunID: "r1", SyncType: model.SyncManual})
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.block {
		<-ctx.Done()
		close(f.aborted)
		opts.Sink.Emit(runlog.Event{Type: runlog.EventComplete, RunID: "r1", Stats: &model.RunStats{Aborted: true}})
		return model.SyncRun{ID: "r1", Status: model.RunCompleted}, nil
	}
	opts.Sink.Emit(runlog.Event{Type: runlog.EventLog, Level: model.LevelInfo, Message: "greenhouse: syncing 2 companies"})
	opts.Sink.Emit(runlog.Event{Type: runlog.EventReport, Stats: &model.RunStats{Added: 3}})
	opts.Sink.Emit(runlog.Event{Type: runlog.EventComplete, RunID: "r1", Stats: &model.RunStats{Added: 3}})
	return model.SyncRun{ID: "r1", Status: model.RunCompleted}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []runlog.Event
}

func (s *recordingSink) Emit(e runlog.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeLister struct {
	mu       sync.Mutex
	syncType string
	limit    int
	runs     []model.SyncRun
}

func (f *fakeLister) ListSyncRuns(_ context.Context, syncType string, limit int) ([]model.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncType, f.limit = syncType, limit
	return f.runs, nil
}

// readEvents parses the data lines of an SSE body.
func readEvents(t *testing.T, body io.Reader) []runlog.Event {
	t.Helper()
	var events []runlog.Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e runlog.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("decoding event %q: %v", line, err)
		}
		events = append(events, e)
	}
	return events
}

func TestStreamSync_StreamsEventsUntilComplete(t *testing.T) {
	runner := newFakeRunner(false)
	notify := &recordingSink{}
	srv := httptest.NewServer(New(runner, &fakeLister{}, notify, discardLogger()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sync/stream", "application/json",
		strings.NewReader(`{"sources":["greenhouse"],"addNew":false,"cleanup":true}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := readEvents(t, resp.Body)
	var types []string
	for _, e := range events {
		types = append(types, string(e.Type))
	}
	if got := strings.Join(types, ","); got != "sync_started,log,report,complete" {
		t.Errorf("events = %s", got)
	}
	if last := events[len(events)-1]; last.Stats == nil || last.Stats.Added != 3 {
		t.Errorf("final stats = %+v", last.Stats)
	}

	runner.mu.Lock()
	opts := runner.opts[0]
	runner.mu.Unlock()
	if len(opts.Sources) != 1 || opts.Sources[0] != "greenhouse" {
		t.Errorf("Sources = %v", opts.Sources)
	}
	if opts.AddNew == nil || *opts.AddNew {
		t.Errorf("AddNew = %v, want false", opts.AddNew)
	}
	if opts.UpdateExisting != nil {
		t.Errorf("UpdateExisting = %v, want unset", *opts.UpdateExisting)
	}
	if !opts.Cleanup || opts.Discovery {
		t.Errorf("Cleanup/Discovery = %v/%v", opts.Cleanup, opts.Discovery)
	}
	if notify.count() != 4 {
		t.Errorf("notify sink saw %d events, want 4", notify.count())
	}
}

func TestStreamSync_EmptyBodyRunsEverything(t *testing.T) {
	runner := newFakeRunner(false)
	srv := httptest.NewServer(New(runner, &fakeLister{}, nil, discardLogger()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sync/stream", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n := len(readEvents(t, resp.Body)); n != 4 {
		t.Errorf("got %d events", n)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.opts[0].Sources) != 0 {
		t.Errorf("Sources = %v, want all", runner.opts[0].Sources)
	}
}

func TestStreamSync_RejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(New(newFakeRunner(false), &fakeLister{}, nil, discardLogger()).Handler())
	defer srv.Close()

	for _, body := range []string{`{"sources":["indeed"]}`, `{"sources":`} {
		resp, err := http.Post(srv.URL+"/api/sync/stream", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestStreamSync_OneRunAtATimeAndDisconnectAborts(t *testing.T) {
	runner := newFakeRunner(true)
	srv := httptest.NewServer(New(runner, &fakeLister{}, nil, discardLogger()).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/sync/stream", strings.NewReader(`{}`))
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	resp, err := http.Post(srv.URL+"/api/sync/stream", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("second POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second run status = %d, want 409", resp.StatusCode)
	}

	cancel()
	select {
	case <-runner.aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled after client disconnect")
	}
	<-firstDone
}

func TestListRuns(t *testing.T) {
	done := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	lister := &fakeLister{runs: []model.SyncRun{{
		ID:          "r1",
		SyncType:    model.SyncATS,
		Source:      "lever",
		Status:      model.RunCompleted,
		StartedAt:   done.Add(-5 * time.Minute),
		CompletedAt: &done,
		Stats:       model.RunStats{Added: 2},
		Logs:        []model.LogEntry{{Level: model.LevelInfo, Message: "hi"}},
	}}}
	srv := httptest.NewServer(New(newFakeRunner(false), lister, nil, discardLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs?type=ats&limit=500")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Runs []runView `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	lister.mu.Lock()
	if lister.syncType != "ats" || lister.limit != 20 {
		t.Errorf("lister called with %q/%d", lister.syncType, lister.limit)
	}
	lister.mu.Unlock()
	if len(body.Runs) != 1 || body.Runs[0].Source != "lever" || body.Runs[0].Stats.Added != 2 {
		t.Fatalf("runs = %+v", body.Runs)
	}
	if body.Runs[0].Logs != nil {
		t.Error("logs returned without logs=true")
	}
}

func TestHealthAndSources(t *testing.T) {
	srv := httptest.NewServer(New(newFakeRunner(false), &fakeLister{}, nil, discardLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(b) != "OK" {
		t.Errorf("health = %d %q", resp.StatusCode, b)
	}

	resp, err = http.Get(srv.URL + "/api/sources")
	if err != nil {
		t.Fatalf("GET /api/sources: %v", err)
	}
	defer resp.Body.Close()
	var body map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(body["sources"], ",") != "greenhouse,himalayas" {
		t.Errorf("sources = %v", body)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(newFakeRunner(false), &fakeLister{}, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
