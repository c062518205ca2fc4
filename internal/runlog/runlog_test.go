package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRuns is an in-memory RunStore.
type memRuns struct {
	mu   sync.Mutex
	runs map[string]*model.SyncRun
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]*model.SyncRun)}
}

func (m *memRuns) CreateSyncRun(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memRuns) UpdateSyncRun(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return model.ErrNotFound
	}
	logs := stored.Logs
	cp := *run
	cp.Logs = logs
	m.runs[run.ID] = &cp
	return nil
}

func (m *memRuns) AppendRunLog(_ context.Context, id string, e model.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[id]
	if !ok {
		return model.ErrNotFound
	}
	stored.Logs = append(stored.Logs, e)
	return nil
}

func (m *memRuns) ListSyncRuns(context.Context, string, int) ([]model.SyncRun, error) {
	return nil, nil
}

func (m *memRuns) get(id string) model.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id]
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(e Event) { s.events = append(s.events, e) }

func (s *recordingSink) types() []EventType {
	var out []EventType
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func TestRecorder_CompleteLifecycle(t *testing.T) {
	store := newMemRuns()
	sink := &recordingSink{}

	rec, err := Start(context.Background(), store, sink, discardLogger(), model.SyncATS, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := store.get(rec.ID()); got.Status != model.RunRunning {
		t.Errorf("status after start = %q", got.Status)
	}

	rec.SetSource("greenhouse")
	rec.Log(model.LevelInfo, "fetching acme")
	rec.Log(model.LevelSuccess, "saved 2 jobs")
	rec.Report(model.RunStats{Fetched: 2})
	if err := rec.Complete(model.RunStats{Fetched: 2, Added: 2}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	run := store.get(rec.ID())
	if run.Status != model.RunCompleted || run.CompletedAt == nil || run.Stats.Added != 2 {
		t.Errorf("run = %+v", run)
	}
	if run.Source != "greenhouse" {
		t.Errorf("source = %q", run.Source)
	}
	if len(run.Logs) != 2 || run.Logs[1].Level != model.LevelSuccess {
		t.Errorf("logs = %+v", run.Logs)
	}

	want := []EventType{EventSyncStarted, EventLog, EventLog, EventReport, EventComplete}
	got := sink.types()
	if strings.Join(eventNames(got), ",") != strings.Join(eventNames(want), ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
	last := sink.events[len(sink.events)-1]
	if last.RunID != rec.ID() || last.Source != "greenhouse" || last.Stats == nil {
		t.Errorf("terminal event = %+v", last)
	}
}

func eventNames(types []EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func TestRecorder_FailEmitsErrorOnce(t *testing.T) {
	store := newMemRuns()
	sink := &recordingSink{}
	rec, err := Start(context.Background(), store, sink, discardLogger(), model.SyncAggregator, "himalayas")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec.Fail(model.RunStats{Failed: 1}, errors.New("feed down"))
	rec.Complete(model.RunStats{})

	run := store.get(rec.ID())
	if run.Status != model.RunFailed || run.Error != "feed down" {
		t.Errorf("run = %+v", run)
	}
	terminal := 0
	for _, e := range sink.events {
		if e.Terminal() {
			terminal++
			if e.Type != EventError || e.Message != "feed down" {
				t.Errorf("terminal event = %+v", e)
			}
		}
	}
	if terminal != 1 {
		t.Errorf("terminal events = %d, want 1", terminal)
	}
}

func TestRecorder_FinalizesAfterCancel(t *testing.T) {
	store := newMemRuns()
	ctx, cancel := context.WithCancel(context.Background())
	rec, err := Start(ctx, store, nil, discardLogger(), model.SyncATS, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	if err := rec.Complete(model.RunStats{Aborted: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	run := store.get(rec.ID())
	if run.Status != model.RunCompleted || !run.Stats.Aborted {
		t.Errorf("run = %+v", run)
	}
}

func TestChanSink_DeliversAndCloses(t *testing.T) {
	sink := NewChanSink(4)
	go func() {
		sink.Emit(Event{Type: EventLog, Message: "one"})
		sink.Emit(Event{Type: EventComplete})
		sink.Close()
		sink.Emit(Event{Type: EventLog, Message: "after close"})
	}()

	var got []EventType
	for e := range sink.Events() {
		got = append(got, e.Type)
	}
	if len(got) != 2 || got[1] != EventComplete {
		t.Errorf("events = %v", got)
	}
}

func TestChanSink_StopUnblocksProducer(t *testing.T) {
	sink := NewChanSink(0)
	done := make(chan struct{})
	go func() {
		sink.Emit(Event{Type: EventLog})
		close(done)
	}()

	sink.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit still blocked after Stop")
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	MultiSink{a, nil, b}.Emit(Event{Type: EventLog})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestSlogSink_DoesNotPanic(t *testing.T) {
	s := NewSlogSink(discardLogger())
	stats := model.RunStats{Added: 1}
	for _, e := range []Event{
		{Type: EventSyncStarted},
		{Type: EventLog, Level: model.LevelWarning, Message: "slow"},
		{Type: EventReport, Stats: &stats},
		{Type: EventComplete, Stats: &stats},
		{Type: EventError, Message: "boom"},
	} {
		s.Emit(e)
	}
}

func TestSlackSink_PostsOnlyTerminalEvents(t *testing.T) {
	var (
		calls atomic.Int32
		body  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, srv.Client(), discardLogger())
	s.Emit(Event{Type: EventLog, Message: "ignored"})
	s.Emit(Event{Type: EventComplete, SyncType: "ats", Source: "lever", Stats: &model.RunStats{Added: 3}})

	if c := calls.Load(); c != 1 {
		t.Fatalf("expected 1 HTTP call, got %d", c)
	}
	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(payload.Blocks))
	}
	if got := payload.Blocks[0].Text.Text; !strings.Contains(got, "Ats sync complete") {
		t.Errorf("header = %q", got)
	}
	if got := payload.Blocks[2].Text.Text; !strings.Contains(got, "*Added:* 3") {
		t.Errorf("stats block = %q", got)
	}
}

func TestSlackSink_ErrorIncludesMessage(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, srv.Client(), discardLogger())
	s.Emit(Event{Type: EventError, SyncType: "aggregator", Message: "feed down"})

	if !strings.Contains(string(body), "sync failed") || !strings.Contains(string(body), "feed down") {
		t.Errorf("payload = %s", body)
	}
}

func TestSlackSink_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, srv.Client(), discardLogger())
	s.Emit(Event{Type: EventComplete, SyncType: "ats"})

	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls, got %d", c)
	}
}

func TestSlackSink_SendTestReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, srv.Client(), discardLogger())
	if err := s.SendTest(); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
