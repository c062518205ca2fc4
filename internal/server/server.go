package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/orchestrator"
	"github.com/amishk599/jobsync/internal/runlog"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 15 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Runner runs interactive syncs. Implemented by *orchestrator.Orchestrator.
type Runner interface {
	RunInteractive(ctx context.Context, opts orchestrator.Options) (model.SyncRun, error)
	Sources() []string
}

// RunLister reads past runs for the history endpoint.
type RunLister interface {
	ListSyncRuns(ctx context.Context, syncType string, limit int) ([]model.SyncRun, error)
}

// Server exposes the interactive sync stream and run history over HTTP.
// One interactive run is served at a time.
type Server struct {
	runner Runner
	runs   RunLister
	notify runlog.Sink // also receives every streamed run's events; may be nil
	logger *slog.Logger
	busy   atomic.Bool
}

// New creates a Server.
func New(runner Runner, runs RunLister, notify runlog.Sink, logger *slog.Logger) *Server {
	return &Server{runner: runner, runs: runs, notify: notify, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(short chi.Router) {
			short.Use(chiMiddleware.Timeout(30 * time.Second))
			short.Get("/sources", s.listSources)
			short.Get("/runs", s.listRuns)
		})
		// Long-lived; no timeout.
		api.Post("/sync/stream", s.streamSync)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled. Open streams see
// their request context cancelled and abort their runs before shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// syncRequest is the body of POST /api/sync/stream.
type syncRequest struct {
	Discovery      bool     `json:"discovery"`
	Cleanup        bool     `json:"cleanup"`
	UpdateExisting *bool    `json:"updateExisting"`
	AddNew         *bool    `json:"addNew"`
	Sources        []string `json:"sources"`
}

func (s *Server) streamSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	// Consume the rest so the server can notice a client disconnect.
	io.Copy(io.Discard, io.LimitReader(r.Body, 1<<20))

	known := s.runner.Sources()
	for _, name := range req.Sources {
		if !slices.Contains(known, name) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", name))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		respondWithError(w, http.StatusConflict, "a sync is already running")
		return
	}
	defer s.busy.Store(false)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sink := runlog.NewChanSink(eventBuffer)
	opts := orchestrator.Options{
		Sources:        req.Sources,
		AddNew:         req.AddNew,
		UpdateExisting: req.UpdateExisting,
		Discovery:      req.Discovery,
		Cleanup:        req.Cleanup,
		Sink:           runlog.MultiSink{sink, s.notify},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sink.Close()
		if _, err := s.runner.RunInteractive(ctx, opts); err != nil {
			s.logger.Warn("interactive run failed", "error", err)
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-sink.Events():
			if !ok {
				<-done
				return
			}
			if err := writeEvent(w, e); err != nil {
				s.logger.Debug("stream write failed", "error", err)
				sink.Stop()
				<-done
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				sink.Stop()
				<-done
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			// Client went away; the run sees the same cancellation.
			sink.Stop()
			<-done
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, e runlog.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{"sources": s.runner.Sources()})
}

// runView is the JSON shape of a SyncRun in the history endpoint.
type runView struct {
	ID          string           `json:"id"`
	SyncType    string           `json:"syncType"`
	Source      string           `json:"source,omitempty"`
	Status      model.RunStatus  `json:"status"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Stats       model.RunStats   `json:"stats"`
	Error       string           `json:"error,omitempty"`
	Logs        []model.LogEntry `json:"logs,omitempty"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	withLogs := r.URL.Query().Get("logs") == "true"

	runs, err := s.runs.ListSyncRuns(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		v := runView{
			ID:          run.ID,
			SyncType:    run.SyncType,
			Source:      run.Source,
			Status:      run.Status,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			Stats:       run.Stats,
			Error:       run.Error,
		}
		if withLogs {
			v.Logs = run.Logs
		}
		views = append(views, v)
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
