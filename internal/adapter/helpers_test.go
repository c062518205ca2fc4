package adapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/model"
)

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient returns a fetcher whose requests are rewritten to hit srv,
// whatever host the adapter targets.
func newTestClient(srv *httptest.Server) *fetcher.Client {
	hc := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
	return fetcher.New("test", fetcher.Config{Timeout: 5 * time.Second}, hc, discardLogger())
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

// drain reads every batch from a stream.
func drain(t *testing.T, s model.BatchStream) []model.Batch {
	t.Helper()
	defer s.Close()

	var batches []model.Batch
	for s.Next(context.Background()) {
		batches = append(batches, s.Batch())
	}
	return batches
}
