package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/ratelimit"
	"github.com/amishk599/jobsync/internal/retry"
)

const userAgent = "jobsync/1.0 (+https://github.com/amishk599/jobsync)"

// Config holds the per-source politeness settings.
type Config struct {
	Wait        time.Duration // minimum spacing between requests
	Leading     bool
	Trailing    bool
	MaxRequests int           // sliding-window quota; 0 disables the window
	Window      time.Duration // sliding-window length
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration // per HTTP call, independent of the caller's context
}

// DefaultConfig is used for sources without explicit settings.
func DefaultConfig() Config {
	return Config{
		Wait:        time.Second,
		Leading:     true,
		MaxRequests: 30,
		Window:      time.Minute,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Timeout:     30 * time.Second,
	}
}

// Client performs throttled, rate-limited, retried GET requests against one
// source. One Client exists per source per process.
type Client struct {
	name     string
	http     *http.Client
	throttle *ratelimit.Throttle
	window   *ratelimit.SlidingWindow
	retrier  *retry.Retrier
	logger   *slog.Logger
}

// New creates a Client. The http.Client is copied so the per-call timeout
// does not leak into other users of it.
func New(name string, cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	hc := *httpClient
	hc.Timeout = cfg.Timeout

	logger = logger.With("source", name)
	return &Client{
		name:     name,
		http:     &hc,
		throttle: ratelimit.NewThrottle(cfg.Wait, cfg.Leading, cfg.Trailing),
		window:   ratelimit.NewSlidingWindow(cfg.MaxRequests, cfg.Window),
		retrier:  retry.NewRetrier(cfg.MaxRetries, cfg.RetryDelay, logger),
		logger:   logger,
	}
}

// Name returns the source this client serves.
func (c *Client) Name() string {
	return c.name
}

// Get issues a GET request. Any status other than 429 is returned to the
// caller, who must close the body. Fails with *model.FetchError once retries
// are exhausted.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.retrier.Do(ctx, url, func(ctx context.Context) (*http.Response, error) {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}
		if err := c.window.WaitForSlot(ctx); err != nil {
			return nil, err
		}
		defer c.throttle.Done()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		c.logger.Debug("fetching", "url", url)
		return c.http.Do(req)
	})
}

// GetJSON fetches url and decodes a JSON body into v. Non-2xx responses come
// back as *model.HTTPError; a non-JSON content type wraps model.ErrNotJSON.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status from %s", url),
		}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("%s fetch %s: %w", c.name, url, model.ErrNotJSON)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s decode %s: %w", c.name, url, err)
	}
	return nil
}

// isJSON accepts application/json and +json suffixes. An absent header is
// tolerated since several boards omit it.
func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || mt == "text/json" || strings.HasSuffix(mt, "+json")
}

// Registry hands out one Client per source name.
type Registry struct {
	mu       sync.Mutex
	configs  map[string]Config
	clients  map[string]*Client
	http     *http.Client
	fallback Config
	logger   *slog.Logger
}

// NewRegistry creates a registry. Sources missing from configs use DefaultConfig.
func NewRegistry(configs map[string]Config, httpClient *http.Client, logger *slog.Logger) *Registry {
	return &Registry{
		configs:  configs,
		clients:  make(map[string]*Client),
		http:     httpClient,
		fallback: DefaultConfig(),
		logger:   logger,
	}
}

// For returns the shared client for a source, creating it on first use.
func (r *Registry) For(name string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[name]; ok {
		return c
	}
	cfg, ok := r.configs[name]
	if !ok {
		cfg = r.fallback
	}
	c := New(name, cfg, r.http, r.logger)
	r.clients[name] = c
	return c
}
