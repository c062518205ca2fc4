package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// Attempt performs one HTTP round trip.
type Attempt func(ctx context.Context) (*http.Response, error)

// Retrier retries rate-limited (HTTP 429) and transport-failed requests with
// exponential backoff. Every other response, including 4xx/5xx, is returned
// as-is for the caller to interpret.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrier creates a retrier.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetrier(maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrier{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Do runs attempt until it yields a non-429 response, a non-retryable error,
// or retries are exhausted. Exhaustion surfaces a *model.FetchError wrapping
// the last failure.
func (r *Retrier) Do(ctx context.Context, url string, attempt Attempt) (*http.Response, error) {
	var lastErr error
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s cancelled: %w", url, err)
		}

		resp, err := attempt(ctx)
		switch {
		case err == nil && resp.StatusCode != http.StatusTooManyRequests:
			return resp, nil
		case err == nil:
			lastErr = &model.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
				Err:        fmt.Errorf("rate limited by %s", url),
			}
			resp.Body.Close()
		default:
			if !isRetryable(ctx, err) {
				return nil, err
			}
			lastErr = err
		}

		if n >= r.maxRetries {
			return nil, &model.FetchError{URL: url, Attempts: n + 1, Err: lastErr}
		}

		delay := r.backoffDelay(n, lastErr)
		r.logger.Warn("retrying after transient error",
			"url", url,
			"attempt", n+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// backoffDelay computes baseDelay * 2^n. A Retry-After duration carried by
// an HTTP 429 takes precedence.
func (r *Retrier) backoffDelay(n int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return r.baseDelay << n
}

// isRetryable reports whether a transport failure is worth retrying. A
// per-call timeout is; cancellation of the caller's context is not.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// ParseRetryAfter parses a Retry-After header value in either the
// delta-seconds or HTTP-date form. Returns zero if absent or unparseable.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
