package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoBoard is returned when a per-company board does not exist (HTTP 404).
	ErrNoBoard = errors.New("no board")
	// ErrNotJSON is returned when an upstream answers with a non-JSON content type.
	ErrNotJSON = errors.New("response is not JSON")
	// ErrDuplicate is returned when an insert loses a unique-constraint race.
	ErrDuplicate = errors.New("duplicate row")
	// ErrNotFound is returned by stores when a keyed row does not exist.
	ErrNotFound = errors.New("not found")
)

// HTTPError wraps an HTTP status code so callers can classify upstream failures.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// FetchError is returned by the fetcher once every retry attempt has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
