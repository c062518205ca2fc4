package model

import (
	"context"
	"time"
)

// SourceKind groups sources by how they expose listings.
type SourceKind string

const (
	KindATS        SourceKind = "ats"        // one board per company slug
	KindAggregator SourceKind = "aggregator" // one pooled, paginated feed
)

const (
	RemoteTypeRemote      = "remote"
	RemoteTypeFullyRemote = "fully_remote"
)

// RawJob is a single listing as returned by a source, before persistence.
type RawJob struct {
	ExternalID  string
	Title       string
	Company     string
	Description string // possibly raw HTML
	Location    string
	Salary      string // empty when the source does not provide one
	PostedAt    *time.Time
	SourceURL   string // natural key
	SourceName  string
	Tags        []string
	RemoteType  string // set by sources that assert full remoteness
}

// Job is the stored record for a listing, keyed by SourceURL.
type Job struct {
	ID              int64
	Title           string
	Company         string
	Description     string // plain-text summary
	DescriptionRaw  string // as received
	FullDescription string // sanitized HTML
	Location        string
	Salary          string
	PostedAt        *time.Time
	SourceURL       string
	SourceName      string
	Tags            []string
	CategoryID      int
	RemoteType      string
	IsCleansed      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobKey is the projection of a stored job used for duplicate resolution.
type JobKey struct {
	ID         int64
	Title      string
	Company    string
	SourceURL  string
	SourceName string
	CreatedAt  time.Time
}

// Category is a static lookup row. The keyword taxonomy lives in the categorizer.
type Category struct {
	ID   int
	Name string
}

// FetchOptions narrows a single Fetch call on a source.
type FetchOptions struct {
	Query     string   // tag/industry/category for aggregators
	Companies []string // subset of configured slugs for ATS sources; empty = all
	JobOffset int      // skip this many filtered jobs (per company for ATS, per feed for aggregators)
	Limit     int      // max jobs to yield per company (ATS) or in total (aggregator); 0 = no cap
	Log       LogFunc
}

// Logf sends a leveled line to the options' log callback, if any.
func (o FetchOptions) Logf(level LogLevel, msg string) {
	if o.Log != nil {
		o.Log(level, msg)
	}
}

// Batch is one unit yielded by a BatchStream.
type Batch struct {
	Company     string // slug for ATS batches, empty for aggregator pages
	Jobs        []RawJob
	TotalRemote int // remote jobs available before offset/limit were applied
}

// StreamStats summarises what a stream saw so far.
type StreamStats struct {
	Companies  int  // companies attempted
	NoBoard    int  // companies answering 404
	Failed     int  // companies or pages that failed
	Skipped    int  // malformed items dropped
	Jobs       int  // jobs yielded
	NextOffset int  // aggregator feed position after the last consumed item
	Exhausted  bool // aggregator reached the end of its feed
}

// BatchStream is a finite, non-restartable iterator over listing batches.
// Usage mirrors sql.Rows: loop on Next, read Batch, check Err.
type BatchStream interface {
	Next(ctx context.Context) bool
	Batch() Batch
	Err() error
	Stats() StreamStats
	Close() error
}

// JobSource is implemented by every board adapter.
type JobSource interface {
	Name() string
	Kind() SourceKind
	Fetch(opts FetchOptions) BatchStream
}

// CompanyLister is implemented by ATS sources that iterate a company list.
type CompanyLister interface {
	Companies() []string
}

// TagRotator is implemented by aggregators that rotate coverage across a
// tag, industry or category list.
type TagRotator interface {
	Tags() []string
}

// BoardSummary describes a company board found while probing.
type BoardSummary struct {
	Slug           string
	Source         string
	JobCount       int
	RemoteJobCount int
	Departments    []string
	Titles         []string
}

// BoardProber checks whether a company slug has a board on an ATS.
// Implementations return ErrNoBoard when it does not.
type BoardProber interface {
	Name() string
	Probe(ctx context.Context, slug string) (BoardSummary, error)
}
