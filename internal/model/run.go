package model

import "time"

// Sync types. Scheduled types keep one cursor row each.
const (
	SyncATS        = "ats"
	SyncAggregator = "aggregator"
	SyncDiscovery  = "discovery"
	SyncCleanup    = "cleanup"
	SyncManual     = "manual" // interactive runs; never touch a cursor
)

// RunStatus is the lifecycle state of a SyncRun.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunRunning    RunStatus = "running"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunBatchState RunStatus = "batch_state" // long-lived row reused as the cursor
)

// LogLevel is the level attached to run log lines.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogFunc receives leveled progress lines from adapters and workers.
type LogFunc func(level LogLevel, msg string)

// LogEntry is one line of SyncRun.Logs.
type LogEntry struct {
	Time    time.Time `json:"timestamp"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

// RunStats are the counters stored with a SyncRun.
type RunStats struct {
	Fetched           int  `json:"fetched"`
	Added             int  `json:"added"`
	Updated           int  `json:"updated"`
	Skipped           int  `json:"skipped"`
	Failed            int  `json:"failed"`
	Companies         int  `json:"companies,omitempty"`
	NoBoard           int  `json:"noBoard,omitempty"`
	Checked           int  `json:"checked,omitempty"`
	Discovered        int  `json:"discovered,omitempty"`
	NotFound          int  `json:"notFound,omitempty"`
	DuplicatesRemoved int  `json:"duplicatesRemoved,omitempty"`
	Aborted           bool `json:"aborted,omitempty"`
}

// Add folds other into s.
func (s *RunStats) Add(other RunStats) {
	s.Fetched += other.Fetched
	s.Added += other.Added
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Companies += other.Companies
	s.NoBoard += other.NoBoard
	s.Checked += other.Checked
	s.Discovered += other.Discovered
	s.NotFound += other.NotFound
	s.DuplicatesRemoved += other.DuplicatesRemoved
	s.Aborted = s.Aborted || other.Aborted
}

// SyncRun is the audit record of one invocation.
type SyncRun struct {
	ID          string
	SyncType    string
	Source      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Stats       RunStats
	Logs        []LogEntry
	Error       string
}

// BatchState is the cursor persisted between invocations of one sync type.
// Stored as an opaque JSON blob.
type BatchState struct {
	LastSource string         `json:"lastSource,omitempty"`
	Indices    map[string]int `json:"indices,omitempty"`  // next company index per ATS source
	Offsets    map[string]int `json:"offsets,omitempty"`  // next feed offset per aggregator
	TagIndex   map[string]int `json:"tagIndex,omitempty"` // next tag/industry per aggregator
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// CompanyJobProgress lets one company's job list be paged across invocations.
type CompanyJobProgress struct {
	CompanySlug         string
	Source              string
	LastJobOffset       int
	TotalJobsDiscovered int
	UpdatedAt           time.Time
}
