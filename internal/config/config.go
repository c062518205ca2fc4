package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/ingest"
	"github.com/amishk599/jobsync/internal/orchestrator"
)

// Known source names, in rotation order.
var (
	ATSSources        = []string{"greenhouse", "lever", "ashby"}
	AggregatorSources = []string{"himalayas", "jobicy", "remotive"}
)

// Config is the root configuration for jobsync.
type Config struct {
	Sources  map[string]SourceConfig
	Sync     orchestrator.Settings
	Schedule ScheduleConfig
	Database DatabaseConfig
	Cursor   CursorConfig
	Server   ServerConfig
	Notify   NotifyConfig
}

// SourceConfig holds one source's politeness settings and work list.
type SourceConfig struct {
	Enabled   bool
	Fetch     fetcher.Config
	Companies []string // ATS board slugs
	Tags      []string // aggregator tag/industry/category rotation
	PageSize  int
}

// ScheduleConfig holds a cron spec per scheduled sync type. An empty spec
// leaves that type unscheduled.
type ScheduleConfig struct {
	ATS            string
	Aggregator     string
	Discovery      string
	Cleanup        string
	RunImmediately bool
}

// DatabaseConfig selects the SQL driver.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// CursorConfig selects where batch cursors live.
type CursorConfig struct {
	Backend  string // "sql" or "redis"
	RedisURL string
	Prefix   string
	TTL      time.Duration // 0 keeps cursors forever
}

// ServerConfig controls the streaming HTTP endpoint.
type ServerConfig struct {
	Enabled bool
	Addr    string
}

// NotifyConfig controls run report delivery.
type NotifyConfig struct {
	Type       string // "log" or "slack"
	WebhookURL string // required if type is "slack"
}

// Enabled returns the names of enabled sources, ATS first, each group in
// rotation order.
func (c *Config) Enabled() []string {
	var names []string
	for _, n := range append(slices.Clone(ATSSources), AggregatorSources...) {
		if sc, ok := c.Sources[n]; ok && sc.Enabled {
			names = append(names, n)
		}
	}
	return names
}

// FetchConfigs returns the fetcher settings keyed by source name.
func (c *Config) FetchConfigs() map[string]fetcher.Config {
	out := make(map[string]fetcher.Config, len(c.Sources))
	for name, sc := range c.Sources {
		out[name] = sc.Fetch
	}
	return out
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Sources   map[string]rawSourceConfig `yaml:"sources"`
	Sync      rawSyncConfig              `yaml:"sync"`
	Discovery rawDiscoveryConfig         `yaml:"discovery"`
	Schedule  rawScheduleConfig          `yaml:"schedule"`
	Database  rawDatabaseConfig          `yaml:"database"`
	Cursor    rawCursorConfig            `yaml:"cursor"`
	Server    rawServerConfig            `yaml:"server"`
	Notify    rawNotifyConfig            `yaml:"notification"`
}

type rawSourceConfig struct {
	Enabled       *bool    `yaml:"enabled"`
	Wait          string   `yaml:"wait"`
	Leading       *bool    `yaml:"leading"`
	Trailing      bool     `yaml:"trailing"`
	MaxRequests   *int     `yaml:"max_requests"`
	Window        string   `yaml:"window"`
	MaxRetries    *int     `yaml:"max_retries"`
	RetryDelay    string   `yaml:"retry_delay"`
	Timeout       string   `yaml:"timeout"`
	Companies     []string `yaml:"companies"`
	CompaniesFile string   `yaml:"companies_file"`
	Tags          []string `yaml:"tags"`
	PageSize      int      `yaml:"page_size"`
}

type rawSyncConfig struct {
	AddNew          *bool  `yaml:"add_new"`
	UpdateExisting  *bool  `yaml:"update_existing"`
	CompaniesPerRun int    `yaml:"companies_per_run"`
	JobsPerCompany  *int   `yaml:"jobs_per_company"`
	AggregatorLimit *int   `yaml:"aggregator_limit"`
	DedupMode       string `yaml:"dedup_mode"`
}

type rawDiscoveryConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type rawScheduleConfig struct {
	ATS            string `yaml:"ats"`
	Aggregator     string `yaml:"aggregator"`
	Discovery      string `yaml:"discovery"`
	Cleanup        string `yaml:"cleanup"`
	RunImmediately bool   `yaml:"run_immediately"`
}

type rawDatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type rawCursorConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
	TTL      string `yaml:"ttl"`
}

type rawServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type rawNotifyConfig struct {
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. A .env file next to the config (or in the working
// directory) is loaded first so ${VARS} in the YAML can reference it.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{Sources: make(map[string]SourceConfig)}

	for name, rs := range raw.Sources {
		sc, err := parseSource(name, rs, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		cfg.Sources[name] = sc
	}

	cfg.Sync = orchestrator.DefaultSettings()
	if raw.Sync.AddNew != nil {
		cfg.Sync.AddNew = *raw.Sync.AddNew
	}
	if raw.Sync.UpdateExisting != nil {
		cfg.Sync.UpdateExisting = *raw.Sync.UpdateExisting
	}
	if raw.Sync.CompaniesPerRun != 0 {
		cfg.Sync.CompaniesPerRun = raw.Sync.CompaniesPerRun
	}
	if raw.Sync.JobsPerCompany != nil {
		cfg.Sync.JobsPerCompany = *raw.Sync.JobsPerCompany
	}
	if raw.Sync.AggregatorLimit != nil {
		cfg.Sync.AggregatorLimit = *raw.Sync.AggregatorLimit
	}
	if raw.Sync.DedupMode != "" {
		mode, err := ingest.ParseDedupMode(raw.Sync.DedupMode)
		if err != nil {
			return nil, fmt.Errorf("parse sync.dedup_mode: %w", err)
		}
		cfg.Sync.DedupMode = mode
	}
	if raw.Discovery.BatchSize != 0 {
		cfg.Sync.DiscoveryBatch = raw.Discovery.BatchSize
	}

	cfg.Schedule = ScheduleConfig(raw.Schedule)

	cfg.Database = DatabaseConfig{Driver: raw.Database.Driver, DSN: raw.Database.DSN}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "jobsync.db"
	}

	cfg.Cursor = CursorConfig{
		Backend:  raw.Cursor.Backend,
		RedisURL: raw.Cursor.RedisURL,
		Prefix:   raw.Cursor.Prefix,
	}
	if cfg.Cursor.Backend == "" {
		cfg.Cursor.Backend = "sql"
	}
	if cfg.Cursor.Prefix == "" {
		cfg.Cursor.Prefix = "jobsync:"
	}
	if cfg.Cursor.TTL, err = parseDuration("cursor.ttl", raw.Cursor.TTL, 0); err != nil {
		return nil, err
	}

	cfg.Server = ServerConfig{Enabled: raw.Server.Enabled, Addr: raw.Server.Addr}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	cfg.Notify = NotifyConfig{Type: raw.Notify.Type, WebhookURL: raw.Notify.WebhookURL}
	if cfg.Notify.Type == "" {
		cfg.Notify.Type = "log"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// Existing environment wins over the file.
		_ = godotenv.Load(p)
	}
}

func parseSource(name string, rs rawSourceConfig, baseDir string) (SourceConfig, error) {
	fc := fetcher.DefaultConfig()
	var err error

	if fc.Wait, err = parseDuration("sources."+name+".wait", rs.Wait, fc.Wait); err != nil {
		return SourceConfig{}, err
	}
	if fc.Window, err = parseDuration("sources."+name+".window", rs.Window, fc.Window); err != nil {
		return SourceConfig{}, err
	}
	if fc.RetryDelay, err = parseDuration("sources."+name+".retry_delay", rs.RetryDelay, fc.RetryDelay); err != nil {
		return SourceConfig{}, err
	}
	if fc.Timeout, err = parseDuration("sources."+name+".timeout", rs.Timeout, fc.Timeout); err != nil {
		return SourceConfig{}, err
	}
	if rs.Leading != nil {
		fc.Leading = *rs.Leading
	}
	fc.Trailing = rs.Trailing
	if rs.MaxRequests != nil {
		fc.MaxRequests = *rs.MaxRequests
	}
	if rs.MaxRetries != nil {
		fc.MaxRetries = *rs.MaxRetries
	}

	sc := SourceConfig{
		Enabled:   rs.Enabled == nil || *rs.Enabled,
		Fetch:     fc,
		Companies: cleanList(rs.Companies),
		Tags:      cleanList(rs.Tags),
		PageSize:  rs.PageSize,
	}

	if rs.CompaniesFile != "" {
		file := rs.CompaniesFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		fromFile, err := readCompaniesFile(file)
		if err != nil {
			return SourceConfig{}, fmt.Errorf("sources.%s.companies_file: %w", name, err)
		}
		sc.Companies = cleanList(append(sc.Companies, fromFile...))
	}
	return sc, nil
}

// readCompaniesFile reads a JSON array of board slugs.
func readCompaniesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s does not exist", path)
		}
		return nil, err
	}
	var slugs []string
	if err := json.Unmarshal(data, &slugs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return slugs, nil
}

// cleanList trims entries and drops blanks and repeats, keeping order.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	for name, sc := range cfg.Sources {
		isATS := slices.Contains(ATSSources, name)
		if !isATS && !slices.Contains(AggregatorSources, name) {
			return fmt.Errorf("sources.%s: unknown source (known: %s, %s)", name,
				strings.Join(ATSSources, ", "), strings.Join(AggregatorSources, ", "))
		}
		if !sc.Enabled {
			continue
		}
		if isATS && len(sc.Companies) == 0 {
			return fmt.Errorf("sources.%s: at least one company is required when enabled", name)
		}
		if sc.Fetch.Wait < 0 || sc.Fetch.RetryDelay < 0 {
			return fmt.Errorf("sources.%s: wait and retry_delay must not be negative", name)
		}
		if sc.Fetch.MaxRequests < 0 || sc.Fetch.MaxRetries < 0 {
			return fmt.Errorf("sources.%s: max_requests and max_retries must not be negative", name)
		}
		if sc.Fetch.MaxRequests > 0 && sc.Fetch.Window <= 0 {
			return fmt.Errorf("sources.%s: window must be positive when max_requests is set", name)
		}
		if sc.Fetch.Timeout <= 0 {
			return fmt.Errorf("sources.%s: timeout must be positive, got %v", name, sc.Fetch.Timeout)
		}
		if sc.PageSize < 0 {
			return fmt.Errorf("sources.%s: page_size must not be negative", name)
		}
	}
	if len(cfg.Enabled()) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	if cfg.Sync.CompaniesPerRun <= 0 {
		return fmt.Errorf("sync.companies_per_run must be positive, got %d", cfg.Sync.CompaniesPerRun)
	}
	if cfg.Sync.JobsPerCompany < 0 || cfg.Sync.AggregatorLimit < 0 {
		return fmt.Errorf("sync.jobs_per_company and sync.aggregator_limit must not be negative")
	}
	if cfg.Sync.DiscoveryBatch <= 0 {
		return fmt.Errorf("discovery.batch_size must be positive, got %d", cfg.Sync.DiscoveryBatch)
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", cfg.Database.Driver)
	}

	switch cfg.Cursor.Backend {
	case "sql":
	case "redis":
		if cfg.Cursor.RedisURL == "" {
			return fmt.Errorf("cursor.redis_url is required when backend is \"redis\"")
		}
	default:
		return fmt.Errorf("cursor.backend must be \"sql\" or \"redis\", got %q", cfg.Cursor.Backend)
	}
	if cfg.Cursor.TTL < 0 {
		return fmt.Errorf("cursor.ttl must not be negative")
	}

	switch cfg.Notify.Type {
	case "log":
	case "slack":
		if cfg.Notify.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notify.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notify.Type)
	}

	return nil
}
