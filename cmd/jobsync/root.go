package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/adapter"
	"github.com/amishk599/jobsync/internal/config"
	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/orchestrator"
	"github.com/amishk599/jobsync/internal/runlog"
	"github.com/amishk599/jobsync/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsync",
	Short: "Remote job ingestion engine",
	Long: "jobsync pulls remote job postings from ATS boards and aggregator feeds in small, " +
		"resumable batches, normalizes them, and keeps a deduplicated job store current.",
	// Default to `start` so that `jobsync` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSYNC_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSYNC_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSYNC_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// setupNotifier returns the sink every run reports to: structured logs, plus
// Slack when configured.
func setupNotifier(cfg *config.Config, logger *slog.Logger) runlog.Sink {
	sinks := runlog.MultiSink{runlog.NewSlogSink(logger)}
	if cfg.Notify.Type == "slack" {
		logger.Info("using slack notifier")
		sinks = append(sinks, runlog.NewSlackSink(cfg.Notify.WebhookURL, &http.Client{Timeout: 30 * time.Second}, logger))
	}
	return sinks
}

// buildSources creates one adapter per known source sharing a client
// registry. Enabled sources are returned for syncing; every ATS adapter is
// returned as a board prober for discovery, enabled or not.
func buildSources(cfg *config.Config, logger *slog.Logger) ([]model.JobSource, []model.BoardProber) {
	registry := fetcher.NewRegistry(cfg.FetchConfigs(), &http.Client{}, logger)
	sc := func(name string) config.SourceConfig { return cfg.Sources[name] }

	greenhouse := adapter.NewGreenhouseAdapter(registry.For("greenhouse"), sc("greenhouse").Companies, logger)
	lever := adapter.NewLeverAdapter(registry.For("lever"), sc("lever").Companies, logger)
	ashby := adapter.NewAshbyAdapter(registry.For("ashby"), sc("ashby").Companies, logger)

	all := map[string]model.JobSource{
		"greenhouse": greenhouse,
		"lever":      lever,
		"ashby":      ashby,
		"himalayas":  adapter.NewHimalayasAdapter(registry.For("himalayas"), sc("himalayas").PageSize, logger),
		"jobicy":     adapter.NewJobicyAdapter(registry.For("jobicy"), sc("jobicy").Tags, sc("jobicy").PageSize, logger),
		"remotive":   adapter.NewRemotiveAdapter(registry.For("remotive"), sc("remotive").Tags, sc("remotive").PageSize, logger),
	}

	var sources []model.JobSource
	for _, name := range cfg.Enabled() {
		sources = append(sources, all[name])
		logger.Debug("registered source", "name", name, "companies", len(sc(name).Companies), "tags", len(sc(name).Tags))
	}
	return sources, []model.BoardProber{greenhouse, lever, ashby}
}

// app is the wired engine shared by the subcommands.
type app struct {
	cfg     *config.Config
	store   model.Store
	orch    *orchestrator.Orchestrator
	notify  runlog.Sink
	closers []func() error
}

// buildApp opens the stores and wires the orchestrator. With dryRun nothing
// is persisted and cursors are never read.
func buildApp(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, notify: setupNotifier(cfg, logger)}

	if dryRun {
		a.store = store.NewNopStore()
	} else {
		sqlStore, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = sqlStore
		a.closers = append(a.closers, sqlStore.Close)
	}

	var cursors model.CursorStore
	if !dryRun && cfg.Cursor.Backend == "redis" {
		rc, err := store.NewRedisCursorStore(cfg.Cursor.RedisURL, cfg.Cursor.Prefix, cfg.Cursor.TTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open redis cursor store: %w", err)
		}
		cursors = rc
		a.closers = append(a.closers, rc.Close)
		logger.Info("using redis cursor store", "prefix", cfg.Cursor.Prefix)
	}

	sources, boards := buildSources(cfg, logger)
	a.orch = orchestrator.New(a.store, cursors, sources, boards, cfg.Sync, logger)
	if err := a.orch.Prepare(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("engine ready",
		"sources", a.orch.Sources(),
		"database", cfg.Database.Driver,
		"cursor", cfg.Cursor.Backend,
		"dry_run", dryRun,
	)
	return a, nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// mustApp loads config and builds the app, exiting on failure.
func mustApp(ctx context.Context, dryRun bool, logger *slog.Logger) *app {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	a, err := buildApp(ctx, cfg, dryRun, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	return a
}
