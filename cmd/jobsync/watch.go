package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/orchestrator"
	"github.com/amishk599/jobsync/internal/runlog"
	"github.com/amishk599/jobsync/internal/tui"
)

var (
	watchSources   []string
	watchPick      bool
	watchDiscovery bool
	watchCleanup   bool
	watchDryRun    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run an interactive sync and follow it live (TUI)",
	Long: "Optionally shows a source picker, then runs a manual sync across the chosen sources " +
		"and streams its log full-screen. Press q to abort a running sync.",
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchSources, "sources", nil, "limit to these sources (comma-separated)")
	watchCmd.Flags().BoolVar(&watchPick, "pick", false, "choose sources interactively")
	watchCmd.Flags().BoolVar(&watchDiscovery, "discovery", false, "run a discovery batch after the sources")
	watchCmd.Flags().BoolVar(&watchCleanup, "cleanup", false, "remove duplicates after the sources")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "persist nothing")
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	// Anything written to stdout while the alt-screen is up corrupts the
	// display, so the engine logs nowhere.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	a, err := buildApp(ctx, cfg, watchDryRun, silent)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	sources := watchSources
	if watchPick {
		chosen, ok, err := tui.RunSourcePicker(a.orch.Sources())
		if err != nil {
			return fmt.Errorf("source picker: %w", err)
		}
		if !ok {
			return nil
		}
		sources = chosen
	}

	// Dry runs stay off Slack.
	var notify runlog.Sink
	if !watchDryRun {
		notify = a.notify
	}

	result, err := tui.RunWatch("jobsync · manual sync", func(ctx context.Context, sink runlog.Sink) {
		a.orch.RunInteractive(ctx, orchestrator.Options{
			Sources:   sources,
			Discovery: watchDiscovery,
			Cleanup:   watchCleanup,
			Sink:      runlog.MultiSink{sink, notify},
		})
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	s := result.Stats
	switch {
	case result.Failed:
		fmt.Printf("run %s failed: %s\n", result.RunID, result.Error)
	case result.Aborted:
		fmt.Printf("run %s aborted\n", result.RunID)
	default:
		fmt.Printf("run %s complete\n", result.RunID)
	}
	fmt.Printf("  fetched %d  added %d  updated %d  skipped %d  failed %d\n",
		s.Fetched, s.Added, s.Updated, s.Skipped, s.Failed)
	if result.Failed {
		a.Close()
		os.Exit(1)
	}
	return nil
}
