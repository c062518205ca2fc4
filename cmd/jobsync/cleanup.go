package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/ingest"
	"github.com/amishk599/jobsync/internal/orchestrator"
)

var cleanupMode string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove duplicate jobs",
	Long: "Groups stored jobs by normalized title and company (or by normalized source URL with " +
		"--mode source_url) and deletes all but the preferred copy of each group.",
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupMode, "mode", "", "grouping mode: title_company or source_url (default: sync.dedup_mode)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	var mode ingest.DedupMode
	if cleanupMode != "" {
		m, err := ingest.ParseDedupMode(cleanupMode)
		if err != nil {
			return err
		}
		mode = m
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx, false, logger)
	defer a.Close()

	run, err := a.orch.RunCleanup(ctx, mode, orchestrator.Options{Sink: a.notify})
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	printStats(run)
	return nil
}
