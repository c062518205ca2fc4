package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run <ats|aggregator|discovery>",
	Short: "Run one scheduled batch and exit",
	Long: "Runs a single bounded invocation of one sync type, resuming from and advancing its cursor. " +
		"Suited to an external scheduler that fires the binary on an interval.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{model.SyncATS, model.SyncAggregator, model.SyncDiscovery},
	RunE:      runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx, false, logger)
	defer a.Close()

	opts := orchestrator.Options{Sink: a.notify}
	var (
		run model.SyncRun
		err error
	)
	switch args[0] {
	case model.SyncATS:
		run, err = a.orch.RunATS(ctx, opts)
	case model.SyncAggregator:
		run, err = a.orch.RunAggregator(ctx, opts)
	case model.SyncDiscovery:
		run, err = a.orch.RunDiscovery(ctx, opts)
	}
	if err != nil {
		logger.Error("run failed", "type", args[0], "run_id", run.ID, "error", err)
		a.Close()
		os.Exit(1)
	}
	printStats(run)
	return nil
}

func printStats(run model.SyncRun) {
	s := run.Stats
	fmt.Printf("\n%s run %s: %s", run.SyncType, run.ID, run.Status)
	if run.Source != "" {
		fmt.Printf(" (%s)", run.Source)
	}
	if s.Aborted {
		fmt.Print(" [aborted]")
	}
	fmt.Printf("\n  fetched %d  added %d  updated %d  skipped %d  failed %d\n",
		s.Fetched, s.Added, s.Updated, s.Skipped, s.Failed)
	if s.Companies > 0 || s.NoBoard > 0 {
		fmt.Printf("  companies %d  no board %d\n", s.Companies, s.NoBoard)
	}
	if s.Checked > 0 {
		fmt.Printf("  checked %d  discovered %d  not found %d\n", s.Checked, s.Discovered, s.NotFound)
	}
	if s.DuplicatesRemoved > 0 {
		fmt.Printf("  duplicates removed %d\n", s.DuplicatesRemoved)
	}
}
