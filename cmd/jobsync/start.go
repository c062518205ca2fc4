package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/orchestrator"
	"github.com/amishk599/jobsync/internal/scheduler"
	"github.com/amishk599/jobsync/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync daemon",
	Long: "Start the cron scheduler (and the streaming HTTP endpoint when server.enabled is set); " +
		"blocks until SIGINT/SIGTERM.",
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx, false, logger)
	defer a.Close()

	jobs := scheduledJobs(a)
	if len(jobs) == 0 && !a.cfg.Server.Enabled {
		logger.Error("nothing to do: no schedule entries and server disabled")
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)
	if len(jobs) > 0 {
		sched := scheduler.NewScheduler(jobs, a.cfg.Schedule.RunImmediately, logger)
		g.Go(func() error { return sched.Run(ctx) })
	}
	if a.cfg.Server.Enabled {
		srv := server.New(a.orch, a.store, a.notify, logger)
		g.Go(func() error { return srv.ListenAndServe(ctx, a.cfg.Server.Addr) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// scheduledJobs maps each configured cron spec to its orchestrator entry point.
func scheduledJobs(a *app) []scheduler.Job {
	opts := orchestrator.Options{Sink: a.notify}
	entries := []struct {
		name string
		spec string
		run  func(context.Context, orchestrator.Options) (model.SyncRun, error)
	}{
		{model.SyncATS, a.cfg.Schedule.ATS, a.orch.RunATS},
		{model.SyncAggregator, a.cfg.Schedule.Aggregator, a.orch.RunAggregator},
		{model.SyncDiscovery, a.cfg.Schedule.Discovery, a.orch.RunDiscovery},
		{model.SyncCleanup, a.cfg.Schedule.Cleanup, func(ctx context.Context, opts orchestrator.Options) (model.SyncRun, error) {
			return a.orch.RunCleanup(ctx, "", opts)
		}},
	}

	var jobs []scheduler.Job
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		run := e.run
		jobs = append(jobs, scheduler.Job{
			Name: e.name,
			Spec: e.spec,
			Run: func(ctx context.Context) error {
				_, err := run(ctx, opts)
				return err
			},
		})
	}
	return jobs
}
