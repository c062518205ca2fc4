package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled sync type.
type Job struct {
	Name string
	Spec string // cron spec, e.g. "*/15 * * * *" or "@every 30m"
	Run  func(ctx context.Context) error
}

// Scheduler triggers each job on its cron spec. A job still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron           *cron.Cron
	jobs           []Job
	runImmediately bool
	logger         *slog.Logger
}

// NewScheduler creates a scheduler for jobs. With runImmediately, every job
// runs once at start, in order, without waiting for its first tick.
func NewScheduler(jobs []Job, runImmediately bool, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:           cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		jobs:           jobs,
		runImmediately: runImmediately,
		logger:         logger,
	}
}

// Run registers the jobs and blocks until ctx is cancelled, then waits for
// running jobs to return. It returns nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	wrapped := make([]cron.Job, len(s.jobs))
	for i, j := range s.jobs {
		wrapped[i] = cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})).Then(s.wrap(ctx, j))
		if _, err := s.cron.AddJob(j.Spec, wrapped[i]); err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", j.Name, j.Spec, err)
		}
	}

	s.logger.Info("starting scheduler", "jobs", len(s.jobs))
	s.cron.Start()

	var initial sync.WaitGroup
	if s.runImmediately {
		initial.Add(1)
		go func() {
			defer initial.Done()
			for _, w := range wrapped {
				if ctx.Err() != nil {
					return
				}
				w.Run()
			}
		}()
	}

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-s.cron.Stop().Done()
	initial.Wait()
	return nil
}

func (s *Scheduler) wrap(ctx context.Context, j Job) cron.FuncJob {
	return func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled run starting", "job", j.Name)
		if err := j.Run(ctx); err != nil {
			s.logger.Error("scheduled run failed", "job", j.Name, "error", err)
			return
		}
		s.logger.Info("scheduled run finished", "job", j.Name)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
