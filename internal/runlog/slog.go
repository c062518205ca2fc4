package runlog

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobsync/internal/model"
)

var _ Sink = (*SlogSink)(nil)

// SlogSink writes run events to a logger as structured messages.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink that logs each event via slog.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(e Event) {
	args := []any{"run_id", e.RunID, "sync_type", e.SyncType}
	if e.Source != "" {
		args = append(args, "source", e.Source)
	}
	if e.Stats != nil {
		args = append(args,
			"fetched", e.Stats.Fetched,
			"added", e.Stats.Added,
			"updated", e.Stats.Updated,
			"skipped", e.Stats.Skipped,
			"failed", e.Stats.Failed,
		)
	}

	switch e.Type {
	case EventLog:
		s.logger.Log(context.Background(), levelOf(e.Level), e.Message, args...)
	case EventSyncStarted:
		s.logger.Info("sync started", args...)
	case EventReport:
		s.logger.Info("sync report", args...)
	case EventComplete:
		s.logger.Info("sync complete", args...)
	case EventError:
		s.logger.Error("sync failed", append(args, "error", e.Message)...)
	}
}

func levelOf(l model.LogLevel) slog.Level {
	switch l {
	case model.LevelError:
		return slog.LevelError
	case model.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
