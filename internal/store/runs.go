package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// cursorID is the sync_history row reused as the batch cursor for syncType.
func cursorID(syncType string) string {
	return string(model.RunBatchState) + ":" + syncType
}

// CreateSyncRun inserts a new run record.
func (s *SQLStore) CreateSyncRun(ctx context.Context, run *model.SyncRun) error {
	stats, logs, err := encodeRun(run)
	if err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err = s.exec(ctx, `
		INSERT INTO sync_history (id, sync_type, source, status, started_at, completed_at, stats, logs, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SyncType, run.Source, string(run.Status), run.StartedAt.UTC(),
		nullTime(run.CompletedAt), stats, logs, run.Error)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateSyncRun rewrites status, completion, stats and error of run. Logs are
// only ever appended through AppendRunLog.
func (s *SQLStore) UpdateSyncRun(ctx context.Context, run *model.SyncRun) error {
	stats, _, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `
		UPDATE sync_history SET source = ?, status = ?, completed_at = ?, stats = ?, error = ?
		WHERE id = ?`,
		run.Source, string(run.Status), nullTime(run.CompletedAt), stats, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating run %s: %w", run.ID, model.ErrNotFound)
	}
	return nil
}

// AppendRunLog adds one entry to the stored log of runID.
func (s *SQLStore) AppendRunLog(ctx context.Context, runID string, entry model.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("appending log to %s: %w", runID, err)
	}
	defer tx.Rollback()

	q := `SELECT logs FROM sync_history WHERE id = ?`
	if s.dialect == dialectPostgres {
		q += ` FOR UPDATE`
	}
	var raw string
	if err := tx.QueryRowContext(ctx, s.rebind(q), runID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("appending log to %s: %w", runID, model.ErrNotFound)
		}
		return fmt.Errorf("appending log to %s: %w", runID, err)
	}

	var logs []model.LogEntry
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		return fmt.Errorf("decoding logs of %s: %w", runID, err)
	}
	logs = append(logs, entry)
	encoded, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encoding logs of %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE sync_history SET logs = ? WHERE id = ?`), string(encoded), runID); err != nil {
		return fmt.Errorf("appending log to %s: %w", runID, err)
	}
	return tx.Commit()
}

// ListSyncRuns returns the newest runs of syncType (all types when empty),
// excluding cursor rows.
func (s *SQLStore) ListSyncRuns(ctx context.Context, syncType string, limit int) ([]model.SyncRun, error) {
	q := `SELECT id, sync_type, source, status, started_at, completed_at, stats, logs, error
		FROM sync_history WHERE status <> ?`
	args := []any{string(model.RunBatchState)}
	if syncType != "" {
		q += ` AND sync_type = ?`
		args = append(args, syncType)
	}
	q += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		var (
			r           model.SyncRun
			status      string
			completed   sql.NullTime
			stats, logs string
		)
		if err := rows.Scan(&r.ID, &r.SyncType, &r.Source, &status, &r.StartedAt, &completed, &stats, &logs, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
			return nil, fmt.Errorf("decoding stats of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(logs), &r.Logs); err != nil {
			return nil, fmt.Errorf("decoding logs of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadCursor reads the batch cursor of syncType. A missing row is the zero state.
func (s *SQLStore) LoadCursor(ctx context.Context, syncType string) (model.BatchState, error) {
	var (
		state model.BatchState
		raw   string
	)
	err := s.queryRow(ctx, `SELECT stats FROM sync_history WHERE id = ?`, cursorID(syncType)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("loading %s cursor: %w", syncType, err)
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return state, fmt.Errorf("decoding %s cursor: %w", syncType, err)
	}
	return state, nil
}

// SaveCursor upserts the batch cursor of syncType.
func (s *SQLStore) SaveCursor(ctx context.Context, syncType string, state model.BatchState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding %s cursor: %w", syncType, err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO sync_history (id, sync_type, source, status, started_at, stats, logs, error)
		VALUES (?, ?, '', ?, ?, ?, '[]', '')
		ON CONFLICT (id) DO UPDATE SET stats = excluded.stats, started_at = excluded.started_at`,
		cursorID(syncType), syncType, string(model.RunBatchState), state.UpdatedAt.UTC(), string(raw))
	if err != nil {
		return fmt.Errorf("saving %s cursor: %w", syncType, err)
	}
	return nil
}

func encodeRun(run *model.SyncRun) (string, string, error) {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return "", "", fmt.Errorf("encoding stats of %s: %w", run.ID, err)
	}
	logs := run.Logs
	if logs == nil {
		logs = []model.LogEntry{}
	}
	encoded, err := json.Marshal(logs)
	if err != nil {
		return "", "", fmt.Errorf("encoding logs of %s: %w", run.ID, err)
	}
	return string(stats), string(encoded), nil
}
