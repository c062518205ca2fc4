package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/amishk599/jobsync/internal/model"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements model.Store on SQLite (modernc) or PostgreSQL (pgx).
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ model.Store = (*SQLStore)(nil)

// Open connects to the database named by driver ("sqlite" or "postgres")
// and creates any missing tables.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "":
		return open(ctx, "sqlite", sqliteDSN(dsn), dialectSQLite)
	case "postgres", "pgx":
		return open(ctx, "pgx", dsn, dialectPostgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	return Open(context.Background(), "sqlite", dbPath)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func open(ctx context.Context, driverName, dsn string, d dialect) (*SQLStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driverName, err)
	}

	// Verify the connection is alive.
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", driverName, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	serial, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if s.dialect == dialectPostgres {
		serial, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id               ` + serial + `,
			title            TEXT NOT NULL,
			company          TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			description_raw  TEXT NOT NULL DEFAULT '',
			full_description TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			salary           TEXT NOT NULL DEFAULT '',
			post_date        ` + ts + ` NULL,
			source_url       TEXT NOT NULL UNIQUE,
			source_name      TEXT NOT NULL,
			tags             TEXT NOT NULL DEFAULT '[]',
			category_id      INTEGER NOT NULL REFERENCES categories (id),
			remote_type      TEXT NOT NULL DEFAULT 'remote',
			is_cleansed      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       ` + ts + ` NOT NULL,
			updated_at       ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS discovered_companies (
			slug               TEXT PRIMARY KEY,
			source             TEXT NOT NULL,
			job_count          INTEGER NOT NULL DEFAULT 0,
			remote_job_count   INTEGER NOT NULL DEFAULT 0,
			departments        TEXT NOT NULL DEFAULT '[]',
			suggested_category INTEGER NOT NULL DEFAULT 0,
			created_at         ` + ts + ` NOT NULL,
			updated_at         ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS potential_companies (
			slug            TEXT PRIMARY KEY,
			status          TEXT NOT NULL DEFAULT 'pending',
			check_count     INTEGER NOT NULL DEFAULT 0,
			last_checked_at ` + ts + ` NULL,
			created_at      ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			id           TEXT PRIMARY KEY,
			sync_type    TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			started_at   ` + ts + ` NOT NULL,
			completed_at ` + ts + ` NULL,
			stats        TEXT NOT NULL DEFAULT '{}',
			logs         TEXT NOT NULL DEFAULT '[]',
			error        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_history_type ON sync_history (sync_type, started_at)`,
		`CREATE TABLE IF NOT EXISTS company_job_progress (
			company_slug          TEXT NOT NULL,
			source                TEXT NOT NULL,
			last_job_offset       INTEGER NOT NULL DEFAULT 0,
			total_jobs_discovered INTEGER NOT NULL DEFAULT 0,
			updated_at            ` + ts + ` NOT NULL,
			PRIMARY KEY (company_slug, source)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

// isUniqueViolation classifies unique-constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
