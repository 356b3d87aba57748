// ABOUTME: SQLite sink for the append-only execution log using modernc.org/sqlite.
// ABOUTME: Schema created on open; retention purging is driven by an external process.

package execlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists execution log entries to a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) the execution log database at path.
// Parent directories are created if needed.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	logger := slog.Default().With("component", "execlog.sqlite")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode keeps concurrent appends from blocking readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteSink{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("execution log store initialized", "path", path)
	return s, nil
}

func (s *SQLiteSink) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS execution_log (
			execution_id TEXT PRIMARY KEY,
			capability TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			parameters_digest TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			error_code TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_execution_log_started_at ON execution_log(started_at);
		CREATE INDEX IF NOT EXISTS idx_execution_log_caller ON execution_log(caller_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes one entry. Entries are immutable once written.
func (s *SQLiteSink) Append(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO execution_log (
			execution_id, capability, caller_id, parameters_digest,
			started_at, duration_ms, outcome, error_code
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var errorCode *string
	if e.ErrorCode != "" {
		errorCode = &e.ErrorCode
	}
	_, err := s.db.ExecContext(ctx, query,
		e.ExecutionID,
		e.Capability,
		e.CallerID,
		e.ParametersDigest,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.DurationMs,
		e.Outcome,
		errorCode,
	)
	if err != nil {
		return fmt.Errorf("inserting execution log entry: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	CallerID   string
	Capability string
	Since      time.Time
	Limit      int
}

// List returns entries newest first.
func (s *SQLiteSink) List(ctx context.Context, f Filter) ([]*Entry, error) {
	query := `
		SELECT execution_id, capability, caller_id, parameters_digest,
		       started_at, duration_ms, outcome, error_code
		FROM execution_log
		WHERE 1=1
	`
	var args []any
	if f.CallerID != "" {
		query += " AND caller_id = ?"
		args = append(args, f.CallerID)
	}
	if f.Capability != "" {
		query += " AND capability = ?"
		args = append(args, f.Capability)
	}
	if !f.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY started_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying execution log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var startedAt string
		var errorCode sql.NullString
		if err := rows.Scan(
			&e.ExecutionID, &e.Capability, &e.CallerID, &e.ParametersDigest,
			&startedAt, &e.DurationMs, &e.Outcome, &errorCode,
		); err != nil {
			return nil, fmt.Errorf("scanning execution log row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		e.StartedAt = ts
		if errorCode.Valid {
			e.ErrorCode = errorCode.String
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// PurgeBefore deletes entries older than cutoff. Retention policy lives with
// the external process that calls this.
func (s *SQLiteSink) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM execution_log WHERE started_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purging execution log: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
