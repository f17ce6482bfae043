// Package store keeps the invocation journal in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"convertmcp/internal/model"
)

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
  id TEXT PRIMARY KEY,
  tool TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  ext_out TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  error_kind TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  started_unix_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0
);

-- history lists newest first.
CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_unix_ms);
`

// SQLiteStore is the journal. It opens the database lazily and is safe for
// concurrent use.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if strings.TrimSpace(s.path) == "" {
		return errors.New("journal path is required")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Record inserts inv. Re-recording an id replaces the earlier row.
func (s *SQLiteStore) Record(ctx context.Context, inv model.Invocation) error {
	if strings.TrimSpace(inv.ID) == "" {
		return errors.New("invocation id is required")
	}
	if strings.TrimSpace(inv.Tool) == "" {
		return errors.New("invocation tool is required")
	}
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(
		ctx,
		`INSERT INTO invocations(id, tool, file_path, ext_out, outcome, error_kind, message, started_unix_ms, duration_ms)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tool=excluded.tool,
		   file_path=excluded.file_path,
		   ext_out=excluded.ext_out,
		   outcome=excluded.outcome,
		   error_kind=excluded.error_kind,
		   message=excluded.message,
		   started_unix_ms=excluded.started_unix_ms,
		   duration_ms=excluded.duration_ms`,
		inv.ID,
		inv.Tool,
		inv.FilePath,
		inv.ExtOut,
		defaultIfEmpty(inv.Outcome, model.OutcomeOK),
		string(inv.ErrorKind),
		inv.Message,
		inv.StartedAt.UnixMilli(),
		inv.Duration.Milliseconds(),
	)
	return err
}

// Recent returns up to limit invocations, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.Invocation, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT id, tool, file_path, ext_out, outcome, error_kind, message, started_unix_ms, duration_ms
		 FROM invocations ORDER BY started_unix_ms DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Invocation, 0, limit)
	for rows.Next() {
		var (
			inv        model.Invocation
			errorKind  string
			startedMS  int64
			durationMS int64
		)
		if err := rows.Scan(
			&inv.ID,
			&inv.Tool,
			&inv.FilePath,
			&inv.ExtOut,
			&inv.Outcome,
			&errorKind,
			&inv.Message,
			&startedMS,
			&durationMS,
		); err != nil {
			return nil, err
		}
		inv.ErrorKind = model.ErrorKind(errorKind)
		inv.StartedAt = time.UnixMilli(startedMS)
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("sqlite db not initialized")
	}
	return s.db, nil
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
