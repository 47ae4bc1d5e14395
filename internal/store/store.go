// Package store handles SQLite persistence: report templates, raw sensor
// readings, the materialized merged dataset, and stored report artifacts
// with their audit trail.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the report pipeline.
type Store struct {
	db *sql.DB
}

// Options tunes the SQLite connection. Zero values fall back to a 5s busy
// timeout and a single connection.
type Options struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
	Migrate      bool
}

// Open opens or creates the SQLite database. Migrations run when
// opts.Migrate is set; deployments that migrate out of band leave it off.
func Open(opts Options) (*Store, error) {
	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", opts.Path, busy.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The driver is single-writer; a small pool plus busy_timeout keeps
	// concurrent handlers from tripping SQLITE_BUSY.
	conns := opts.MaxOpenConns
	if conns <= 0 {
		conns = 1
	}
	db.SetMaxOpenConns(conns)

	store := &Store{db: db}
	if opts.Migrate {
		if err := store.migrate(); err != nil {
			if cerr := db.Close(); cerr != nil {
				_ = cerr
			}
			return nil, err
		}
	}
	return store, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS report_templates (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			report_group TEXT NOT NULL,
			room_id TEXT NOT NULL,
			room_name TEXT NOT NULL,
			additional_info TEXT NOT NULL DEFAULT '',
			parameters TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS readings (
			series TEXT NOT NULL,
			ts INTEGER NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (series, ts)
		);`,
		`CREATE TABLE IF NOT EXISTS report_data (
			bucket INTEGER NOT NULL,
			param TEXT NOT NULL,
			value REAL,
			PRIMARY KEY (bucket, param)
		);`,
		`CREATE TABLE IF NOT EXISTS stored_reports (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			from_date INTEGER NOT NULL,
			to_date INTEGER NOT NULL,
			pdf_data BLOB NOT NULL,
			generated_by TEXT NOT NULL,
			generated_at INTEGER NOT NULL,
			is_approved INTEGER NOT NULL DEFAULT 0,
			approved_by TEXT,
			approved_at INTEGER,
			assigned_reviewer TEXT,
			reviewed_by TEXT,
			reviewed_at INTEGER,
			approver_required INTEGER NOT NULL DEFAULT 0,
			assigned_approver TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stored_reports_generated_at ON stored_reports(generated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
