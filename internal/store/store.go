// Package store provides SQLite-backed persistence for books, pages and
// principals. Page status transitions are expressed as single conditional
// UPDATE statements so the precondition check and the mutation are one
// indivisible storage operation; callers never read-then-write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound is returned when a book, page or principal does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on unique constraint violations
	// (duplicate slug, duplicate page number within a book).
	ErrAlreadyExists = errors.New("already exists")
)

// Schema holds the full database schema. Applied on Open.
const Schema = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	total_pages INTEGER NOT NULL DEFAULT 0,
	completed_pages INTEGER NOT NULL DEFAULT 0,
	hidden INTEGER NOT NULL DEFAULT 0,
	editing_info TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	book_id TEXT NOT NULL REFERENCES books(id),
	page_number INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'available',
	claimed_by TEXT NOT NULL DEFAULT '',
	claimed_at INTEGER,
	completed_at INTEGER,
	text TEXT NOT NULL DEFAULT '',
	UNIQUE (book_id, page_number)
);
CREATE INDEX IF NOT EXISTS idx_pages_book ON pages(book_id);
CREATE INDEX IF NOT EXISTS idx_pages_claimed_by ON pages(claimed_by) WHERE claimed_by != '';

CREATE TABLE IF NOT EXISTS principals (
	id TEXT PRIMARY KEY,
	points INTEGER NOT NULL DEFAULT 0
);
`

// Store persists all scriptorium state in a single SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. The returned store is safe for concurrent use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	// modernc.org/sqlite applies pragmas via _pragma=name(value) query
	// parameters, once per pooled connection. The busy timeout matters
	// most: without it a contended conditional UPDATE fails with
	// SQLITE_BUSY instead of waiting for the writer and reporting the
	// precondition outcome.
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullMillis converts an optional time to a nullable column value.
func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}
