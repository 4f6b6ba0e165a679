package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the persistent specialization seen-set: a table of digests
// already compiled in some prior process, so a fresh process started
// against the same file can tell a warm specialization from a cold one.
// It records and reports only; no specialization or optimization work
// is skipped on a hit. Disabled returns a Store with no database behind
// it, a valid, always-empty, always-miss implementation; cmd/arrayjit
// uses one when its -cache path is empty.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS specializations (
	digest     TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
`

// Open opens (creating if needed) a sqlite-backed Store at path. path may
// be ":memory:" for a process-local, non-persistent store useful in
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// Record is called outside the registry's lock (after Specialize
	// returns), so writes can arrive from several goroutines; pinning
	// the pool to one connection serializes them and avoids sqlite's
	// concurrent writer contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Disabled returns a Store that always reports misses and discards every
// Record call — the implementation behind an empty CachePath.
func Disabled() *Store { return &Store{db: nil} }

// Close releases the underlying database handle. A Disabled Store's
// Close is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seen reports whether digest has already been recorded.
func (s *Store) Seen(ctx context.Context, digest string) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM specializations WHERE digest = ?`, digest)
	var ignored int
	switch err := row.Scan(&ignored); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("cache: query %s: %w", digest, err)
	}
}

// Record marks digest as seen. It is idempotent: recording the same
// digest twice is not an error.
func (s *Store) Record(ctx context.Context, digest string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO specializations (digest, created_at) VALUES (?, ?)
		 ON CONFLICT(digest) DO NOTHING`,
		digest, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: record %s: %w", digest, err)
	}
	return nil
}

// Count returns the number of digests currently recorded, for
// diagnostics (cmd/arrayjit's cache-stats command surfaces this).
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM specializations`)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}
