// Package store is the Event Store (component B): the exclusive owner of
// on-disk state for offers, offer events, and the indexing watermark.
// Ground truth: original db_operations/{init_db,add_events_to_db}.py and
// internal/{_db_operations,_event_handlers}.py, re-expressed over
// database/sql + modernc.org/sqlite the way the teacher's geth-17-indexer
// module persists decoded Transfer events.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"
)

// IntegrityError wraps a store consistency violation that is not a benign
// duplicate-key ignore. The batch that produced it is aborted; per spec.md
// §7 the outer supervisor restarts after backoff.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *IntegrityError) Unwrap() error { return e.Err }

// Store is the Event Store. A single *Store is safe for one writer (the
// Indexing Loop) and any number of concurrent readers (the Query Surface),
// per spec.md §5's single-writer assumption.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if absent) the SQLite database at path, applies the
// schema, and enables WAL journaling. The handle is limited to one open
// connection, so reads and writes through it are serialized.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Conn exposes the underlying *sql.DB for the Query Surface's read-only
// access. The Event Store remains the only writer; database/sql's own
// connection pool plus SQLite's WAL mode (set at Open time) make this safe.
func (s *Store) Conn() *sql.DB { return s.db }

// LastIndexedBlock returns the durable high-water mark, i.e. the most
// recent watermark entry's to_block, or (0, false) on a fresh database.
func (s *Store) LastIndexedBlock(ctx context.Context) (uint64, bool, error) {
	var toBlock uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT to_block FROM indexing_watermark ORDER BY indexing_id DESC LIMIT 1`,
	).Scan(&toBlock)
	switch {
	case err == sql.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, &IntegrityError{Op: "last indexed block", Err: err}
	default:
		return toBlock, true, nil
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
