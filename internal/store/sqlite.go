// Package store implements the persistent, transactional database
// backing the ticket coordination core: tickets, blocker edges, comments,
// the activity log, and the schema-version record.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection pool with the pragmas and schema-version
// gate the coordination core requires.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database at path, applies connection-scoped
// pragmas, and verifies the recorded schema version matches what this
// binary expects (I7). It does not apply migrations itself — that is
// Migrate's job, invoked explicitly via the "migrate" subcommand — so
// that a stale schema fails loudly instead of being silently upgraded by
// whichever caller happens to connect first.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openRaw(path)
	if err != nil {
		return nil, err
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open: %w", err)
	}

	expected := expectedVersion()
	if current != expected {
		db.Close()
		return nil, NewError(KindSchemaMismatch, "open", fmt.Sprintf(
			"store schema version %d does not match expected version %d; run the \"migrate\" subcommand",
			current, expected), nil)
	}

	logger.Debug("store opened", slog.String("path", path), slog.Int("schema_version", current))
	return &Store{db: db, path: path, logger: logger}, nil
}

// openRaw opens the SQLite connection and applies connection-scoped
// pragmas but performs no schema-version check; both Open and Migrate
// build on it.
func openRaw(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	// foreign_keys and busy_timeout are per-connection settings; passing
	// them in the DSN applies them to every connection the pool opens,
	// not only the one that runs the PRAGMA statements below.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// A single physical file under WAL only benefits from one writer at a
	// time; cap the pool so busy-timeout/IMMEDIATE semantics behave the
	// way a single-process sqlite3 CLI session would.
	db.SetMaxOpenConns(8)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	return db, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path this store was opened against.
func (s *Store) Path() string {
	return s.path
}

// WithImmediateTx runs fn inside a BEGIN IMMEDIATE transaction acquired on
// a dedicated connection borrowed from the pool. database/sql's *sql.Tx
// has no portable way to request SQLite's IMMEDIATE locking mode, so the
// transaction is driven with raw statements against a *sql.Conn instead;
// this is what makes claim_next's write-intent acquisition serialize
// concurrent callers (P1) rather than merely serializing the eventual
// write. fn must only use the *Tx passed to it, never s.db, or its
// statements will run on a different pooled connection outside the
// transaction.
func (s *Store) WithImmediateTx(ctx context.Context, op string, fn func(ctx context.Context, tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire connection: %w", op, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		if isBusyErr(err) {
			return NewError(KindStoreBusy, op, "write lock not acquired within busy timeout", err)
		}
		return fmt.Errorf("%s: begin immediate: %w", op, err)
	}

	if err := fn(ctx, &Tx{conn: conn}); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
