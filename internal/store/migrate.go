package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

// discoverMigrations reads migrationFS and returns every NNN_*.sql file,
// ordered by its integer prefix. A malformed filename (no leading digits)
// is a programmer error in this binary, not a runtime condition, so it
// panics rather than threading an error through every caller.
func discoverMigrations() []migration {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		panic(fmt.Sprintf("store: embedded migrations unreadable: %v", err))
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, ok := leadingInt(entry.Name())
		if !ok {
			panic(fmt.Sprintf("store: migration filename %q has no integer prefix", entry.Name()))
		}
		body, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("store: reading migration %q: %v", entry.Name(), err))
		}
		migrations = append(migrations, migration{version: version, name: entry.Name(), sql: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations
}

func leadingInt(name string) (int, bool) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// expectedVersion is the highest migration version this binary knows how
// to apply; it is what Open compares the stored version against (I7).
func expectedVersion() int {
	migrations := discoverMigrations()
	max := 0
	for _, m := range migrations {
		if m.version > max {
			max = m.version
		}
	}
	return max
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// Migrate applies every migration whose version exceeds the store's
// recorded version, each DDL statement committed in the same transaction
// as the row that records its version, and returns the version the store
// ends up at. It opens and closes its own connection to path so it can be
// invoked independently of Open's version gate (the "migrate" CLI
// subcommand is the only caller allowed to run against a stale schema).
func Migrate(ctx context.Context, path string) (int, error) {
	db, err := openRaw(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	version, err := currentVersion(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrate: read schema version: %w", err)
	}

	for _, m := range discoverMigrations() {
		if m.version <= version {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return version, fmt.Errorf("migrate: begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("migrate: apply %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.version); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("migrate: record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return version, fmt.Errorf("migrate: commit %s: %w", m.name, err)
		}
		version = m.version
	}

	return version, nil
}
