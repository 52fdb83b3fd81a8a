package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrateThenOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()

	version, err := Migrate(ctx, dbPath)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if version != expectedVersion() {
		t.Fatalf("Migrate returned version %d, want %d", version, expectedVersion())
	}

	s, err := Open(ctx, dbPath, nil)
	if err != nil {
		t.Fatalf("Open after Migrate: %v", err)
	}
	defer s.Close()

	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestOpenRejectsUnmigratedStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()

	// openRaw alone creates the file but applies no migrations, so the
	// schema_migrations table is absent/empty and Open must refuse it
	// rather than silently upgrading (I7).
	db, err := openRaw(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = Open(ctx, dbPath, nil)
	if err == nil {
		t.Fatal("expected Open to reject an unmigrated store")
	}
	if KindOf(err) != KindSchemaMismatch {
		t.Errorf("KindOf(err) = %v, want KindSchemaMismatch", KindOf(err))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()

	if _, err := Migrate(ctx, dbPath); err != nil {
		t.Fatal(err)
	}
	version, err := Migrate(ctx, dbPath)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if version != expectedVersion() {
		t.Errorf("second Migrate returned %d, want %d", version, expectedVersion())
	}
}

func TestWithImmediateTxCommitsAndRollsBack(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()
	if _, err := Migrate(ctx, dbPath); err != nil {
		t.Fatal(err)
	}
	s, err := Open(ctx, dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var id int64
	err = s.WithImmediateTx(ctx, "test_commit", func(ctx context.Context, tx *Tx) error {
		var insertErr error
		id, insertErr = tx.InsertTicket(ctx, &Ticket{Title: "t1", Status: StatusOpen, CreatedBy: "human", Type: TypeTask})
		return insertErr
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}
	if _, err := s.GetTicket(ctx, id); err != nil {
		t.Fatalf("ticket not visible after commit: %v", err)
	}

	sentinel := errForceRollback{}
	err = s.WithImmediateTx(ctx, "test_rollback", func(ctx context.Context, tx *Tx) error {
		if _, err := tx.InsertTicket(ctx, &Ticket{Title: "t2", Status: StatusOpen, CreatedBy: "human", Type: TypeTask}); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	tickets, err := s.ListTickets(ctx, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, tk := range tickets {
		if tk.Title == "t2" {
			t.Error("rolled-back insert should not be visible")
		}
	}
}

type errForceRollback struct{}

func (errForceRollback) Error() string { return "forced rollback for test" }
