package recovery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/madhatter5501/ticketcore/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tickets.db")
	ctx := context.Background()
	if _, err := store.Migrate(ctx, dbPath); err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(ctx, dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTicket(t *testing.T, s *store.Store, title string, status store.Status, assignedTo string) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := s.WithImmediateTx(ctx, "seed", func(ctx context.Context, tx *store.Tx) error {
		ticketID, err := tx.InsertTicket(ctx, &store.Ticket{
			Title: title, Status: store.StatusOpen, CreatedBy: "human", Type: store.TypeTask,
		})
		if err != nil {
			return err
		}
		id = ticketID
		fields := map[string]any{"status": string(status)}
		if assignedTo != "" {
			fields["assigned_to"] = assignedTo
		}
		return tx.UpdateTicketFields(ctx, ticketID, fields)
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// Scenario 5: in_progress/a1 is released, in_progress/human and done/a1 untouched.
func TestRecoverOrphansScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := insertTicket(t, s, "one", store.StatusInProgress, "a1")
	t2 := insertTicket(t, s, "two", store.StatusInProgress, "human")
	t3 := insertTicket(t, s, "three", store.StatusDone, "a1")

	result, err := RecoverOrphans(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Released) != 1 || result.Released[0] != t1 {
		t.Fatalf("Released = %v, want [%d]", result.Released, t1)
	}

	ticket1, err := s.GetTicket(ctx, t1)
	if err != nil {
		t.Fatal(err)
	}
	if ticket1.Status != store.StatusOpen || ticket1.AssignedTo != "" {
		t.Fatalf("ticket 1 = %+v, want open/unassigned", ticket1)
	}

	ticket2, err := s.GetTicket(ctx, t2)
	if err != nil {
		t.Fatal(err)
	}
	if ticket2.Status != store.StatusInProgress || ticket2.AssignedTo != "human" {
		t.Fatalf("ticket 2 = %+v, should be untouched", ticket2)
	}

	ticket3, err := s.GetTicket(ctx, t3)
	if err != nil {
		t.Fatal(err)
	}
	if ticket3.Status != store.StatusDone || ticket3.AssignedTo != "a1" {
		t.Fatalf("ticket 3 = %+v, should be untouched", ticket3)
	}

	events, err := s.RecentActivity(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Action != store.ActionUnclaimed || events[0].TicketID != t1 {
		t.Fatalf("expected a single unclaimed event for ticket %d, got %+v", t1, events)
	}
}

// P7: a second invocation against an unchanged store is a no-op.
func TestRecoverOrphansIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTicket(t, s, "one", store.StatusInProgress, "a1")

	first, err := RecoverOrphans(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Released) != 1 {
		t.Fatalf("first run released %v, want 1 ticket", first.Released)
	}

	second, err := RecoverOrphans(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Released) != 0 {
		t.Fatalf("second run released %v, want none", second.Released)
	}
}
