package ticket

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/madhatter5501/ticketcore/internal/store"
)

func newTestCoordinator(t *testing.T) *Coordinator {
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
	return New(s)
}

// Scenario 1: basic claim.
func TestScenarioBasicClaim(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	id, err := c.Create(ctx, "T1", CreateOptions{CreatedBy: "human"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	ticket, err := c.ClaimNext(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != store.StatusInProgress || ticket.AssignedTo != "a1" {
		t.Fatalf("ticket = %+v, want in_progress/a1", ticket)
	}

	if _, err := c.ClaimNext(ctx, "a2"); !store.Is(err, store.KindNotFound) {
		t.Fatalf("second claim: got %v, want NotFound", err)
	}
}

// Scenario 2: blocked claim, released once the blocker is done.
func TestScenarioBlockedClaim(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	pre, err := c.Create(ctx, "Pre", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	post, err := c.Create(ctx, "Post", CreateOptions{BlockedBy: &pre})
	if err != nil {
		t.Fatal(err)
	}

	claimed, err := c.ClaimNext(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if claimed.ID != pre {
		t.Fatalf("claimed %d, want %d (Post must stay blocked)", claimed.ID, pre)
	}

	if _, err := c.ClaimNext(ctx, "b"); !store.Is(err, store.KindNotFound) {
		t.Fatalf("claim while Post still blocked: got %v, want NotFound", err)
	}

	if err := c.MarkDone(ctx, pre); err != nil {
		t.Fatal(err)
	}

	claimed, err = c.ClaimNext(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if claimed.ID != post {
		t.Fatalf("claimed %d, want %d", claimed.ID, post)
	}
}

// Scenario 3: block auto-unclaim (I4), with unclaimed preceding blocker_added (P4).
func TestScenarioBlockAutoUnclaim(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	x, err := c.Create(ctx, "X", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	y, err := c.Create(ctx, "Y", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.ClaimNext(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	if err := c.Block(ctx, x, y); err != nil {
		t.Fatal(err)
	}

	ticket, err := c.store.GetTicket(ctx, x)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != store.StatusOpen || ticket.AssignedTo != "" {
		t.Fatalf("ticket X = %+v, want open/unassigned after block", ticket)
	}

	events, err := c.Activity(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	idx := map[string]int{}
	for i, ev := range events {
		if _, ok := idx[ev.Action]; !ok {
			idx[ev.Action] = i
		}
	}
	unclaimedIdx, hasUnclaimed := idx[store.ActionUnclaimed]
	blockerIdx, hasBlocker := idx[store.ActionBlockerAdded]
	if !hasUnclaimed || !hasBlocker {
		t.Fatalf("expected both unclaimed and blocker_added events, got %+v", events)
	}
	// events are newest-first, so "preceding" in time means a larger index.
	if unclaimedIdx <= blockerIdx {
		t.Errorf("expected unclaimed to precede blocker_added in the log")
	}
}

// Scenario 4: block_dependents_of copies inbound edges onto the new ticket.
func TestScenarioDependentsCopy(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, err := c.Create(ctx, "A", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Create(ctx, "B", CreateOptions{BlockedBy: &a})
	if err != nil {
		t.Fatal(err)
	}
	newC, err := c.Create(ctx, "C", CreateOptions{BlockDependentsOf: &a})
	if err != nil {
		t.Fatal(err)
	}

	blockedBy, err := c.store.BlockedBy(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]bool{a: true, newC: true}
	if len(blockedBy) != 2 {
		t.Fatalf("B's blockers = %v, want exactly {%d, %d}", blockedBy, a, newC)
	}
	for _, id := range blockedBy {
		if !want[id] {
			t.Errorf("unexpected blocker %d", id)
		}
	}
}

// P5: round-trip create/show.
func TestRoundTripCreateShow(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	id, err := c.Create(ctx, "Round trip", CreateOptions{
		Description: "desc", AssignedTo: "a1", CreatedBy: "tester", Type: store.TypeTask,
	})
	if err != nil {
		t.Fatal(err)
	}
	detail, err := c.Show(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Title != "Round trip" || detail.Description != "desc" ||
		detail.AssignedTo != "a1" || detail.CreatedBy != "tester" || detail.Type != store.TypeTask {
		t.Fatalf("detail = %+v, fields did not round-trip", detail)
	}
	if detail.Status != store.StatusOpen {
		t.Errorf("status = %v, want open", detail.Status)
	}
}

// P6: unblock idempotence.
func TestUnblockIdempotence(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	a, _ := c.Create(ctx, "A", CreateOptions{})
	b, err := c.Create(ctx, "B", CreateOptions{BlockedBy: &a})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Unblock(ctx, b, a); err != nil {
		t.Fatalf("first unblock: %v", err)
	}
	if err := c.Unblock(ctx, b, a); !store.Is(err, store.KindNotFound) {
		t.Fatalf("second unblock: got %v, want NotFound", err)
	}
}

// P8: direct update to done is Validation and makes no change.
func TestDirectDoneTransitionRejected(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	id, _ := c.Create(ctx, "T", CreateOptions{})
	status := store.StatusDone
	err := c.Update(ctx, id, UpdateOptions{Status: &status})
	if !store.Is(err, store.KindValidation) {
		t.Fatalf("got %v, want Validation", err)
	}

	ticket, err := c.store.GetTicket(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status == store.StatusDone {
		t.Error("ticket should not have transitioned to done")
	}
}

// Complete (I5) moves a ticket to ready, not done.
func TestCompleteSetsReadyNotDone(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	id, _ := c.Create(ctx, "T", CreateOptions{})
	if _, err := c.ClaimNext(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(ctx, id); err != nil {
		t.Fatal(err)
	}
	ticket, err := c.store.GetTicket(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != store.StatusReady {
		t.Fatalf("status = %v, want ready", ticket.Status)
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := c.Create(ctx, "   ", CreateOptions{}); !store.Is(err, store.KindValidation) {
		t.Fatalf("got %v, want Validation", err)
	}
}

func TestParseStatusCSV(t *testing.T) {
	statuses, err := ParseStatusCSV("open,in_progress")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 || statuses[0] != store.StatusOpen || statuses[1] != store.StatusInProgress {
		t.Fatalf("statuses = %v", statuses)
	}

	if _, err := ParseStatusCSV("bogus"); !store.Is(err, store.KindValidation) {
		t.Fatalf("got %v, want Validation for unknown status", err)
	}
}
