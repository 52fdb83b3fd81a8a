// Package ticket implements the Coordinator: the business layer over
// internal/store that enforces the ticket coordination core's invariants
// (I1-I7) and appends exactly one primary ActivityEvent per mutation.
package ticket

import (
	"context"
	"fmt"
	"strings"

	"github.com/madhatter5501/ticketcore/internal/store"
)

// Coordinator is a thin layer over a Store: every method either returns a
// success payload or a *store.Error distinguishing the failure kind.
type Coordinator struct {
	store *store.Store
}

// New returns a Coordinator backed by s.
func New(s *store.Store) *Coordinator {
	return &Coordinator{store: s}
}

// commentPreviewLen is the number of characters of a comment body carried
// into its "commented" ActivityEvent, matching original_source/ticket.py's
// body[:200] truncation.
const commentPreviewLen = 200

// CreateOptions carries the optional fields of Create. Pointers
// distinguish "not supplied" from the zero value.
type CreateOptions struct {
	Description       string
	ParentID          int64
	AssignedTo        string
	CreatedBy         string
	Type              store.Type
	BlockedBy         *int64
	BlockDependentsOf *int64
}

// Create validates title, resolves the ticket's type default, and inserts
// the ticket plus any requested blocker edges in one transaction, per
// spec §4.2. It returns the new ticket's id.
func (c *Coordinator) Create(ctx context.Context, title string, opts CreateOptions) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, store.NewError(store.KindValidation, "create", "ticket title cannot be empty", nil)
	}

	createdBy := opts.CreatedBy
	if createdBy == "" {
		createdBy = "human"
	}

	typ := opts.Type
	if typ == "" {
		typ = defaultType(opts.AssignedTo, opts.BlockedBy)
	} else if !typ.Valid() {
		return 0, store.NewError(store.KindValidation, "create", fmt.Sprintf("unknown ticket type %q", typ), nil)
	}

	var newID int64
	err := c.store.WithImmediateTx(ctx, "create", func(ctx context.Context, tx *store.Tx) error {
		if opts.BlockedBy != nil {
			if exists, err := tx.TicketExists(ctx, *opts.BlockedBy); err != nil {
				return err
			} else if !exists {
				return store.NewError(store.KindNotFound, "create", fmt.Sprintf("ticket %d not found", *opts.BlockedBy), nil)
			}
		}
		var dependents []int64
		if opts.BlockDependentsOf != nil {
			exists, err := tx.TicketExists(ctx, *opts.BlockDependentsOf)
			if err != nil {
				return err
			}
			if !exists {
				return store.NewError(store.KindNotFound, "create", fmt.Sprintf("ticket %d not found", *opts.BlockDependentsOf), nil)
			}
			dependents, err = tx.Blocks(ctx, *opts.BlockDependentsOf)
			if err != nil {
				return err
			}
		}

		t := &store.Ticket{
			Title:       title,
			Description: opts.Description,
			Status:      store.StatusOpen,
			AssignedTo:  opts.AssignedTo,
			ParentID:    opts.ParentID,
			CreatedBy:   createdBy,
			Type:        typ,
		}
		id, err := tx.InsertTicket(ctx, t)
		if err != nil {
			return err
		}
		newID = id

		// The new ticket's own edge skips blockTicket's I4 auto-unclaim, so
		// an assignee given at creation is kept.
		if opts.BlockedBy != nil {
			if err := tx.InsertBlocker(ctx, newID, *opts.BlockedBy); err != nil {
				return err
			}
			if _, err := tx.InsertActivity(ctx, &store.ActivityEvent{
				TicketID: newID,
				Action:   store.ActionBlockerAdded,
				Detail:   fmt.Sprintf("Blocked by #%d", *opts.BlockedBy),
			}); err != nil {
				return err
			}
		}
		for _, x := range dependents {
			if err := blockTicket(ctx, tx, x, newID, true); err != nil {
				return err
			}
		}

		_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: newID,
			AgentID:  createdBy,
			Action:   store.ActionCreated,
			Detail:   title,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return newID, nil
}

// defaultType implements spec §4.2's type-defaulting rule for Create when
// no explicit --type is given.
func defaultType(assignedTo string, blockedBy *int64) store.Type {
	if assignedTo == "human" {
		if blockedBy != nil {
			return store.TypeQuestion
		}
		return store.TypeProposal
	}
	return store.TypeTask
}

// blockTicket inserts the edge (ticketID, blockedBy) and, per I4, forces
// ticketID back to open/unassigned if it was currently claimed, emitting
// the synthetic "unclaimed" event before "blocker_added" commits. When
// swallowDuplicate is true (the block_dependents_of fan-out), an existing
// edge is treated as a no-op instead of a Conflict.
func blockTicket(ctx context.Context, tx *store.Tx, ticketID, blockedBy int64, swallowDuplicate bool) error {
	if err := tx.InsertBlocker(ctx, ticketID, blockedBy); err != nil {
		if swallowDuplicate && store.Is(err, store.KindConflict) {
			return nil
		}
		return err
	}

	t, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.AssignedTo != "" {
		prev := t.AssignedTo
		if err := tx.UpdateTicketFields(ctx, ticketID, map[string]any{
			"assigned_to": nil,
			"status":      string(store.StatusOpen),
		}); err != nil {
			return err
		}
		if _, err := tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: ticketID,
			AgentID:  prev,
			Action:   store.ActionUnclaimed,
			Detail:   fmt.Sprintf("Auto-released (blocked by #%d)", blockedBy),
		}); err != nil {
			return err
		}
	}

	_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
		TicketID: ticketID,
		Action:   store.ActionBlockerAdded,
		Detail:   fmt.Sprintf("Blocked by #%d", blockedBy),
	})
	return err
}

// UpdateOptions carries update's optional fields; nil means "leave
// unchanged".
type UpdateOptions struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Status      *store.Status
	Type        *store.Type
}

// Update applies the supplied fields to ticket id in one transaction and
// emits a single "updated" event summarizing the changes. A direct
// transition to done is rejected (I5 reserves that to MarkDone); per
// spec §8 P8 this is reported as Validation, not Conflict.
func (c *Coordinator) Update(ctx context.Context, id int64, opts UpdateOptions) error {
	if opts.Status != nil && *opts.Status == store.StatusDone {
		return store.NewError(store.KindValidation, "update",
			"direct transition to done is not allowed; use the finalization path", nil)
	}

	fields := map[string]any{}
	var changes []string

	if opts.Title != nil {
		fields["title"] = *opts.Title
		changes = append(changes, fmt.Sprintf("title -> %s", *opts.Title))
	}
	if opts.Description != nil {
		fields["description"] = *opts.Description
		changes = append(changes, "description updated")
	}
	if opts.AssignedTo != nil {
		fields["assigned_to"] = *opts.AssignedTo
		changes = append(changes, fmt.Sprintf("assigned_to -> %s", *opts.AssignedTo))
	}
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return store.NewError(store.KindValidation, "update", fmt.Sprintf("unknown status %q", *opts.Status), nil)
		}
		fields["status"] = string(*opts.Status)
		changes = append(changes, fmt.Sprintf("status -> %s", *opts.Status))
	}
	if opts.Type != nil {
		if !opts.Type.Valid() {
			return store.NewError(store.KindValidation, "update", fmt.Sprintf("unknown type %q", *opts.Type), nil)
		}
		fields["type"] = string(*opts.Type)
		changes = append(changes, fmt.Sprintf("type -> %s", *opts.Type))
	}

	if len(fields) == 0 {
		return store.NewError(store.KindValidation, "update", "nothing to update", nil)
	}

	return c.store.WithImmediateTx(ctx, "update", func(ctx context.Context, tx *store.Tx) error {
		if exists, err := tx.TicketExists(ctx, id); err != nil {
			return err
		} else if !exists {
			return store.NewError(store.KindNotFound, "update", fmt.Sprintf("ticket %d not found", id), nil)
		}
		if err := tx.UpdateTicketFields(ctx, id, fields); err != nil {
			return err
		}
		_, err := tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			Action:   store.ActionUpdated,
			Detail:   strings.Join(changes, "; "),
		})
		return err
	})
}

// ClaimNext atomically selects the least-id claimable ticket (I3) and
// assigns it to agent, serialized against concurrent claimers by the
// store's BEGIN IMMEDIATE transaction (P1). It returns a NotFound error
// if no ticket is currently claimable.
func (c *Coordinator) ClaimNext(ctx context.Context, agent string) (*store.Ticket, error) {
	var claimed *store.Ticket
	err := c.store.WithImmediateTx(ctx, "claim_next", func(ctx context.Context, tx *store.Tx) error {
		t, err := tx.FindClaimable(ctx)
		if err != nil {
			return err
		}
		if err := tx.UpdateTicketFields(ctx, t.ID, map[string]any{
			"assigned_to": agent,
			"status":      string(store.StatusInProgress),
		}); err != nil {
			return err
		}
		if _, err := tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: t.ID,
			AgentID:  agent,
			Action:   store.ActionClaimed,
			Detail:   fmt.Sprintf("Claimed by %s", agent),
		}); err != nil {
			return err
		}
		claimed, err = tx.GetTicket(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Block inserts the edge (id, by), requiring both tickets to exist and
// the edge to be new; a duplicate is reported as Conflict. If id is
// currently assigned, I4's auto-unclaim fires atomically with the edge.
func (c *Coordinator) Block(ctx context.Context, id, by int64) error {
	return c.store.WithImmediateTx(ctx, "block", func(ctx context.Context, tx *store.Tx) error {
		for _, tid := range [2]int64{id, by} {
			exists, err := tx.TicketExists(ctx, tid)
			if err != nil {
				return err
			}
			if !exists {
				return store.NewError(store.KindNotFound, "block", fmt.Sprintf("ticket %d not found", tid), nil)
			}
		}
		return blockTicket(ctx, tx, id, by, false)
	})
}

// Unblock removes the edge (id, by). Removing a non-existent edge is
// NotFound, matching ticket.py's "no such blocker relationship" result.
func (c *Coordinator) Unblock(ctx context.Context, id, by int64) error {
	return c.store.WithImmediateTx(ctx, "unblock", func(ctx context.Context, tx *store.Tx) error {
		deleted, err := tx.DeleteBlocker(ctx, id, by)
		if err != nil {
			return err
		}
		if !deleted {
			return store.NewError(store.KindNotFound, "unblock", "no such blocker relationship", nil)
		}
		_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			Action:   store.ActionBlockerRemoved,
			Detail:   fmt.Sprintf("Unblocked from #%d", by),
		})
		return err
	})
}

// Complete transitions id to ready (I5); assigned_to is left untouched so
// the finalization path can still attribute the eventual done transition.
func (c *Coordinator) Complete(ctx context.Context, id int64) error {
	return c.store.WithImmediateTx(ctx, "complete", func(ctx context.Context, tx *store.Tx) error {
		t, err := tx.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateTicketFields(ctx, id, map[string]any{"status": string(store.StatusReady)}); err != nil {
			return err
		}
		_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			AgentID:  t.AssignedTo,
			Action:   store.ActionCompleted,
			Detail:   fmt.Sprintf("Ticket #%d marked ready for finalization", id),
		})
		return err
	})
}

// MarkDone transitions id to done whatever its current status; it does
// not check that the ticket is ready. It is invoked only by the agent
// runtime's post-push finalization step (I5); the CLI subcommand exposing
// it is hidden from help output (spec §4.2).
func (c *Coordinator) MarkDone(ctx context.Context, id int64) error {
	return c.store.WithImmediateTx(ctx, "mark_done", func(ctx context.Context, tx *store.Tx) error {
		if exists, err := tx.TicketExists(ctx, id); err != nil {
			return err
		} else if !exists {
			return store.NewError(store.KindNotFound, "mark_done", fmt.Sprintf("ticket %d not found", id), nil)
		}
		if err := tx.UpdateTicketFields(ctx, id, map[string]any{"status": string(store.StatusDone)}); err != nil {
			return err
		}
		_, err := tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			Action:   store.ActionDone,
			Detail:   fmt.Sprintf("Ticket #%d marked done", id),
		})
		return err
	})
}

// Unclaim clears id's assignment and returns it to open, attributing the
// synthetic "unclaimed" event to the previous assignee.
func (c *Coordinator) Unclaim(ctx context.Context, id int64) error {
	return c.store.WithImmediateTx(ctx, "unclaim", func(ctx context.Context, tx *store.Tx) error {
		t, err := tx.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		prev := t.AssignedTo
		if err := tx.UpdateTicketFields(ctx, id, map[string]any{
			"assigned_to": nil,
			"status":      string(store.StatusOpen),
		}); err != nil {
			return err
		}
		_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			AgentID:  prev,
			Action:   store.ActionUnclaimed,
			Detail:   fmt.Sprintf("Released by %s", prev),
		})
		return err
	})
}

// Comment appends a Comment to id and emits "commented" with a preview of
// the body truncated to commentPreviewLen characters.
func (c *Coordinator) Comment(ctx context.Context, id int64, author, body string) (int64, error) {
	if author == "" {
		author = "human"
	}
	var commentID int64
	err := c.store.WithImmediateTx(ctx, "comment", func(ctx context.Context, tx *store.Tx) error {
		if exists, err := tx.TicketExists(ctx, id); err != nil {
			return err
		} else if !exists {
			return store.NewError(store.KindNotFound, "comment", fmt.Sprintf("ticket %d not found", id), nil)
		}
		cid, err := tx.InsertComment(ctx, &store.Comment{TicketID: id, Author: author, Body: body})
		if err != nil {
			return err
		}
		commentID = cid
		_, err = tx.InsertActivity(ctx, &store.ActivityEvent{
			TicketID: id,
			AgentID:  author,
			Action:   store.ActionCommented,
			Detail:   truncate(body, commentPreviewLen),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return commentID, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// List returns tickets ordered by id, excluding done when statuses is
// empty, optionally filtered to assignedTo.
func (c *Coordinator) List(ctx context.Context, statuses []store.Status, assignedTo string) ([]store.Ticket, error) {
	return c.store.ListTickets(ctx, statuses, assignedTo)
}

// Count returns the number of tickets matching the same defaulting as List.
func (c *Coordinator) Count(ctx context.Context, statuses []store.Status) (int, error) {
	return c.store.CountTickets(ctx, statuses)
}

// Detail is the full ticket view returned by Show: the ticket plus its
// comments, outbound blockers ("blocked by"), inbound blockers
// ("blocks"), and children.
type Detail struct {
	store.Ticket
	Comments  []store.Comment `json:"comments"`
	BlockedBy []int64         `json:"blocked_by"`
	Blocks    []int64         `json:"blocks"`
	Children  []store.Ticket  `json:"children"`
}

// Show returns id's full detail view, or NotFound if it does not exist.
func (c *Coordinator) Show(ctx context.Context, id int64) (*Detail, error) {
	t, err := c.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := c.store.CommentsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	blockedBy, err := c.store.BlockedBy(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks, err := c.store.Blocks(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := c.store.ChildrenOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{
		Ticket:    *t,
		Comments:  comments,
		BlockedBy: blockedBy,
		Blocks:    blocks,
		Children:  children,
	}, nil
}

// Activity returns the most recent limit ActivityEvents, newest first.
func (c *Coordinator) Activity(ctx context.Context, limit int) ([]store.ActivityEvent, error) {
	return c.store.RecentActivity(ctx, limit)
}

// ParseStatusCSV splits a comma-separated status filter into validated
// Status values, matching list/count/CLI's --status handling.
func ParseStatusCSV(csv string) ([]store.Status, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]store.Status, 0, len(parts))
	for _, p := range parts {
		s := store.Status(strings.TrimSpace(p))
		if !s.Valid() {
			return nil, store.NewError(store.KindValidation, "parse_status", fmt.Sprintf("unknown status %q", s), nil)
		}
		out = append(out, s)
	}
	return out, nil
}
