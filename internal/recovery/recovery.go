// Package recovery implements the orphan-recovery hook invoked once at
// fleet start, before any agent is launched (spec §4.5).
package recovery

import (
	"context"
	"fmt"

	"github.com/madhatter5501/ticketcore/internal/store"
)

// Result summarizes what RecoverOrphans did, for the caller to log.
type Result struct {
	Released []int64
}

// RecoverOrphans selects every ticket whose assigned_to is set, not
// "human", and whose status is not done, and releases it back to
// open/unassigned, emitting a synthetic "unclaimed" event on each. Every
// release happens in a single transaction. A second invocation against an
// unchanged store is a no-op (P7): no agent can legitimately hold a
// ticket at fleet start, so any such holder is presumed dead.
func RecoverOrphans(ctx context.Context, s *store.Store) (Result, error) {
	var result Result
	err := s.WithImmediateTx(ctx, "recover_orphans", func(ctx context.Context, tx *store.Tx) error {
		// ListTickets with no status filter already excludes "done" tickets
		// (spec §4.2's list default), which is exactly the set this hook
		// needs to scan.
		candidates, err := tx.ListTickets(ctx, nil, "")
		if err != nil {
			return err
		}
		for _, t := range candidates {
			if t.AssignedTo == "" || t.AssignedTo == "human" {
				continue
			}
			prev := t.AssignedTo
			if err := tx.UpdateTicketFields(ctx, t.ID, map[string]any{
				"assigned_to": nil,
				"status":      string(store.StatusOpen),
			}); err != nil {
				return err
			}
			if _, err := tx.InsertActivity(ctx, &store.ActivityEvent{
				TicketID: t.ID,
				AgentID:  prev,
				Action:   store.ActionUnclaimed,
				Detail:   "Auto-released on swarm start",
			}); err != nil {
				return err
			}
			result.Released = append(result.Released, t.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("recover orphans: %w", err)
	}
	return result, nil
}
