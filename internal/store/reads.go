package store

import "context"

// The methods below run directly against the connection pool (s.db, which
// satisfies queryer the same way *sql.Conn and *sql.Tx do) rather than
// inside WithImmediateTx: reads never need write-intent locking, and WAL
// lets them proceed concurrently with an in-flight writer.

// GetTicket returns the ticket with the given id, or a NotFound error.
func (s *Store) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	return getTicket(ctx, s.db, id)
}

// TicketExists reports whether a ticket with the given id exists.
func (s *Store) TicketExists(ctx context.Context, id int64) (bool, error) {
	return ticketExists(ctx, s.db, id)
}

// ListTickets returns tickets matching the given status set (all but
// StatusDone when statuses is empty) and, if assignedTo is non-empty, the
// given assignee, ordered by id ascending.
func (s *Store) ListTickets(ctx context.Context, statuses []Status, assignedTo string) ([]Ticket, error) {
	return listTickets(ctx, s.db, statuses, assignedTo)
}

// CountTickets returns the count of tickets matching the given status set,
// with the same defaulting as ListTickets.
func (s *Store) CountTickets(ctx context.Context, statuses []Status) (int, error) {
	return countTickets(ctx, s.db, statuses)
}

// ChildrenOf returns tickets whose parent_id is parentID, ordered by id.
func (s *Store) ChildrenOf(ctx context.Context, parentID int64) ([]Ticket, error) {
	return childrenOf(ctx, s.db, parentID)
}

// BlockedBy returns the ids of tickets that must be done before ticketID
// is claimable.
func (s *Store) BlockedBy(ctx context.Context, ticketID int64) ([]int64, error) {
	return blockedBy(ctx, s.db, ticketID)
}

// Blocks returns the ids of tickets that ticketID itself blocks.
func (s *Store) Blocks(ctx context.Context, ticketID int64) ([]int64, error) {
	return blocks(ctx, s.db, ticketID)
}

// CommentsOf returns the comments on ticketID, ordered by id ascending.
func (s *Store) CommentsOf(ctx context.Context, ticketID int64) ([]Comment, error) {
	return commentsOf(ctx, s.db, ticketID)
}

// RecentActivity returns the most recent limit ActivityEvents, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	return recentActivity(ctx, s.db, limit)
}
