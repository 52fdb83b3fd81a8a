package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// queryer is satisfied by *sql.DB, *sql.Conn, and *sql.Tx, letting the
// scan/insert helpers below run identically whether called from a
// read-only Store method (against the pool) or from inside a Tx (against
// a single reserved connection).
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a unit of work acquired via Store.WithImmediateTx. Its methods
// are the only way Coordinator operations touch the database while
// holding the write lock, so that every mutating operation's primary
// ActivityEvent commits atomically with the state change it describes.
type Tx struct {
	conn *sql.Conn
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanTicket(row interface{ Scan(...any) error }) (*Ticket, error) {
	var (
		t          Ticket
		desc       sql.NullString
		assignedTo sql.NullString
		parentID   sql.NullInt64
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&t.ID, &t.Title, &desc, &t.Status, &assignedTo, &parentID,
		&t.CreatedBy, &t.Type, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.AssignedTo = assignedTo.String
	t.ParentID = parentID.Int64
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

const ticketColumns = `id, title, description, status, assigned_to, parent_id, created_by, type, created_at, updated_at`

func insertTicket(ctx context.Context, q queryer, t *Ticket) (int64, error) {
	now := nowString()
	t.CreatedAt = parseTime(now)
	t.UpdatedAt = t.CreatedAt

	var parentID any
	if t.ParentID != 0 {
		parentID = t.ParentID
	}
	var assignedTo any
	if t.AssignedTo != "" {
		assignedTo = t.AssignedTo
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO tickets (title, description, status, assigned_to, parent_id, created_by, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Title, t.Description, t.Status, assignedTo, parentID, t.CreatedBy, t.Type, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	t.ID = id
	return id, nil
}

func getTicket(ctx context.Context, q queryer, id int64) (*Ticket, error) {
	row := q.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, NewError(KindNotFound, "get_ticket", fmt.Sprintf("ticket %d not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return t, nil
}

func ticketExists(ctx context.Context, q queryer, id int64) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM tickets WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ticket %d exists: %w", id, err)
	}
	return true, nil
}

// updateTicketFields applies a dynamic SET clause; keys must be column
// names already validated by the caller (the Coordinator), never raw user
// input, since they are interpolated into the query text.
func updateTicketFields(ctx context.Context, q queryer, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		cols = append(cols, col+" = ?")
		args = append(args, val)
	}
	cols = append(cols, "updated_at = ?")
	args = append(args, nowString())
	args = append(args, id)

	_, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE tickets SET %s WHERE id = ?", strings.Join(cols, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", id, err)
	}
	return nil
}

func listTickets(ctx context.Context, q queryer, statuses []Status, assignedTo string) ([]Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE 1=1"
	var args []any

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " AND status IN (" + strings.Join(placeholders, ",") + ")"
	} else {
		query += " AND status != ?"
		args = append(args, StatusDone)
	}

	if assignedTo != "" {
		query += " AND assigned_to = ?"
		args = append(args, assignedTo)
	}

	query += " ORDER BY id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("list tickets: scan: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func countTickets(ctx context.Context, q queryer, statuses []Status) (int, error) {
	query := "SELECT COUNT(*) FROM tickets WHERE 1=1"
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " AND status IN (" + strings.Join(placeholders, ",") + ")"
	} else {
		query += " AND status != ?"
		args = append(args, StatusDone)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func childrenOf(ctx context.Context, q queryer, parentID int64) ([]Ticket, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE parent_id = ? ORDER BY id ASC", parentID)
	if err != nil {
		return nil, fmt.Errorf("children of %d: %w", parentID, err)
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func insertBlocker(ctx context.Context, q queryer, ticketID, blockedBy int64) error {
	_, err := q.ExecContext(ctx, "INSERT INTO blockers (ticket_id, blocked_by) VALUES (?, ?)", ticketID, blockedBy)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
			return NewError(KindConflict, "block", fmt.Sprintf("ticket %d is already blocked by %d", ticketID, blockedBy), err)
		}
		return fmt.Errorf("insert blocker (%d, %d): %w", ticketID, blockedBy, err)
	}
	return nil
}

func deleteBlocker(ctx context.Context, q queryer, ticketID, blockedBy int64) (bool, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM blockers WHERE ticket_id = ? AND blocked_by = ?", ticketID, blockedBy)
	if err != nil {
		return false, fmt.Errorf("delete blocker (%d, %d): %w", ticketID, blockedBy, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete blocker (%d, %d): %w", ticketID, blockedBy, err)
	}
	return n > 0, nil
}

// blockedBy returns the ids of tickets that must be done before ticketID
// is claimable (outbound edges: ticketID blocked_by X).
func blockedBy(ctx context.Context, q queryer, ticketID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT blocked_by FROM blockers WHERE ticket_id = ? ORDER BY blocked_by ASC", ticketID)
	if err != nil {
		return nil, fmt.Errorf("blocked_by %d: %w", ticketID, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// blocks returns the ids of tickets that ticketID itself blocks (inbound
// edges: X blocked_by ticketID).
func blocks(ctx context.Context, q queryer, ticketID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT ticket_id FROM blockers WHERE blocked_by = ? ORDER BY ticket_id ASC", ticketID)
	if err != nil {
		return nil, fmt.Errorf("blocks %d: %w", ticketID, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// findClaimable returns the least-id ticket satisfying I3: open,
// unassigned, with no blocker that is not yet done. It is the exact query
// claim_next runs inside its BEGIN IMMEDIATE transaction.
func findClaimable(ctx context.Context, q queryer) (*Ticket, error) {
	row := q.QueryRowContext(ctx, "SELECT "+ticketColumns+` FROM tickets
		WHERE status = ? AND assigned_to IS NULL
		AND id NOT IN (
			SELECT b.ticket_id FROM blockers b
			JOIN tickets bt ON bt.id = b.blocked_by
			WHERE bt.status != ?
		)
		ORDER BY id ASC LIMIT 1`, StatusOpen, StatusDone)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, NewError(KindNotFound, "claim_next", "no claimable ticket", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find claimable: %w", err)
	}
	return t, nil
}

func insertComment(ctx context.Context, q queryer, c *Comment) (int64, error) {
	now := nowString()
	c.CreatedAt = parseTime(now)
	res, err := q.ExecContext(ctx, "INSERT INTO comments (ticket_id, author, body, created_at) VALUES (?, ?, ?, ?)",
		c.TicketID, c.Author, c.Body, now)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	c.ID = id
	return id, nil
}

func commentsOf(ctx context.Context, q queryer, ticketID int64) ([]Comment, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, ticket_id, author, body, created_at FROM comments WHERE ticket_id = ? ORDER BY id ASC", ticketID)
	if err != nil {
		return nil, fmt.Errorf("comments of %d: %w", ticketID, err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.Body, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertActivity(ctx context.Context, q queryer, ev *ActivityEvent) (int64, error) {
	now := nowString()
	ev.CreatedAt = parseTime(now)

	var ticketID any
	if ev.TicketID != 0 {
		ticketID = ev.TicketID
	}
	var agentID any
	if ev.AgentID != "" {
		agentID = ev.AgentID
	}
	var detail any
	if ev.Detail != "" {
		detail = ev.Detail
	}

	res, err := q.ExecContext(ctx, "INSERT INTO activity_log (ticket_id, agent_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		ticketID, agentID, ev.Action, detail, now)
	if err != nil {
		return 0, fmt.Errorf("insert activity event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert activity event: %w", err)
	}
	ev.ID = id
	return id, nil
}

func recentActivity(ctx context.Context, q queryer, limit int) ([]ActivityEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, ticket_id, agent_id, action, detail, created_at
		FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEvent
	for rows.Next() {
		var (
			ev        ActivityEvent
			ticketID  sql.NullInt64
			agentID   sql.NullString
			detail    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ticketID, &agentID, &ev.Action, &detail, &createdAt); err != nil {
			return nil, err
		}
		ev.TicketID = ticketID.Int64
		ev.AgentID = agentID.String
		ev.Detail = detail.String
		ev.CreatedAt = parseTime(createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Tx method wrappers ---

func (tx *Tx) InsertTicket(ctx context.Context, t *Ticket) (int64, error) {
	return insertTicket(ctx, tx.conn, t)
}
func (tx *Tx) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	return getTicket(ctx, tx.conn, id)
}
func (tx *Tx) TicketExists(ctx context.Context, id int64) (bool, error) {
	return ticketExists(ctx, tx.conn, id)
}
func (tx *Tx) UpdateTicketFields(ctx context.Context, id int64, fields map[string]any) error {
	return updateTicketFields(ctx, tx.conn, id, fields)
}
func (tx *Tx) ChildrenOf(ctx context.Context, parentID int64) ([]Ticket, error) {
	return childrenOf(ctx, tx.conn, parentID)
}
func (tx *Tx) InsertBlocker(ctx context.Context, ticketID, blockedBy int64) error {
	return insertBlocker(ctx, tx.conn, ticketID, blockedBy)
}
func (tx *Tx) DeleteBlocker(ctx context.Context, ticketID, blockedBy int64) (bool, error) {
	return deleteBlocker(ctx, tx.conn, ticketID, blockedBy)
}
func (tx *Tx) BlockedBy(ctx context.Context, ticketID int64) ([]int64, error) {
	return blockedBy(ctx, tx.conn, ticketID)
}
func (tx *Tx) Blocks(ctx context.Context, ticketID int64) ([]int64, error) {
	return blocks(ctx, tx.conn, ticketID)
}
func (tx *Tx) FindClaimable(ctx context.Context) (*Ticket, error) {
	return findClaimable(ctx, tx.conn)
}
func (tx *Tx) InsertComment(ctx context.Context, c *Comment) (int64, error) {
	return insertComment(ctx, tx.conn, c)
}
func (tx *Tx) CommentsOf(ctx context.Context, ticketID int64) ([]Comment, error) {
	return commentsOf(ctx, tx.conn, ticketID)
}
func (tx *Tx) InsertActivity(ctx context.Context, ev *ActivityEvent) (int64, error) {
	return insertActivity(ctx, tx.conn, ev)
}
func (tx *Tx) ListTickets(ctx context.Context, statuses []Status, assignedTo string) ([]Ticket, error) {
	return listTickets(ctx, tx.conn, statuses, assignedTo)
}
