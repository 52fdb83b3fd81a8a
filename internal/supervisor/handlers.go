package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a Coordinator/Store error to the HTTP status
// table in spec §6/§7: NotFound -> 404, Validation/Conflict -> 400,
// anything else (store busy, schema mismatch, unavailable) -> 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch store.KindOf(err) {
	case store.KindNotFound:
		writeErrorJSON(w, http.StatusNotFound, err.Error())
	case store.KindValidation, store.KindConflict:
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	default:
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	return parseID(r.PathValue(name))
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	statuses, err := ticket.ParseStatusCSV(r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Unlike the CLI's "list" (which excludes done when no --status is
	// given, per cmd_list), the HTTP listing endpoint returns every
	// status including done when no filter is supplied, matching
	// api_list_tickets' unfiltered "SELECT * FROM tickets". Passing the
	// full status set explicitly bypasses Coordinator.List's CLI-oriented
	// done-exclusion default.
	if len(statuses) == 0 {
		statuses = []store.Status{store.StatusOpen, store.StatusInProgress, store.StatusReady, store.StatusDone}
	}
	assignedTo := r.URL.Query().Get("assigned_to")

	tickets, err := coord.List(r.Context(), statuses, assignedTo)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows := make([]ticketListRow, 0, len(tickets))
	for _, t := range tickets {
		row, err := s.decorateTicketRow(r.Context(), coord, t)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": rows})
}

// ticketListRow matches api_list_tickets' per-row projection: the
// ticket plus comment_count, blocked_by (edges with the blocker's
// status), and is_blocked (true if any blocker is not done).
type ticketListRow struct {
	store.Ticket
	CommentCount int              `json:"comment_count"`
	BlockedBy    []blockerSummary `json:"blocked_by"`
	IsBlocked    bool             `json:"is_blocked"`
}

type blockerSummary struct {
	BlockedBy     int64  `json:"blocked_by"`
	BlockerStatus string `json:"blocker_status"`
}

func (s *Server) decorateTicketRow(ctx context.Context, coord *ticket.Coordinator, t store.Ticket) (ticketListRow, error) {
	comments, err := coord.Show(ctx, t.ID)
	if err != nil {
		return ticketListRow{}, err
	}
	summaries := make([]blockerSummary, 0, len(comments.BlockedBy))
	blocked := false
	for _, bid := range comments.BlockedBy {
		bt, err := coord.Show(ctx, bid)
		if err != nil {
			continue
		}
		summaries = append(summaries, blockerSummary{BlockedBy: bid, BlockerStatus: string(bt.Status)})
		if bt.Status != store.StatusDone {
			blocked = true
		}
	}
	return ticketListRow{
		Ticket:       t,
		CommentCount: len(comments.Comments),
		BlockedBy:    summaries,
		IsBlocked:    blocked,
	}, nil
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorJSON(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	detail, err := coord.Show(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type createTicketBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ParentID    int64  `json:"parent_id"`
	AssignedTo  string `json:"assigned_to"`
	CreatedBy   string `json:"created_by"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var body createTicketBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "title is required")
		return
	}

	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	id, err := coord.Create(r.Context(), body.Title, ticket.CreateOptions{
		Description: body.Description,
		ParentID:    body.ParentID,
		AssignedTo:  body.AssignedTo,
		CreatedBy:   body.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type commentBody struct {
	Body   string `json:"body"`
	Author string `json:"author"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorJSON(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	var body commentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Body == "" {
		writeErrorJSON(w, http.StatusBadRequest, "body is required")
		return
	}

	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	if _, err := coord.Comment(r.Context(), id, body.Author, body.Body); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (s *Server) handleCompleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorJSON(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	if err := coord.Complete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateTicketBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssignedTo  *string `json:"assigned_to"`
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorJSON(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	var body updateTicketBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	opts := ticket.UpdateOptions{
		Title:       body.Title,
		Description: body.Description,
		AssignedTo:  body.AssignedTo,
	}
	if body.Status != nil {
		status := store.Status(*body.Status)
		opts.Status = &status
	}

	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	if err := coord.Update(r.Context(), id, opts); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	events, err := coord.Activity(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": events})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	allStatuses := []store.Status{store.StatusOpen, store.StatusInProgress, store.StatusReady, store.StatusDone}
	stats := map[string]any{}
	total := 0
	for _, status := range allStatuses {
		n, err := st.CountTickets(r.Context(), []store.Status{status})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		stats[string(status)] = n
		total += n
	}
	stats["total"] = total

	tickets, err := coord.List(r.Context(), nil, "human")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	stats["needs_human"] = len(tickets)

	blocked := 0
	open, err := coord.List(r.Context(), nil, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, t := range open {
		blockedBy, err := st.BlockedBy(r.Context(), t.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for _, bid := range blockedBy {
			bt, err := st.GetTicket(r.Context(), bid)
			if err == nil && bt.Status != store.StatusDone {
				blocked++
				break
			}
		}
	}
	stats["blocked"] = blocked

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	containers, err := s.docker.listContainers(r.Context())
	if err != nil {
		// spec §7's graceful-degradation carve-out: a dashboard placeholder,
		// not a 5xx, since the absence of a runtime socket is routine in
		// local dev.
		writeJSON(w, http.StatusOK, map[string]any{"agents": []any{}, "error": "docker not available"})
		return
	}

	st, coord, err := s.openCoordinator(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close()

	inProgress, err := coord.List(r.Context(), []store.Status{store.StatusInProgress}, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	assignments := map[string]store.Ticket{}
	for _, t := range inProgress {
		if t.AssignedTo != "" {
			assignments[t.AssignedTo] = t
		}
	}

	agents := make([]agentInfo, 0, len(containers))
	for _, c := range containers {
		info := agentInfo{
			ID:      c.shortID(),
			Name:    c.name(),
			State:   c.State,
			Status:  c.Status,
			Image:   c.Image,
			Created: c.Created,
			Labels:  c.Labels,
		}
		if t, ok := assignments[info.Name]; ok {
			info.CurrentTicket = &currentTicket{TicketID: t.ID, TicketTitle: t.Title}
		}
		if c.State == "running" {
			if stats, err := s.docker.stats(r.Context(), c.ID); err == nil {
				cpu := stats.cpuPercent()
				mem := stats.memPercent()
				info.CPUPercent = &cpu
				info.MemoryUsage = stats.MemoryStats.Usage
				info.MemoryLimit = stats.MemoryStats.Limit
				info.MemoryPercent = &mem
			}
		}
		agents = append(agents, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

type currentTicket struct {
	TicketID    int64  `json:"ticket_id"`
	TicketTitle string `json:"ticket_title"`
}

type agentInfo struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	State         string            `json:"state"`
	Status        string            `json:"status"`
	Image         string            `json:"image"`
	Created       int64             `json:"created"`
	Labels        map[string]string `json:"labels"`
	CurrentTicket *currentTicket    `json:"current_ticket,omitempty"`
	CPUPercent    *float64          `json:"cpu_percent,omitempty"`
	MemoryUsage   uint64            `json:"memory_usage,omitempty"`
	MemoryLimit   uint64            `json:"memory_limit,omitempty"`
	MemoryPercent *float64          `json:"memory_percent,omitempty"`
}

func (s *Server) handleAgentLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	containers, err := s.docker.listContainers(r.Context())
	if err != nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "docker not available")
		return
	}

	var containerID string
	for _, c := range containers {
		if c.name() == name || strings.HasPrefix(c.ID, name) {
			containerID = c.ID
			break
		}
	}
	if containerID == "" {
		writeErrorJSON(w, http.StatusNotFound, "container '"+name+"' not found")
		return
	}

	logs, err := s.docker.logs(r.Context(), containerID, 100)
	if err != nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "docker not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": logs, "container": name})
}
