package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/mattn/go-isatty"
)

// ticketWriter returns a tabwriter only when stdout is a terminal;
// otherwise columns are left plain tab-separated so piped output (e.g.
// into a script) stays simple to parse, matching how Factory's indirect
// go-isatty dependency is used to gate interactive-only formatting.
func ticketWriter(w io.Writer) rowWriter {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	}
	return plainWriter{w}
}

type rowWriter interface {
	io.Writer
	Flush() error
}

// plainWriter passes rows through unchanged, tabs and all.
type plainWriter struct{ io.Writer }

func (plainWriter) Flush() error { return nil }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTicketTable(w io.Writer, tickets []store.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "No tickets found.")
		return
	}
	tw := ticketWriter(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tASSIGNED\tAGE\tTITLE")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.AssignedTo, humanize.Time(t.CreatedAt), t.Title)
	}
	tw.Flush()
}

func printTicketDetail(w io.Writer, d *ticket.Detail) {
	fmt.Fprintf(w, "Ticket #%d\n", d.ID)
	fmt.Fprintf(w, "  Title:       %s\n", d.Title)
	fmt.Fprintf(w, "  Status:      %s\n", d.Status)
	fmt.Fprintf(w, "  Type:        %s\n", d.Type)
	fmt.Fprintf(w, "  Assigned:    %s\n", orNone(d.AssignedTo))
	fmt.Fprintf(w, "  Created by:  %s\n", d.CreatedBy)
	if d.ParentID != 0 {
		fmt.Fprintf(w, "  Parent:      #%d\n", d.ParentID)
	}
	fmt.Fprintf(w, "  Created:     %s (%s)\n", d.CreatedAt.Format("2006-01-02T15:04:05Z"), humanize.Time(d.CreatedAt))
	fmt.Fprintf(w, "  Updated:     %s\n", humanize.Time(d.UpdatedAt))
	if d.Description != "" {
		fmt.Fprintln(w, "  Description:")
		fmt.Fprintf(w, "    %s\n", d.Description)
	}
	if len(d.BlockedBy) > 0 {
		fmt.Fprintf(w, "  Blocked by:  %v\n", d.BlockedBy)
	}
	if len(d.Blocks) > 0 {
		fmt.Fprintf(w, "  Blocks:      %v\n", d.Blocks)
	}
	if len(d.Children) > 0 {
		fmt.Fprintln(w, "  Children:")
		for _, c := range d.Children {
			fmt.Fprintf(w, "    #%d [%s] %s\n", c.ID, c.Status, c.Title)
		}
	}
	if len(d.Comments) > 0 {
		fmt.Fprintf(w, "\n  Comments (%d):\n", len(d.Comments))
		for _, c := range d.Comments {
			fmt.Fprintf(w, "    [%s] %s: %s\n", humanize.Time(c.CreatedAt), c.Author, c.Body)
		}
	}
}

func printComments(w io.Writer, comments []store.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "No comments.")
		return
	}
	for _, c := range comments {
		fmt.Fprintf(w, "[%s] %s: %s\n", humanize.Time(c.CreatedAt), c.Author, c.Body)
	}
}

func printActivity(w io.Writer, events []store.ActivityEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No activity.")
		return
	}
	tw := ticketWriter(w)
	for _, ev := range events {
		ticketStr := ""
		if ev.TicketID != 0 {
			ticketStr = fmt.Sprintf("#%d", ev.TicketID)
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\t%s\n", ev.CreatedAt.Format("2006-01-02T15:04:05Z"), ticketStr, ev.Action, ev.AgentID, ev.Detail)
	}
	tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
