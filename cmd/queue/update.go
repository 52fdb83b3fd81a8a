package main

import (
	"fmt"
	"strconv"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	var (
		title       string
		description string
		assign      string
		status      string
		typ         string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}

			var opts ticket.UpdateOptions
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("assign") {
				opts.AssignedTo = &assign
			}
			if cmd.Flags().Changed("status") {
				s := store.Status(status)
				opts.Status = &s
			}
			if cmd.Flags().Changed("type") {
				t := store.Type(typ)
				opts.Type = &t
			}

			if err := coord.Update(cmd.Context(), id, opts); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d updated.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&assign, "assign", "", "new assignee")
	cmd.Flags().StringVar(&status, "status", "", "new status: open, in_progress, ready")
	cmd.Flags().StringVar(&typ, "type", "", "new type: task, proposal, question, verify")
	return cmd
}
