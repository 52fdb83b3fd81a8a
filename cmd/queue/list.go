package main

import (
	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		status     string
		assignedTo string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := ticket.ParseStatusCSV(status)
			if err != nil {
				return domainErr(err)
			}
			tickets, err := coord.List(cmd.Context(), statuses, assignedTo)
			if err != nil {
				return domainErr(err)
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), tickets)
			}
			printTicketTable(cmd.OutOrStdout(), tickets)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "comma-separated status filter")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "filter by assignee")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	return cmd
}
