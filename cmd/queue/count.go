package main

import (
	"fmt"

	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/spf13/cobra"
)

func newCountCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := ticket.ParseStatusCSV(status)
			if err != nil {
				return domainErr(err)
			}
			n, err := coord.Count(cmd.Context(), statuses)
			if err != nil {
				return domainErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "comma-separated status filter")
	return cmd
}
