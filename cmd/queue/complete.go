package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a ticket ready for finalization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			if err := coord.Complete(cmd.Context(), id); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d completed.\n", id)
			return nil
		},
	}
}

func newMarkDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "mark-done ID",
		Short:  "Mark a ticket done (agent runtime finalization only)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			if err := coord.MarkDone(cmd.Context(), id); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d marked done.\n", id)
			return nil
		},
	}
	return cmd
}
