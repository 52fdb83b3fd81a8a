package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newUnblockCmd() *cobra.Command {
	var by int64

	cmd := &cobra.Command{
		Use:   "unblock ID",
		Short: "Remove a blocker relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			if err := coord.Unblock(cmd.Context(), id, by); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d is no longer blocked by ticket %d.\n", id, by)
			return nil
		},
	}

	cmd.Flags().Int64Var(&by, "by", 0, "id of the ticket that was blocking it")
	cmd.MarkFlagRequired("by")
	return cmd
}
