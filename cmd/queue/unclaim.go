package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newUnclaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unclaim ID",
		Short: "Release a claimed ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			if err := coord.Unclaim(cmd.Context(), id); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d unclaimed.\n", id)
			return nil
		},
	}
}
