package main

import (
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := coord.Activity(cmd.Context(), limit)
			if err != nil {
				return domainErr(err)
			}
			printActivity(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	return cmd
}
