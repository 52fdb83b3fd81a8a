package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCommentsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "comments ID",
		Short: "List comments on a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			detail, err := coord.Show(cmd.Context(), id)
			if err != nil {
				return domainErr(err)
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), detail.Comments)
			}
			printComments(cmd.OutOrStdout(), detail.Comments)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	return cmd
}
