package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCommentCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "comment ID BODY",
		Short: "Add a comment to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Sprintf("invalid ticket id %q", args[0]))
			}
			if _, err := coord.Comment(cmd.Context(), id, author, args[1]); err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added to ticket %d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "human", "comment author")
	return cmd
}
