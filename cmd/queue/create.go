package main

import (
	"fmt"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		description       string
		parent            int64
		assign            string
		blockedBy         int64
		blockDependentsOf int64
		createdBy         string
		typ               string
	)

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a new ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ticket.CreateOptions{
				Description: description,
				ParentID:    parent,
				AssignedTo:  assign,
				CreatedBy:   createdBy,
				Type:        store.Type(typ),
			}
			if cmd.Flags().Changed("blocked-by") {
				opts.BlockedBy = &blockedBy
			}
			if cmd.Flags().Changed("block-dependents-of") {
				opts.BlockDependentsOf = &blockDependentsOf
			}

			id, err := coord.Create(cmd.Context(), args[0], opts)
			if err != nil {
				return domainErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "ticket description")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent ticket id")
	cmd.Flags().StringVar(&assign, "assign", "", "assign to agent/human")
	cmd.Flags().Int64Var(&blockedBy, "blocked-by", 0, "id of ticket that blocks the new ticket")
	cmd.Flags().Int64Var(&blockDependentsOf, "block-dependents-of", 0, "copy the in-edges of this ticket onto the new ticket")
	cmd.Flags().StringVar(&createdBy, "created-by", "human", "creator identifier")
	cmd.Flags().StringVar(&typ, "type", "", "ticket type: task, proposal, question, verify")
	return cmd
}
