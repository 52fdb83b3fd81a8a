package main

import (
	"github.com/spf13/cobra"
)

func newClaimNextCmd() *cobra.Command {
	var (
		agent  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "claim-next",
		Short: "Claim the next available ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := coord.ClaimNext(cmd.Context(), agent)
			if err != nil {
				return domainErr(err)
			}
			detail, err := coord.Show(cmd.Context(), t.ID)
			if err != nil {
				return domainErr(err)
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), detail)
			}
			printTicketDetail(cmd.OutOrStdout(), detail)
			return nil
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent identifier")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	cmd.MarkFlagRequired("agent")
	return cmd
}
