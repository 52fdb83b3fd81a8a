package main

import (
	"fmt"
	"os"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := store.ResolvePath(dbFlag, viper.GetString("db"), cwd)

			version, err := store.Migrate(cmd.Context(), path)
			if err != nil {
				return domainErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store at %s is now at schema version %d.\n", path, version)
			return nil
		},
	}
}
