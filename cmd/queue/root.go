package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/madhatter5501/ticketcore/internal/store"
	"github.com/madhatter5501/ticketcore/internal/ticket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cliError carries the exit code a subcommand should terminate with,
// distinguishing domain failures (1) from usage errors (2) per spec §4.3.
type cliError struct {
	code int
	msg  string
}

func (e *cliError) Error() string { return e.msg }

func domainErr(err error) *cliError {
	return &cliError{code: 1, msg: err.Error()}
}

func usageErr(msg string) *cliError {
	return &cliError{code: 2, msg: msg}
}

var (
	dbFlag string

	db    *store.Store
	coord *ticket.Coordinator
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "queue",
		Short:         "SQLite-backed task queue for autonomous agent swarms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := store.ResolvePath(dbFlag, viper.GetString("db"), cwd)

			// "migrate" must be able to run against a stale or absent
			// schema, so it opens its own connection via store.Migrate
			// instead of going through the version-gated store.Open.
			if cmd.Name() == "migrate" {
				return nil
			}

			s, err := store.Open(cmd.Context(), path, slog.Default())
			if err != nil {
				return domainErr(err)
			}
			db = s
			coord = ticket.New(s)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db != nil {
				db.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&dbFlag, "db", "", "path to the ticket SQLite database")

	root.AddCommand(
		newCreateCmd(),
		newUpdateCmd(),
		newListCmd(),
		newShowCmd(),
		newCountCmd(),
		newClaimNextCmd(),
		newCommentCmd(),
		newCommentsCmd(),
		newCompleteCmd(),
		newUnclaimCmd(),
		newBlockCmd(),
		newUnblockCmd(),
		newLogCmd(),
		newMigrateCmd(),
		newMarkDoneCmd(),
	)
	return root
}

// Execute binds the TICKET_DB environment override via viper and runs the
// command tree, returning whatever error the running subcommand produced.
func Execute(ctx context.Context) error {
	viper.SetEnvPrefix("TICKET")
	viper.BindEnv("db", "TICKET_DB")

	root := newRootCmd()
	root.SetContext(ctx)
	return root.Execute()
}
