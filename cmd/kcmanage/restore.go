package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fawz-io/kcmanage/internal/adapters/prompt"
	"github.com/fawz-io/kcmanage/internal/provider/backup"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <dump-file>",
	Short: "Restore the database from a dump",
	Long: `Restore stops Keycloak, replays the given SQL dump into PostgreSQL,
and starts Keycloak again. The current database contents are overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumpPath := args[0]

		if !yesFlag {
			confirmed, err := prompt.NewTerminal().Confirm(cmd.Context(),
				fmt.Sprintf("Overwrite the current database with %s?", dumpPath), false)
			if err != nil {
				printError(err)
				return err
			}
			if !confirmed {
				fmt.Println("Restore cancelled.")
				return nil
			}
		}

		a := newApp(nil)
		b := backup.New(a.runner, a.logger, installDir)

		env, err := a.resolver.ResolveAll(cmd.Context(), b.RequiredVariables())
		if err != nil {
			printError(err)
			return err
		}

		if err := b.Restore(cmd.Context(), env, dumpPath); err != nil {
			printError(err)
			return err
		}

		fmt.Println("Database restored.")
		return nil
	},
}
