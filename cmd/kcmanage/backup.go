package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fawz-io/kcmanage/internal/provider/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take an immediate database backup",
	Long: `Backup dumps the Keycloak database into the backup storage path and
prunes dumps older than the retention period. The scheduled cron job runs
this same command.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(nil)
		b := backup.New(a.runner, a.logger, installDir)

		env, err := a.resolver.ResolveAll(cmd.Context(), b.RequiredVariables())
		if err != nil {
			printError(err)
			return err
		}

		path, err := b.RunNow(cmd.Context(), env)
		if err != nil {
			printError(err)
			return err
		}

		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}
