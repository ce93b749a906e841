package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Collect and save configuration without deploying",
	Long: `Setup resolves every variable the pipeline needs - prompting for the
missing ones - and persists them to the settings file. A later deploy then
runs without questions.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := os.MkdirAll(installDir, 0o755); err != nil {
			printError(err)
			return err
		}

		a := newApp(nil)

		for _, s := range a.pipeline() {
			if _, err := a.resolver.ResolveAll(cmd.Context(), s.RequiredVariables()); err != nil {
				printError(err)
				return err
			}
		}

		fmt.Printf("Settings saved to %s.\n", a.settings.Path())
		return nil
	},
}
