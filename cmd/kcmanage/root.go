package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fawz-io/kcmanage/internal/domain/step"
)

var (
	// Global flags
	installDir string
	verbose    bool
	yesFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "kcmanage",
	Short: "Keycloak deployment manager for a single VPS",
	Long: `kcmanage provisions and operates a production Keycloak instance on one host:
system preparation, docker, TLS certificates, the Keycloak and PostgreSQL
containers, realm configuration, monitoring, and scheduled database backups.

Deployment is a fixed pipeline of idempotent steps; a rerun resumes where
the previous run stopped.`,
	SilenceErrors: true, // We format errors ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&installDir, "install-dir", "/opt/fawz/keycloak",
		"installation directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false,
		"batch mode: never prompt, take defaults")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(versionCmd)
}

// formatError surfaces the failing step for pipeline errors and keeps the
// raw message for everything else.
func formatError(err error) string {
	var stepErr *step.StepError
	if errors.As(err, &stepErr) {
		return fmt.Sprintf("step %q failed: %v", stepErr.Step, stepErr.Err)
	}
	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
