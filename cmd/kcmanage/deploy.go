package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fawz-io/kcmanage/internal/adapters/pidfile"
	"github.com/fawz-io/kcmanage/internal/adapters/prompt"
	"github.com/fawz-io/kcmanage/internal/domain/orchestrator"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

var (
	resetFlag   bool
	domainFlag  string
	emailFlag   string
	noCloneFlag bool
	updateFlag  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full deployment pipeline",
	Long: `Deploy runs every pipeline step in order, skipping steps that already
completed in an earlier run. With --reset the installation is torn down
instead: containers, network, volumes, progress state, settings, and the
installation directory.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := os.MkdirAll(installDir, 0o755); err != nil {
			printError(err)
			return err
		}

		release, err := pidfile.Acquire(lockPath())
		if err != nil {
			printError(err)
			return err
		}
		defer release()

		a := newApp(map[string]string{
			"KEYCLOAK_DOMAIN": domainFlag,
			"CERTBOT_EMAIL":   emailFlag,
		})

		if resetFlag {
			return runReset(cmd.Context(), a)
		}
		return runDeploy(cmd.Context(), a)
	},
}

func init() {
	deployCmd.Flags().BoolVar(&resetFlag, "reset", false, "tear down the installation instead of deploying")
	deployCmd.Flags().StringVar(&domainFlag, "domain", "", "Keycloak domain (overrides saved settings)")
	deployCmd.Flags().StringVar(&emailFlag, "email", "", "certbot registration email (overrides saved settings)")
	deployCmd.Flags().BoolVar(&noCloneFlag, "no-clone", false, "skip cloning the configuration repository")
	deployCmd.Flags().BoolVar(&updateFlag, "update", false, "pull the configuration repository before deploying")
}

func runDeploy(ctx context.Context, a *app) error {
	if err := syncConfigRepo(ctx, a); err != nil {
		printError(err)
		return err
	}

	result, err := a.orchestrator().Run(ctx)
	if err != nil {
		printError(err)
		return err
	}

	fmt.Printf("Deployment complete (%d steps).\n", len(result.Outcomes))
	if result.SummaryPath != "" {
		fmt.Printf("Installation summary: %s\n", result.SummaryPath)
	}
	return nil
}

func runReset(ctx context.Context, a *app) error {
	if !yesFlag {
		confirmed, err := prompt.NewTerminal().Confirm(ctx,
			"Remove containers, volumes, settings, and the installation directory?", false)
		if err != nil {
			printError(err)
			return err
		}
		if !confirmed {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	err := a.orchestrator().Reset(ctx, orchestrator.ResetOptions{
		Settings:   a.settings,
		InstallDir: installDir,
	})
	if err != nil {
		printError(err)
		return err
	}

	fmt.Println("Installation reset.")
	return nil
}

// syncConfigRepo keeps the Keycloak configuration documents in sync with
// their git source. No configured repository means the config directory is
// maintained by hand, which is fine.
func syncConfigRepo(ctx context.Context, a *app) error {
	repo, err := a.resolver.Resolve(ctx, step.Var("KEYCLOAK_CONFIG_REPO",
		"Git repository with the Keycloak configuration documents (empty to skip)", ""))
	if err != nil {
		return err
	}
	if repo == "" {
		return nil
	}

	configDir := filepath.Join(installDir, "config")

	if _, statErr := os.Stat(configDir); os.IsNotExist(statErr) {
		if noCloneFlag {
			a.logger.Warn("config directory missing and --no-clone set",
				ports.F("dir", configDir))
			return nil
		}
		res, err := a.runner.Run(ctx, "git", "clone", repo, configDir)
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("clone config repository: %s", res.Stderr)
		}
		return nil
	}

	if updateFlag {
		res, err := a.runner.Run(ctx, "git", "-C", configDir, "pull", "--ff-only")
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("update config repository: %s", res.Stderr)
		}
	}
	return nil
}
