package keycloak

import (
	"context"
	"path/filepath"

	"github.com/fawz-io/kcmanage/internal/domain/kcconfig"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// ConfigureStepName is the progress-state identifier of the configuration
// step.
const ConfigureStepName = "keycloak_configuration"

// ConfigureStep applies the YAML document set to the running Keycloak
// instance through kcadm.
type ConfigureStep struct {
	runner     ports.CommandRunner
	logger     ports.Logger
	installDir string
}

// NewConfigureStep creates the configuration step rooted at installDir.
func NewConfigureStep(runner ports.CommandRunner, logger ports.Logger, installDir string) *ConfigureStep {
	return &ConfigureStep{runner: runner, logger: logger, installDir: installDir}
}

// Name implements step.Step.
func (s *ConfigureStep) Name() string { return ConfigureStepName }

// CanCleanup implements step.Step. Realm configuration is not rolled back:
// a partial apply is corrected by re-running, not by deleting the realm.
func (s *ConfigureStep) CanCleanup() bool { return false }

// RequiredVariables implements step.Step.
func (s *ConfigureStep) RequiredVariables() []step.VariableSpec {
	return []step.VariableSpec{
		step.RequiredVar("KEYCLOAK_DOMAIN", "Fully qualified domain for Keycloak", ""),
		step.RequiredVar("KEYCLOAK_REALM", "Realm name to configure", "fawz"),
		step.RequiredVar("KEYCLOAK_ADMIN_USER", "Keycloak admin username", "admin"),
		step.SecretVar("KEYCLOAK_ADMIN_PASSWORD", "Keycloak admin password"),
	}
}

// CheckDependencies verifies the docker CLI is available.
func (s *ConfigureStep) CheckDependencies(context.Context) (bool, error) {
	if !s.runner.LookPath("docker") {
		return false, step.ToolUnavailable("docker", "run the docker_setup step first")
	}
	return true, nil
}

// InstallDependencies implements step.Step.
func (s *ConfigureStep) InstallDependencies(context.Context) error { return nil }

// Execute loads, plans, and applies the document set. The config directory
// lives under the installation dir.
func (s *ConfigureStep) Execute(ctx context.Context, env step.Environment) error {
	loader := kcconfig.NewLoader(filepath.Join(s.installDir, "config"), s.logger)
	docs, err := loader.Load(env)
	if err != nil {
		return err
	}

	planned, err := kcconfig.Plan(docs, s.logger)
	if err != nil {
		return err
	}

	applier := kcconfig.NewApplier(s.runner, s.logger,
		env.Get("KEYCLOAK_REALM"),
		env.Get("KEYCLOAK_ADMIN_USER"),
		env.Get("KEYCLOAK_ADMIN_PASSWORD"),
		kcconfig.WithContainer(KeycloakContainer))

	return applier.Apply(ctx, planned)
}

// Cleanup implements step.Step.
func (s *ConfigureStep) Cleanup(context.Context) error { return nil }

// Ensure ConfigureStep satisfies the interface.
var _ step.Step = (*ConfigureStep)(nil)
