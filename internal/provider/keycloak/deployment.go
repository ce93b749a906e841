// Package keycloak implements the keycloak_deployment and
// keycloak_configuration steps.
package keycloak

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/waitutil"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/docker"
)

// DeployStepName is the progress-state identifier of the deployment step.
const DeployStepName = "keycloak_deployment"

// Container names shared with the configuration step and the status command.
const (
	KeycloakContainer = "keycloak"
	PostgresContainer = "keycloak-postgres"
)

// shutdownTimeout bounds `docker stop` during cleanup.
const shutdownTimeout = 30

// DeployStep runs the postgres and keycloak containers and waits for both
// to become healthy.
type DeployStep struct {
	runner       ports.CommandRunner
	logger       ports.Logger
	pollInterval time.Duration
	pollAttempts int
}

// DeployOption configures the deployment step.
type DeployOption func(*DeployStep)

// WithDeployPolling overrides the readiness budget. Used in tests.
func WithDeployPolling(interval time.Duration, attempts int) DeployOption {
	return func(s *DeployStep) {
		s.pollInterval = interval
		s.pollAttempts = attempts
	}
}

// NewDeployStep creates the deployment step.
func NewDeployStep(runner ports.CommandRunner, logger ports.Logger, opts ...DeployOption) *DeployStep {
	s := &DeployStep{
		runner:       runner,
		logger:       logger,
		pollInterval: 3 * time.Second,
		pollAttempts: 40,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements step.Step.
func (s *DeployStep) Name() string { return DeployStepName }

// CanCleanup implements step.Step.
func (s *DeployStep) CanCleanup() bool { return true }

// RequiredVariables implements step.Step.
func (s *DeployStep) RequiredVariables() []step.VariableSpec {
	return []step.VariableSpec{
		step.RequiredVar("KEYCLOAK_DOMAIN", "Fully qualified domain for Keycloak", ""),
		step.RequiredVar("KEYCLOAK_VERSION", "Keycloak image version", "26.0"),
		step.RequiredVar("KEYCLOAK_ADMIN_USER", "Keycloak admin username", "admin"),
		step.SecretVar("KEYCLOAK_ADMIN_PASSWORD", "Keycloak admin password"),
		step.RequiredVar("POSTGRES_VERSION", "PostgreSQL image version", "16"),
		step.RequiredVar("POSTGRES_DB", "PostgreSQL database name", "keycloak"),
		step.RequiredVar("POSTGRES_USER", "PostgreSQL user", "keycloak"),
		step.SecretVar("POSTGRES_PASSWORD", "PostgreSQL password"),
	}
}

// CheckDependencies verifies the docker CLI is available. The engine and
// network come from the docker_setup step.
func (s *DeployStep) CheckDependencies(context.Context) (bool, error) {
	if !s.runner.LookPath("docker") {
		return false, step.ToolUnavailable("docker", "run the docker_setup step first")
	}
	return true, nil
}

// InstallDependencies implements step.Step. Never reached: CheckDependencies
// either passes or fails hard.
func (s *DeployStep) InstallDependencies(context.Context) error { return nil }

// Execute starts postgres, waits for it, starts keycloak, and waits for the
// readiness endpoint.
func (s *DeployStep) Execute(ctx context.Context, env step.Environment) error {
	if err := s.ensurePostgres(ctx, env); err != nil {
		return err
	}
	if err := s.waitPostgresHealthy(ctx); err != nil {
		return fmt.Errorf("postgres not healthy: %w", err)
	}

	if err := s.ensureKeycloak(ctx, env); err != nil {
		return err
	}
	if err := s.waitKeycloakReady(ctx); err != nil {
		return fmt.Errorf("keycloak not ready: %w", err)
	}

	s.logger.Info("keycloak deployment healthy", ports.F("domain", env.Get("KEYCLOAK_DOMAIN")))
	return nil
}

// Cleanup stops and removes both containers within the shutdown window. The
// data volumes stay so a redeploy keeps its state.
func (s *DeployStep) Cleanup(ctx context.Context) error {
	for _, name := range []string{KeycloakContainer, PostgresContainer} {
		res, err := s.runner.Run(ctx, "docker", "stop", "-t", fmt.Sprint(shutdownTimeout), name)
		if err != nil {
			return err
		}
		if !res.Success() {
			s.logger.Warn("container stop failed", ports.F("container", name),
				ports.F("stderr", strings.TrimSpace(res.Stderr)))
		}

		res, err = s.runner.Run(ctx, "docker", "rm", "-f", name)
		if err != nil {
			return err
		}
		if !res.Success() {
			s.logger.Warn("container removal failed", ports.F("container", name),
				ports.F("stderr", strings.TrimSpace(res.Stderr)))
		}
	}
	return nil
}

func (s *DeployStep) ensurePostgres(ctx context.Context, env step.Environment) error {
	running, err := s.containerExists(ctx, PostgresContainer)
	if err != nil {
		return err
	}
	if running {
		return s.startContainer(ctx, PostgresContainer)
	}

	res, err := s.runner.Run(ctx, "docker", "run", "-d",
		"--name", PostgresContainer,
		"--network", docker.NetworkName,
		"--restart", "unless-stopped",
		"--memory", "512m",
		"--label", docker.ManagedLabel+"="+docker.ManagedLabelValue,
		"-v", docker.PostgresVolume+":/var/lib/postgresql/data",
		"-e", "POSTGRES_DB="+env.Get("POSTGRES_DB"),
		"-e", "POSTGRES_USER="+env.Get("POSTGRES_USER"),
		"-e", "POSTGRES_PASSWORD="+env.Get("POSTGRES_PASSWORD"),
		"--health-cmd", "pg_isready -U "+env.Get("POSTGRES_USER"),
		"--health-interval", "5s",
		"--health-retries", "5",
		"postgres:"+env.Get("POSTGRES_VERSION"))
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start postgres: %s", res.Stderr)
	}
	return nil
}

func (s *DeployStep) ensureKeycloak(ctx context.Context, env step.Environment) error {
	running, err := s.containerExists(ctx, KeycloakContainer)
	if err != nil {
		return err
	}
	if running {
		return s.startContainer(ctx, KeycloakContainer)
	}

	domain := env.Get("KEYCLOAK_DOMAIN")
	dbURL := fmt.Sprintf("jdbc:postgresql://%s:5432/%s", PostgresContainer, env.Get("POSTGRES_DB"))

	res, err := s.runner.Run(ctx, "docker", "run", "-d",
		"--name", KeycloakContainer,
		"--network", docker.NetworkName,
		"--restart", "unless-stopped",
		"--memory", "1g",
		"--label", docker.ManagedLabel+"="+docker.ManagedLabelValue,
		"-p", "80:8080",
		"-p", "443:8443",
		"-p", "9000:9000",
		"-v", docker.KeycloakVolume+":/opt/keycloak/data",
		"-v", "/etc/letsencrypt/live/"+domain+":/certs:ro",
		"-e", "KC_DB=postgres",
		"-e", "KC_DB_URL="+dbURL,
		"-e", "KC_DB_USERNAME="+env.Get("POSTGRES_USER"),
		"-e", "KC_DB_PASSWORD="+env.Get("POSTGRES_PASSWORD"),
		"-e", "KC_HOSTNAME="+domain,
		"-e", "KC_HTTPS_CERTIFICATE_FILE=/certs/fullchain.pem",
		"-e", "KC_HTTPS_CERTIFICATE_KEY_FILE=/certs/privkey.pem",
		"-e", "KC_HEALTH_ENABLED=true",
		"-e", "KC_METRICS_ENABLED=true",
		"-e", "KC_BOOTSTRAP_ADMIN_USERNAME="+env.Get("KEYCLOAK_ADMIN_USER"),
		"-e", "KC_BOOTSTRAP_ADMIN_PASSWORD="+env.Get("KEYCLOAK_ADMIN_PASSWORD"),
		"quay.io/keycloak/keycloak:"+env.Get("KEYCLOAK_VERSION"),
		"start", "--optimized")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start keycloak: %s", res.Stderr)
	}
	return nil
}

func (s *DeployStep) waitPostgresHealthy(ctx context.Context) error {
	return waitutil.Poll(ctx, s.pollInterval, s.pollAttempts, func(ctx context.Context) (bool, error) {
		res, err := s.runner.Run(ctx, "docker", "inspect",
			"--format", "{{.State.Health.Status}}", PostgresContainer)
		if err != nil {
			return false, err
		}
		return res.Success() && strings.TrimSpace(res.Stdout) == "healthy", nil
	})
}

func (s *DeployStep) waitKeycloakReady(ctx context.Context) error {
	return waitutil.Poll(ctx, s.pollInterval, s.pollAttempts, func(ctx context.Context) (bool, error) {
		res, err := s.runner.Run(ctx, "curl", "-fsS", "http://localhost:9000/health/ready")
		if err != nil {
			return false, err
		}
		return res.Success(), nil
	})
}

func (s *DeployStep) containerExists(ctx context.Context, name string) (bool, error) {
	res, err := s.runner.Run(ctx, "docker", "container", "inspect", name)
	if err != nil {
		return false, err
	}
	return res.Success(), nil
}

func (s *DeployStep) startContainer(ctx context.Context, name string) error {
	res, err := s.runner.Run(ctx, "docker", "start", name)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start container %s: %s", name, res.Stderr)
	}
	return nil
}

// Ensure DeployStep satisfies the interface.
var _ step.Step = (*DeployStep)(nil)
