// Package docker implements the docker_setup step: engine installation,
// daemon readiness, and the shared network and volumes every container in
// the deployment attaches to.
package docker

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/waitutil"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// StepName is the progress-state identifier.
const StepName = "docker_setup"

// MinEngineVersion is the oldest engine the deployment supports.
const MinEngineVersion = "v24.0.0"

// Resource names shared with the deployment and monitoring steps.
const (
	NetworkName       = "keycloak-net"
	KeycloakVolume    = "keycloak-data"
	PostgresVolume    = "postgres-data"
	ManagedLabel      = "io.fawz.kcmanage"
	ManagedLabelValue = "true"
)

var versionPattern = regexp.MustCompile(`Docker version ([0-9]+\.[0-9]+\.[0-9]+)`)

// Step installs the docker engine when missing and provisions the labeled
// network and volumes.
type Step struct {
	runner       ports.CommandRunner
	logger       ports.Logger
	pollInterval time.Duration
	pollAttempts int
}

// Option configures the step.
type Option func(*Step)

// WithPolling overrides the daemon readiness budget. Used in tests.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(s *Step) {
		s.pollInterval = interval
		s.pollAttempts = attempts
	}
}

// New creates the docker setup step.
func New(runner ports.CommandRunner, logger ports.Logger, opts ...Option) *Step {
	s := &Step{
		runner:       runner,
		logger:       logger,
		pollInterval: 2 * time.Second,
		pollAttempts: 15,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements step.Step.
func (s *Step) Name() string { return StepName }

// CanCleanup implements step.Step.
func (s *Step) CanCleanup() bool { return true }

// RequiredVariables implements step.Step.
func (s *Step) RequiredVariables() []step.VariableSpec { return nil }

// CheckDependencies reports whether a new-enough docker engine is installed.
func (s *Step) CheckDependencies(ctx context.Context) (bool, error) {
	if !s.runner.LookPath("docker") {
		return false, nil
	}

	res, err := s.runner.Run(ctx, "docker", "--version")
	if err != nil {
		return false, err
	}
	if !res.Success() {
		return false, nil
	}

	version, err := parseEngineVersion(res.Stdout)
	if err != nil {
		return false, err
	}
	if semver.Compare(version, MinEngineVersion) < 0 {
		s.logger.Warn("docker engine too old, reinstalling",
			ports.F("installed", version), ports.F("minimum", MinEngineVersion))
		return false, nil
	}
	return true, nil
}

// InstallDependencies installs the engine through the official convenience
// script and enables the service.
func (s *Step) InstallDependencies(ctx context.Context) error {
	if !s.runner.LookPath("curl") {
		return step.ToolUnavailable("curl", "run the system_preparation step first")
	}

	s.logger.Info("installing docker engine via get.docker.com")
	res, err := s.runner.Run(ctx, "sh", "-c", "curl -fsSL https://get.docker.com | sh")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("docker install script: %s", res.Stderr)
	}

	res, err = s.runner.Run(ctx, "systemctl", "enable", "--now", "docker")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("enable docker service: %s", res.Stderr)
	}
	return nil
}

// Execute waits for the daemon and creates the network and volumes.
func (s *Step) Execute(ctx context.Context, _ step.Environment) error {
	err := waitutil.Poll(ctx, s.pollInterval, s.pollAttempts, func(ctx context.Context) (bool, error) {
		res, err := s.runner.Run(ctx, "docker", "info", "--format", "{{.ServerVersion}}")
		if err != nil {
			return false, err
		}
		return res.Success(), nil
	})
	if err != nil {
		return fmt.Errorf("docker daemon not ready: %w", err)
	}

	if err := s.ensureNetwork(ctx); err != nil {
		return err
	}
	for _, volume := range []string{KeycloakVolume, PostgresVolume} {
		if err := s.ensureVolume(ctx, volume); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes the managed network and volumes. The engine itself stays:
// other workloads on the host may use it.
func (s *Step) Cleanup(ctx context.Context) error {
	if res, err := s.runner.Run(ctx, "docker", "network", "rm", NetworkName); err != nil {
		return err
	} else if !res.Success() {
		s.logger.Warn("network removal failed", ports.F("network", NetworkName),
			ports.F("stderr", strings.TrimSpace(res.Stderr)))
	}

	if res, err := s.runner.Run(ctx, "docker", "volume", "rm", KeycloakVolume, PostgresVolume); err != nil {
		return err
	} else if !res.Success() {
		s.logger.Warn("volume removal failed",
			ports.F("stderr", strings.TrimSpace(res.Stderr)))
	}
	return nil
}

func (s *Step) ensureNetwork(ctx context.Context) error {
	res, err := s.runner.Run(ctx, "docker", "network", "inspect", NetworkName)
	if err != nil {
		return err
	}
	if res.Success() {
		return nil
	}

	res, err = s.runner.Run(ctx, "docker", "network", "create",
		"--driver", "bridge",
		"--label", ManagedLabel+"="+ManagedLabelValue,
		NetworkName)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("create network %s: %s", NetworkName, res.Stderr)
	}
	s.logger.Info("created network", ports.F("network", NetworkName))
	return nil
}

func (s *Step) ensureVolume(ctx context.Context, name string) error {
	res, err := s.runner.Run(ctx, "docker", "volume", "inspect", name)
	if err != nil {
		return err
	}
	if res.Success() {
		return nil
	}

	res, err = s.runner.Run(ctx, "docker", "volume", "create",
		"--label", ManagedLabel+"="+ManagedLabelValue,
		name)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("create volume %s: %s", name, res.Stderr)
	}
	s.logger.Info("created volume", ports.F("volume", name))
	return nil
}

func parseEngineVersion(out string) (string, error) {
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized docker version output: %q", strings.TrimSpace(out))
	}
	return "v" + m[1], nil
}

// Ensure Step satisfies the interface.
var _ step.Step = (*Step)(nil)
