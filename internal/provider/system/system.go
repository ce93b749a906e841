// Package system implements the system_preparation step: base packages the
// later steps rely on, plus a minimal ufw firewall profile.
package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// StepName is the progress-state identifier.
const StepName = "system_preparation"

// basePackages are the apt packages every later step assumes present.
var basePackages = []string{
	"ca-certificates",
	"curl",
	"gnupg",
	"apt-transport-https",
}

// allowedPorts is the inbound allow list applied to ufw.
var allowedPorts = []string{"22/tcp", "80/tcp", "443/tcp"}

// Step prepares the host: base packages installed and the firewall locked
// down to SSH plus HTTP/HTTPS.
type Step struct {
	runner ports.CommandRunner
	logger ports.Logger
}

// New creates the system preparation step.
func New(runner ports.CommandRunner, logger ports.Logger) *Step {
	return &Step{runner: runner, logger: logger}
}

// Name implements step.Step.
func (s *Step) Name() string { return StepName }

// CanCleanup implements step.Step. Removing base packages or reopening the
// firewall could break unrelated services on the host, so preparation is
// never undone.
func (s *Step) CanCleanup() bool { return false }

// RequiredVariables implements step.Step.
func (s *Step) RequiredVariables() []step.VariableSpec { return nil }

// CheckDependencies reports whether every base package is already installed.
func (s *Step) CheckDependencies(ctx context.Context) (bool, error) {
	if !s.runner.LookPath("apt-get") {
		return false, step.ToolUnavailable("apt-get", "this tool targets Debian/Ubuntu hosts")
	}

	for _, pkg := range basePackages {
		installed, err := s.packageInstalled(ctx, pkg)
		if err != nil {
			return false, err
		}
		if !installed {
			s.logger.Debug("base package missing", ports.F("package", pkg))
			return false, nil
		}
	}
	return true, nil
}

// InstallDependencies installs the missing base packages in one apt
// transaction.
func (s *Step) InstallDependencies(ctx context.Context) error {
	s.logger.Info("installing base packages", ports.F("packages", strings.Join(basePackages, ",")))

	res, err := s.runner.Run(ctx, "apt-get", "update", "-qq")
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("apt-get update: %s", res.Stderr)
	}

	args := append([]string{"install", "-y", "-qq"}, basePackages...)
	res, err = s.runner.Run(ctx, "apt-get", args...)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("apt-get install: %s", res.Stderr)
	}
	return nil
}

// Execute applies the firewall profile: deny inbound by default, allow the
// service ports, enable ufw.
func (s *Step) Execute(ctx context.Context, _ step.Environment) error {
	if !s.runner.LookPath("ufw") {
		res, err := s.runner.Run(ctx, "apt-get", "install", "-y", "-qq", "ufw")
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("install ufw: %s", res.Stderr)
		}
	}

	if err := s.ufw(ctx, "default", "deny", "incoming"); err != nil {
		return err
	}
	if err := s.ufw(ctx, "default", "allow", "outgoing"); err != nil {
		return err
	}
	for _, port := range allowedPorts {
		if err := s.ufw(ctx, "allow", port); err != nil {
			return err
		}
	}

	// --force answers the "may disrupt existing ssh connections" prompt.
	if err := s.ufw(ctx, "--force", "enable"); err != nil {
		return err
	}

	s.logger.Info("firewall enabled", ports.F("allowed", strings.Join(allowedPorts, ",")))
	return nil
}

// Cleanup implements step.Step. Never called with CanCleanup false during a
// failed run; a full reset tolerates the no-op.
func (s *Step) Cleanup(context.Context) error { return nil }

func (s *Step) packageInstalled(ctx context.Context, pkg string) (bool, error) {
	res, err := s.runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", pkg)
	if err != nil {
		return false, err
	}
	return res.Success() && strings.Contains(res.Stdout, "install ok installed"), nil
}

func (s *Step) ufw(ctx context.Context, args ...string) error {
	res, err := s.runner.Run(ctx, "ufw", args...)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("ufw %s: %s", strings.Join(args, " "), res.Stderr)
	}
	return nil
}

// Ensure Step satisfies the interface.
var _ step.Step = (*Step)(nil)
