// Package monitoring implements the monitoring_setup step: Prometheus and
// Grafana containers with rendered scrape and provisioning configuration.
package monitoring

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/waitutil"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/docker"
)

// StepName is the progress-state identifier.
const StepName = "monitoring_setup"

// Container names shared with the status command.
const (
	PrometheusContainer = "kc-prometheus"
	GrafanaContainer    = "kc-grafana"
)

// Pinned images. Bumped deliberately, not tracked to latest.
const (
	prometheusImage = "prom/prometheus:v2.53.0"
	grafanaImage    = "grafana/grafana:11.1.0"
)

// Step renders monitoring configuration and runs the two containers.
type Step struct {
	runner       ports.CommandRunner
	logger       ports.Logger
	configDir    string
	pollInterval time.Duration
	pollAttempts int
}

// Option configures the step.
type Option func(*Step)

// WithPolling overrides the readiness budget. Used in tests.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(s *Step) {
		s.pollInterval = interval
		s.pollAttempts = attempts
	}
}

// New creates the monitoring step; configuration is rendered under
// installDir/monitoring.
func New(runner ports.CommandRunner, logger ports.Logger, installDir string, opts ...Option) *Step {
	s := &Step{
		runner:       runner,
		logger:       logger,
		configDir:    filepath.Join(installDir, "monitoring"),
		pollInterval: 2 * time.Second,
		pollAttempts: 30,
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
func (s *Step) RequiredVariables() []step.VariableSpec {
	return []step.VariableSpec{
		step.SecretVar("GRAFANA_ADMIN_PASSWORD", "Grafana admin password"),
		step.Var("MONITORING_ALERT_EMAIL", "Email address for Grafana alerts (empty to disable)", ""),
		step.Var("MONITORING_WEBHOOK_URL", "Webhook URL for Grafana alerts (empty to disable)", ""),
		step.Var("PROMETHEUS_RETENTION", "Prometheus retention period", "15d"),
	}
}

// CheckDependencies verifies the docker CLI is available.
func (s *Step) CheckDependencies(context.Context) (bool, error) {
	if !s.runner.LookPath("docker") {
		return false, step.ToolUnavailable("docker", "run the docker_setup step first")
	}
	return true, nil
}

// InstallDependencies implements step.Step.
func (s *Step) InstallDependencies(context.Context) error { return nil }

// Execute renders the configuration (backing up what it overwrites) and
// starts both containers.
func (s *Step) Execute(ctx context.Context, env step.Environment) error {
	if err := s.renderConfig(env); err != nil {
		return fmt.Errorf("render monitoring config: %w", err)
	}

	if err := s.ensurePrometheus(ctx, env); err != nil {
		return err
	}
	if err := s.ensureGrafana(ctx, env); err != nil {
		return err
	}

	if err := s.waitReady(ctx, "http://localhost:9090/-/ready"); err != nil {
		return fmt.Errorf("prometheus not ready: %w", err)
	}
	if err := s.waitReady(ctx, "http://localhost:3000/api/health"); err != nil {
		return fmt.Errorf("grafana not ready: %w", err)
	}

	s.logger.Info("monitoring stack running")
	return nil
}

// Cleanup stops and removes both containers. Rendered configuration stays
// on disk for inspection.
func (s *Step) Cleanup(ctx context.Context) error {
	for _, name := range []string{GrafanaContainer, PrometheusContainer} {
		res, err := s.runner.Run(ctx, "docker", "rm", "-f", name)
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

func (s *Step) ensurePrometheus(ctx context.Context, env step.Environment) error {
	exists, err := s.containerExists(ctx, PrometheusContainer)
	if err != nil {
		return err
	}
	if exists {
		return s.startContainer(ctx, PrometheusContainer)
	}

	res, err := s.runner.Run(ctx, "docker", "run", "-d",
		"--name", PrometheusContainer,
		"--network", docker.NetworkName,
		"--restart", "unless-stopped",
		"--memory", "256m",
		"--label", docker.ManagedLabel+"="+docker.ManagedLabelValue,
		"-p", "9090:9090",
		"-v", filepath.Join(s.configDir, "prometheus.yml")+":/etc/prometheus/prometheus.yml:ro",
		prometheusImage,
		"--config.file=/etc/prometheus/prometheus.yml",
		"--storage.tsdb.retention.time="+env.Get("PROMETHEUS_RETENTION"))
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start prometheus: %s", res.Stderr)
	}
	return nil
}

func (s *Step) ensureGrafana(ctx context.Context, env step.Environment) error {
	exists, err := s.containerExists(ctx, GrafanaContainer)
	if err != nil {
		return err
	}
	if exists {
		return s.startContainer(ctx, GrafanaContainer)
	}

	res, err := s.runner.Run(ctx, "docker", "run", "-d",
		"--name", GrafanaContainer,
		"--network", docker.NetworkName,
		"--restart", "unless-stopped",
		"--memory", "256m",
		"--label", docker.ManagedLabel+"="+docker.ManagedLabelValue,
		"-p", "3000:3000",
		"-v", filepath.Join(s.configDir, "grafana", "provisioning")+":/etc/grafana/provisioning:ro",
		"-e", "GF_SECURITY_ADMIN_PASSWORD="+env.Get("GRAFANA_ADMIN_PASSWORD"),
		grafanaImage)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start grafana: %s", res.Stderr)
	}
	return nil
}

func (s *Step) waitReady(ctx context.Context, url string) error {
	return waitutil.Poll(ctx, s.pollInterval, s.pollAttempts, func(ctx context.Context) (bool, error) {
		res, err := s.runner.Run(ctx, "curl", "-fsS", url)
		if err != nil {
			return false, err
		}
		return res.Success(), nil
	})
}

func (s *Step) containerExists(ctx context.Context, name string) (bool, error) {
	res, err := s.runner.Run(ctx, "docker", "container", "inspect", name)
	if err != nil {
		return false, err
	}
	return res.Success(), nil
}

func (s *Step) startContainer(ctx context.Context, name string) error {
	res, err := s.runner.Run(ctx, "docker", "start", name)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("start container %s: %s", name, res.Stderr)
	}
	return nil
}

// Ensure Step satisfies the interface.
var _ step.Step = (*Step)(nil)
