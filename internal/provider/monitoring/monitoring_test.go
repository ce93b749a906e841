package monitoring_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/monitoring"
	"github.com/fawz-io/kcmanage/internal/testutil/mocks"
)

func monitoringEnv() step.Environment {
	return step.Environment{
		"GRAFANA_ADMIN_PASSWORD": "gf-secret",
		"MONITORING_ALERT_EMAIL": "alerts@example.com",
		"MONITORING_WEBHOOK_URL": "https://hooks.example.com/kc",
		"PROMETHEUS_RETENTION":   "15d",
	}
}

func fastStep(t *testing.T, runner *mocks.CommandRunner) (*monitoring.Step, string) {
	t.Helper()
	installDir := t.TempDir()
	s := monitoring.New(runner, logging.NewNopLogger(), installDir,
		monitoring.WithPolling(time.Millisecond, 3))
	return s, installDir
}

func freshRunner() *mocks.CommandRunner {
	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("docker container inspect", ports.CommandResult{ExitCode: 1})
	return runner
}

func TestExecute_RendersPrometheusConfig(t *testing.T) {
	t.Parallel()

	runner := freshRunner()
	s, installDir := fastStep(t, runner)

	require.NoError(t, s.Execute(context.Background(), monitoringEnv()))

	data, err := os.ReadFile(filepath.Join(installDir, "monitoring", "prometheus.yml"))
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	scrapes := cfg["scrape_configs"].([]any)
	var jobs []string
	for _, raw := range scrapes {
		jobs = append(jobs, raw.(map[string]any)["job_name"].(string))
	}
	assert.ElementsMatch(t, []string{"keycloak", "postgres", "node"}, jobs)
}

func TestExecute_RendersGrafanaProvisioning(t *testing.T) {
	t.Parallel()

	runner := freshRunner()
	s, installDir := fastStep(t, runner)

	require.NoError(t, s.Execute(context.Background(), monitoringEnv()))

	ds, err := os.ReadFile(filepath.Join(installDir, "monitoring",
		"grafana", "provisioning", "datasources", "datasource.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(ds), "http://kc-prometheus:9090")

	nf, err := os.ReadFile(filepath.Join(installDir, "monitoring",
		"grafana", "provisioning", "notifiers", "notifiers.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(nf), "alerts@example.com")
	assert.Contains(t, string(nf), "https://hooks.example.com/kc")
}

func TestExecute_NoNotifiersWhenChannelsEmpty(t *testing.T) {
	t.Parallel()

	runner := freshRunner()
	s, installDir := fastStep(t, runner)

	env := step.Environment{"GRAFANA_ADMIN_PASSWORD": "pw", "PROMETHEUS_RETENTION": "15d"}
	require.NoError(t, s.Execute(context.Background(), env))

	_, err := os.Stat(filepath.Join(installDir, "monitoring",
		"grafana", "provisioning", "notifiers", "notifiers.yml"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_BacksUpExistingConfig(t *testing.T) {
	t.Parallel()

	runner := freshRunner()
	s, installDir := fastStep(t, runner)

	promPath := filepath.Join(installDir, "monitoring", "prometheus.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(promPath), 0o755))
	require.NoError(t, os.WriteFile(promPath, []byte("# hand edited\n"), 0o644))

	require.NoError(t, s.Execute(context.Background(), monitoringEnv()))

	backup, err := os.ReadFile(promPath + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "# hand edited\n", string(backup))
}

func TestExecute_RunsBothContainers(t *testing.T) {
	t.Parallel()

	runner := freshRunner()
	s, _ := fastStep(t, runner)

	require.NoError(t, s.Execute(context.Background(), monitoringEnv()))

	assert.True(t, runner.CalledWith("docker", "run", "-d", "--name", "kc-prometheus"))
	assert.True(t, runner.CalledWith("docker", "run", "-d", "--name", "kc-grafana"))

	var grafanaLine string
	for _, call := range runner.Calls() {
		if len(call.Args) > 3 && call.Args[0] == "run" && call.Args[3] == "kc-grafana" {
			grafanaLine = call.String()
		}
	}
	require.NotEmpty(t, grafanaLine)
	assert.Contains(t, grafanaLine, "--network keycloak-net")
	assert.Contains(t, grafanaLine, "GF_SECURITY_ADMIN_PASSWORD=gf-secret")
}

func TestExecute_ResumesExistingContainers(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner() // inspects succeed
	s, _ := fastStep(t, runner)

	require.NoError(t, s.Execute(context.Background(), monitoringEnv()))
	assert.True(t, runner.CalledWith("docker", "start", "kc-prometheus"))
	assert.True(t, runner.CalledWith("docker", "start", "kc-grafana"))
	assert.False(t, runner.CalledWith("docker", "run"))
}

func TestCleanup_RemovesContainers(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	s, _ := fastStep(t, runner)

	require.NoError(t, s.Cleanup(context.Background()))
	assert.True(t, runner.CalledWith("docker", "rm", "-f", "kc-grafana"))
	assert.True(t, runner.CalledWith("docker", "rm", "-f", "kc-prometheus"))
}

func TestStepContract(t *testing.T) {
	t.Parallel()

	s, _ := fastStep(t, mocks.NewCommandRunner())
	assert.Equal(t, "monitoring_setup", s.Name())
	assert.True(t, s.CanCleanup())

	vars := s.RequiredVariables()
	require.NotEmpty(t, vars)
	assert.Equal(t, "GRAFANA_ADMIN_PASSWORD", vars[0].Name)
	assert.True(t, vars[0].Secret)
}
