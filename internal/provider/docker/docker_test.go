package docker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/waitutil"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/docker"
	"github.com/fawz-io/kcmanage/internal/testutil/mocks"
)

func fastStep(runner *mocks.CommandRunner) *docker.Step {
	return docker.New(runner, logging.NewNopLogger(),
		docker.WithPolling(time.Millisecond, 3))
}

func TestCheckDependencies_VersionGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"modern engine", "Docker version 27.1.1, build 6312585", true},
		{"minimum version", "Docker version 24.0.0, build abcdef0", true},
		{"too old", "Docker version 20.10.24, build 297e128", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			runner.AddResult("docker", []string{"--version"},
				ports.CommandResult{ExitCode: 0, Stdout: tt.output})

			ok, err := fastStep(runner).CheckDependencies(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCheckDependencies_DockerMissing(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.SetMissing("docker")

	ok, err := fastStep(runner).CheckDependencies(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckDependencies_GarbageVersionOutput(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("docker", []string{"--version"},
		ports.CommandResult{ExitCode: 0, Stdout: "podman emulating docker"})

	_, err := fastStep(runner).CheckDependencies(context.Background())
	require.Error(t, err)
}

func TestInstallDependencies_UsesConvenienceScript(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	s := fastStep(runner)

	require.NoError(t, s.InstallDependencies(context.Background()))
	assert.True(t, runner.CalledWith("sh", "-c", "curl -fsSL https://get.docker.com | sh"))
	assert.True(t, runner.CalledWith("systemctl", "enable", "--now", "docker"))
}

func TestInstallDependencies_CurlMissing(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.SetMissing("curl")

	err := fastStep(runner).InstallDependencies(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, step.ErrExternalToolUnavailable)
}

func TestExecute_CreatesNetworkAndVolumes(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	// Nothing exists yet: inspects fail, creates succeed.
	runner.AddPrefixResult("docker network inspect", ports.CommandResult{ExitCode: 1})
	runner.AddPrefixResult("docker volume inspect", ports.CommandResult{ExitCode: 1})

	require.NoError(t, fastStep(runner).Execute(context.Background(), step.Environment{}))

	assert.True(t, runner.CalledWith("docker", "network", "create",
		"--driver", "bridge", "--label", "io.fawz.kcmanage=true", "keycloak-net"))
	assert.True(t, runner.CalledWith("docker", "volume", "create",
		"--label", "io.fawz.kcmanage=true", "keycloak-data"))
	assert.True(t, runner.CalledWith("docker", "volume", "create",
		"--label", "io.fawz.kcmanage=true", "postgres-data"))
}

func TestExecute_SkipsExistingResources(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	// inspect succeeds for everything, so no create calls expected.
	require.NoError(t, fastStep(runner).Execute(context.Background(), step.Environment{}))

	assert.False(t, runner.CalledWith("docker", "network", "create"))
	assert.False(t, runner.CalledWith("docker", "volume", "create"))
}

func TestExecute_DaemonNeverReady(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("docker info",
		ports.CommandResult{ExitCode: 1, Stderr: "Cannot connect to the Docker daemon"})

	err := fastStep(runner).Execute(context.Background(), step.Environment{})
	require.Error(t, err)
	assert.ErrorIs(t, err, waitutil.ErrExhausted)
}

func TestCleanup_RemovesNetworkAndVolumes(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	require.NoError(t, fastStep(runner).Cleanup(context.Background()))

	assert.True(t, runner.CalledWith("docker", "network", "rm", "keycloak-net"))
	assert.True(t, runner.CalledWith("docker", "volume", "rm", "keycloak-data", "postgres-data"))
}

func TestCleanup_ToleratesMissingResources(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("docker network rm",
		ports.CommandResult{ExitCode: 1, Stderr: "network keycloak-net not found"})
	runner.AddPrefixResult("docker volume rm",
		ports.CommandResult{ExitCode: 1, Stderr: "no such volume"})

	assert.NoError(t, fastStep(runner).Cleanup(context.Background()))
}

func TestStepContract(t *testing.T) {
	t.Parallel()

	s := fastStep(mocks.NewCommandRunner())
	assert.Equal(t, "docker_setup", s.Name())
	assert.True(t, s.CanCleanup())
	assert.Empty(t, s.RequiredVariables())
}
