package system_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/system"
	"github.com/fawz-io/kcmanage/internal/testutil/mocks"
)

func installedResult() ports.CommandResult {
	return ports.CommandResult{ExitCode: 0, Stdout: "install ok installed"}
}

func TestCheckDependencies_AllInstalled(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("dpkg-query", installedResult())

	s := system.New(runner, logging.NewNopLogger())
	ok, err := s.CheckDependencies(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckDependencies_MissingPackage(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("dpkg-query -W -f=${Status} ca-certificates", installedResult())
	runner.AddPrefixResult("dpkg-query",
		ports.CommandResult{ExitCode: 1, Stderr: "no packages found matching curl"})

	s := system.New(runner, logging.NewNopLogger())
	ok, err := s.CheckDependencies(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckDependencies_NoAptGet(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.SetMissing("apt-get")

	s := system.New(runner, logging.NewNopLogger())
	_, err := s.CheckDependencies(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, step.ErrExternalToolUnavailable)
}

func TestInstallDependencies_RunsAptInstall(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	s := system.New(runner, logging.NewNopLogger())

	require.NoError(t, s.InstallDependencies(context.Background()))
	assert.True(t, runner.CalledWith("apt-get", "update"))
	assert.True(t, runner.CalledWith("apt-get", "install", "-y", "-qq",
		"ca-certificates", "curl", "gnupg", "apt-transport-https"))
}

func TestInstallDependencies_AptFailure(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("apt-get install",
		ports.CommandResult{ExitCode: 100, Stderr: "Unable to locate package"})

	s := system.New(runner, logging.NewNopLogger())
	err := s.InstallDependencies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to locate package")
}

func TestExecute_AppliesFirewallProfile(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	s := system.New(runner, logging.NewNopLogger())

	require.NoError(t, s.Execute(context.Background(), step.Environment{}))

	assert.True(t, runner.CalledWith("ufw", "default", "deny", "incoming"))
	assert.True(t, runner.CalledWith("ufw", "default", "allow", "outgoing"))
	assert.True(t, runner.CalledWith("ufw", "allow", "22/tcp"))
	assert.True(t, runner.CalledWith("ufw", "allow", "80/tcp"))
	assert.True(t, runner.CalledWith("ufw", "allow", "443/tcp"))
	assert.True(t, runner.CalledWith("ufw", "--force", "enable"))
}

func TestExecute_InstallsUfwWhenAbsent(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.SetMissing("ufw")

	s := system.New(runner, logging.NewNopLogger())
	require.NoError(t, s.Execute(context.Background(), step.Environment{}))
	assert.True(t, runner.CalledWith("apt-get", "install", "-y", "-qq", "ufw"))
}

func TestExecute_UfwFailureAborts(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddPrefixResult("ufw default deny",
		ports.CommandResult{ExitCode: 1, Stderr: "permission denied"})

	s := system.New(runner, logging.NewNopLogger())
	err := s.Execute(context.Background(), step.Environment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestStepContract(t *testing.T) {
	t.Parallel()

	s := system.New(mocks.NewCommandRunner(), logging.NewNopLogger())
	assert.Equal(t, "system_preparation", s.Name())
	assert.False(t, s.CanCleanup())
	assert.Empty(t, s.RequiredVariables())
	assert.NoError(t, s.Cleanup(context.Background()))
}
