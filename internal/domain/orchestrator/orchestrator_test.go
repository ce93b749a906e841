package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/domain/environment"
	"github.com/fawz-io/kcmanage/internal/domain/orchestrator"
	"github.com/fawz-io/kcmanage/internal/domain/progress"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStep records which lifecycle phases ran.
type fakeStep struct {
	name        string
	canCleanup  bool
	vars        []step.VariableSpec
	depsMissing bool
	installErr  error
	executeErr  error
	cleanupErr  error

	checked   int
	installed int
	executed  int
	cleaned   int
	seenEnv   step.Environment
	onExecute func()
	onCleanup func()
}

func (f *fakeStep) Name() string                          { return f.name }
func (f *fakeStep) CanCleanup() bool                      { return f.canCleanup }
func (f *fakeStep) RequiredVariables() []step.VariableSpec { return f.vars }

func (f *fakeStep) CheckDependencies(context.Context) (bool, error) {
	f.checked++
	return !f.depsMissing, nil
}

func (f *fakeStep) InstallDependencies(context.Context) error {
	f.installed++
	return f.installErr
}

func (f *fakeStep) Execute(_ context.Context, env step.Environment) error {
	f.executed++
	f.seenEnv = env
	if f.onExecute != nil {
		f.onExecute()
	}
	return f.executeErr
}

func (f *fakeStep) Cleanup(context.Context) error {
	f.cleaned++
	if f.onCleanup != nil {
		f.onCleanup()
	}
	return f.cleanupErr
}

type recordingEmitter struct {
	emitted   int
	env       step.Environment
	completed []string
}

func (r *recordingEmitter) Emit(_ context.Context, env step.Environment, completed []string) (string, error) {
	r.emitted++
	r.env = env
	r.completed = completed
	return "/tmp/summary.md", nil
}

type fixture struct {
	progress *progress.Store
	resolver *environment.Resolver
	emitter  *recordingEmitter
	prompter *mocks.Prompter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	prompter := mocks.NewPrompter()
	return &fixture{
		progress: progress.NewStore(filepath.Join(dir, "state")),
		resolver: environment.NewResolver(
			environment.NewSettingsStore(filepath.Join(dir, ".env")),
			prompter,
			logging.NewNopLogger(),
			environment.WithBatchMode(true),
		),
		emitter:  &recordingEmitter{},
		prompter: prompter,
	}
}

func (f *fixture) orchestrator(steps ...step.Step) *orchestrator.Orchestrator {
	return orchestrator.New(steps, f.progress, f.resolver, logging.NewNopLogger(),
		orchestrator.WithSummaryEmitter(f.emitter))
}

func TestRun_AllStepsComplete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s1 := &fakeStep{name: "system_preparation"}
	s2 := &fakeStep{name: "docker_setup", canCleanup: true}

	result, err := f.orchestrator(s1, s2).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, result.Failed())
	assert.Equal(t, 1, s1.executed)
	assert.Equal(t, 1, s2.executed)
	assert.Equal(t, []string{"docker_setup", "system_preparation"}, f.progress.Completed())
	assert.Equal(t, "/tmp/summary.md", result.SummaryPath)
	assert.Equal(t, 1, f.emitter.emitted)
}

func TestRun_SkipsCompletedSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.progress.Load())
	require.NoError(t, f.progress.MarkDone("system_preparation"))

	s1 := &fakeStep{name: "system_preparation"}
	s2 := &fakeStep{name: "docker_setup"}

	result, err := f.orchestrator(s1, s2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, s1.executed, "completed step must not re-execute")
	assert.Equal(t, 0, s1.checked, "completed step must not re-probe dependencies")
	assert.Equal(t, 1, s2.executed)
	assert.Equal(t, step.StatusSkipped, result.Outcomes[0].Status)
	assert.Equal(t, step.StatusCompleted, result.Outcomes[1].Status)
}

func TestRun_FailFast(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s1 := &fakeStep{name: "system_preparation"}
	s2 := &fakeStep{name: "docker_setup", executeErr: errors.New("daemon never became ready")}
	s3 := &fakeStep{name: "certificate_management"}

	result, err := f.orchestrator(s1, s2, s3).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 0, s3.executed, "steps after the failure must never run")
	assert.Equal(t, 0, s3.checked)

	failed := result.Failed()
	require.NotNil(t, failed)
	assert.Equal(t, "docker_setup", failed.Step)
	assert.ErrorIs(t, err, step.ErrExecutionFailed)

	var stepErr *step.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "docker_setup", stepErr.Step)

	// Only fully completed steps are persisted.
	assert.Equal(t, []string{"system_preparation"}, f.progress.Completed())
	assert.Equal(t, 0, f.emitter.emitted, "no summary on failure")
}

func TestRun_CleanupBeforeAbort(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	failing := &fakeStep{name: "docker_setup", canCleanup: true, executeErr: errors.New("boom")}

	result, err := f.orchestrator(failing).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, failing.cleaned, "cleanup exactly once")
	assert.Equal(t, step.StatusCleanedUp, result.Outcomes[0].Status)
}

func TestRun_NoCleanupWhenUnsupported(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	failing := &fakeStep{name: "system_preparation", executeErr: errors.New("boom")}

	result, err := f.orchestrator(failing).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 0, failing.cleaned)
	assert.Equal(t, step.StatusFailed, result.Outcomes[0].Status)
}

func TestRun_InstallsMissingDependencies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := &fakeStep{name: "certificate_management", depsMissing: true}

	_, err := f.orchestrator(s).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.installed)
	assert.Equal(t, 1, s.executed)
}

func TestRun_DependencyInstallFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := &fakeStep{
		name:        "certificate_management",
		canCleanup:  true,
		depsMissing: true,
		installErr:  errors.New("apt-get exited 100"),
	}

	_, err := f.orchestrator(s).Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, step.ErrDependencyInstallFailed)
	assert.Equal(t, 0, s.executed, "execute must not run after install failure")
	assert.Equal(t, 1, s.cleaned)
	assert.Empty(t, f.progress.Completed())
}

func TestRun_ResolvesDeclaredVariables(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := &fakeStep{
		name: "keycloak_deployment",
		vars: []step.VariableSpec{
			step.Var("KEYCLOAK_DOMAIN", "Keycloak domain", "auth.example.com"),
			step.Var("KEYCLOAK_PORT", "Keycloak HTTPS port", "8443"),
		},
	}

	_, err := f.orchestrator(s).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "auth.example.com", s.seenEnv.Get("KEYCLOAK_DOMAIN"))
	assert.Equal(t, "8443", s.seenEnv.Get("KEYCLOAK_PORT"))
}

func TestRun_MissingRequiredVariableAbortsBeforeExecute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := &fakeStep{
		name:       "keycloak_deployment",
		canCleanup: true,
		vars:       []step.VariableSpec{step.SecretVar("KEYCLOAK_ADMIN_PASSWORD", "Keycloak admin password")},
	}

	_, err := f.orchestrator(s).Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, step.ErrMissingRequiredVariable)
	assert.Equal(t, 0, s.executed)
}

func TestRun_SummaryReceivesResolvedEnvironment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := &fakeStep{
		name: "keycloak_deployment",
		vars: []step.VariableSpec{step.Var("KEYCLOAK_DOMAIN", "Keycloak domain", "auth.example.com")},
	}

	_, err := f.orchestrator(s).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "auth.example.com", f.emitter.env.Get("KEYCLOAK_DOMAIN"))
	assert.Equal(t, []string{"keycloak_deployment"}, f.emitter.completed)
}

func TestRun_IdempotentResume(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s1 := &fakeStep{name: "system_preparation"}
	s2 := &fakeStep{name: "docker_setup", executeErr: errors.New("interrupted")}

	_, err := f.orchestrator(s1, s2).Run(context.Background())
	require.Error(t, err)

	// Second run: the failure is gone, only the unfinished step re-executes.
	s2.executeErr = nil
	_, err = f.orchestrator(s1, s2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s1.executed, "completed step produced no second side effect")
	assert.Equal(t, 2, s2.executed, "interrupted step retried from scratch")
}

func TestRun_ProgressPersistFailureSkipsCleanup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// A regular file where the state directory should be makes every
	// MarkDone write fail.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state"), nil, 0o600))
	f.progress = progress.NewStore(filepath.Join(dir, "state", "progress"))

	s := &fakeStep{name: "certificate_management", canCleanup: true}

	result, err := f.orchestrator(s).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, s.executed)
	assert.Equal(t, 0, s.cleaned, "provisioned resources must survive a bookkeeping failure")
	assert.Equal(t, step.StatusFailed, result.Outcomes[0].Status)
}

func TestReset_Unconditional(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	installDir := filepath.Join(t.TempDir(), "install")
	require.NoError(t, os.MkdirAll(installDir, 0o755))

	settings := environment.NewSettingsStore(filepath.Join(installDir, ".env"))
	require.NoError(t, settings.Set("KEYCLOAK_DOMAIN", "auth.example.com"))

	require.NoError(t, f.progress.Load())
	require.NoError(t, f.progress.MarkDone("system_preparation"))

	var order []string
	s1 := &fakeStep{name: "system_preparation", onCleanup: func() { order = append(order, "system_preparation") }}
	s2 := &fakeStep{name: "docker_setup", canCleanup: true, onCleanup: func() { order = append(order, "docker_setup") }}

	err := f.orchestrator(s1, s2).Reset(context.Background(), orchestrator.ResetOptions{
		Settings:   settings,
		InstallDir: installDir,
	})
	require.NoError(t, err)

	// Reverse order, ignoring CanCleanup.
	assert.Equal(t, []string{"docker_setup", "system_preparation"}, order)
	assert.Empty(t, f.progress.Completed())

	_, statErr := os.Stat(installDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReset_FileLoggerDoesNotRecreateInstallDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	installDir := filepath.Join(t.TempDir(), "install")
	require.NoError(t, os.MkdirAll(installDir, 0o755))

	// Same wiring as the deploy command: the tee includes a file logger
	// whose backing file lives inside the installation directory.
	logger := logging.NewTeeLogger(
		logging.NewNopLogger(),
		logging.NewFileLogger(filepath.Join(installDir, "kcmanage.log")),
	)
	orch := orchestrator.New([]step.Step{&fakeStep{name: "docker_setup", canCleanup: true}},
		f.progress, f.resolver, logger)

	err := orch.Reset(context.Background(), orchestrator.ResetOptions{InstallDir: installDir})
	require.NoError(t, err)

	_, statErr := os.Stat(installDir)
	assert.True(t, os.IsNotExist(statErr), "logging after removal must not bring the directory back")
}

func TestReset_CleanupErrorsDoNotStopTeardown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s1 := &fakeStep{name: "system_preparation"}
	s2 := &fakeStep{name: "docker_setup", cleanupErr: errors.New("network busy")}

	err := f.orchestrator(s1, s2).Reset(context.Background(), orchestrator.ResetOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, s1.cleaned)
	assert.Equal(t, 1, s2.cleaned)
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	s1 := &fakeStep{name: "system_preparation", onExecute: cancel}
	s2 := &fakeStep{name: "docker_setup"}

	_, err := f.orchestrator(s1, s2).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s2.executed)
}
