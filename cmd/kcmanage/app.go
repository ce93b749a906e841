package main

import (
	"path/filepath"

	"github.com/fawz-io/kcmanage/internal/adapters/command"
	"github.com/fawz-io/kcmanage/internal/adapters/logging"
	"github.com/fawz-io/kcmanage/internal/adapters/prompt"
	"github.com/fawz-io/kcmanage/internal/domain/environment"
	"github.com/fawz-io/kcmanage/internal/domain/orchestrator"
	"github.com/fawz-io/kcmanage/internal/domain/progress"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/domain/summary"
	"github.com/fawz-io/kcmanage/internal/ports"
	"github.com/fawz-io/kcmanage/internal/provider/backup"
	"github.com/fawz-io/kcmanage/internal/provider/certificate"
	"github.com/fawz-io/kcmanage/internal/provider/docker"
	"github.com/fawz-io/kcmanage/internal/provider/keycloak"
	"github.com/fawz-io/kcmanage/internal/provider/monitoring"
	"github.com/fawz-io/kcmanage/internal/provider/system"
)

// File names inside the installation directory.
const (
	settingsFileName = "settings.env"
	progressFileName = ".deploy-progress"
	logFileName      = "kcmanage.log"
	lockFileName     = "kcmanage.pid"
)

// app wires the adapters and domain services for one command invocation.
type app struct {
	runner   ports.CommandRunner
	logger   ports.Logger
	settings *environment.SettingsStore
	resolver *environment.Resolver
	progress *progress.Store
}

// newApp builds the object graph. Seeds come from CLI flags and win over
// every other variable source.
func newApp(seeds map[string]string) *app {
	level := ports.LevelInfo
	if verbose {
		level = ports.LevelDebug
	}
	logger := logging.NewTeeLogger(
		logging.NewConsoleLogger(logging.WithLevel(level)),
		logging.NewFileLogger(filepath.Join(installDir, logFileName)),
	)

	runner := command.NewRealRunner()
	settings := environment.NewSettingsStore(filepath.Join(installDir, settingsFileName))

	opts := []environment.ResolverOption{environment.WithBatchMode(yesFlag)}
	for name, value := range seeds {
		opts = append(opts, environment.WithSeed(name, value))
	}
	resolver := environment.NewResolver(settings, prompt.NewTerminal(), logger, opts...)

	return &app{
		runner:   runner,
		logger:   logger,
		settings: settings,
		resolver: resolver,
		progress: progress.NewStore(filepath.Join(installDir, progressFileName)),
	}
}

// pipeline returns the deployment steps in their fixed order.
func (a *app) pipeline() []step.Step {
	return []step.Step{
		system.New(a.runner, a.logger),
		docker.New(a.runner, a.logger),
		certificate.New(a.runner, a.logger, installDir),
		keycloak.NewDeployStep(a.runner, a.logger),
		keycloak.NewConfigureStep(a.runner, a.logger, installDir),
		monitoring.New(a.runner, a.logger, installDir),
		backup.New(a.runner, a.logger, installDir),
	}
}

// orchestrator builds the pipeline runner with summary emission.
func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(a.pipeline(), a.progress, a.resolver, a.logger,
		orchestrator.WithSummaryEmitter(summary.NewGenerator(installDir, a.runner, a.logger)))
}

// lockPath is the PID lock guarding against concurrent invocations.
func lockPath() string {
	return filepath.Join(installDir, lockFileName)
}
