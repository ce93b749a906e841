package orchestrator

import (
	"context"
	"os"

	"github.com/fawz-io/kcmanage/internal/domain/environment"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// ResetOptions names the durable artifacts a full reset removes in addition
// to the provisioned resources.
type ResetOptions struct {
	Settings   *environment.SettingsStore
	InstallDir string
}

// Reset performs unconditional teardown. Unlike per-step rollback, reset
// ignores CanCleanup: every step's Cleanup runs, in reverse pipeline order,
// and individual cleanup errors are logged but do not stop the teardown.
// Afterwards the progress state, settings file, and installation directory
// are gone. Reset never takes a backup first; backups are an explicit
// command.
func (o *Orchestrator) Reset(ctx context.Context, opts ResetOptions) error {
	o.logger.Info("resetting installation")

	for i := len(o.steps) - 1; i >= 0; i-- {
		s := o.steps[i]
		if err := s.Cleanup(ctx); err != nil {
			o.logger.Warn("cleanup error during reset",
				ports.F("step", s.Name()),
				ports.F("error", err))
		}
	}

	if err := o.progress.Reset(); err != nil {
		return err
	}

	if opts.Settings != nil {
		if err := opts.Settings.Remove(); err != nil {
			return err
		}
	}

	// Log before removing the installation directory: the deploy command
	// tees into a file logger under that directory, and logging afterwards
	// would recreate it.
	o.logger.Info("reset complete")

	if opts.InstallDir != "" {
		if err := os.RemoveAll(opts.InstallDir); err != nil {
			return err
		}
	}

	return nil
}
