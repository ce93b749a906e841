// Package orchestrator runs the fixed, ordered deployment pipeline. One step
// at a time, fail-fast, with cleanup at the failing step and idempotent
// resume across runs.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fawz-io/kcmanage/internal/domain/environment"
	"github.com/fawz-io/kcmanage/internal/domain/progress"
	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// SummaryEmitter produces the installation summary after a fully successful
// run. The summary generator implements it; tests inject a recorder.
type SummaryEmitter interface {
	Emit(ctx context.Context, env step.Environment, completed []string) (string, error)
}

// Result aggregates the run outcome.
type Result struct {
	RunID       string
	Outcomes    []step.Outcome
	SummaryPath string
}

// Failed returns the failing outcome, if any.
func (r Result) Failed() *step.Outcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].Failed() {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// Orchestrator executes steps strictly in list order. The ordering is a
// contract the caller must get right: system prep before docker, docker
// before anything that runs containers, deployment before configuration.
type Orchestrator struct {
	steps    []step.Step
	progress *progress.Store
	resolver *environment.Resolver
	logger   ports.Logger
	summary  SummaryEmitter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSummaryEmitter sets the emitter invoked after a fully successful run.
func WithSummaryEmitter(emitter SummaryEmitter) Option {
	return func(o *Orchestrator) {
		o.summary = emitter
	}
}

// New creates an Orchestrator over the given ordered steps.
func New(steps []step.Step, progressStore *progress.Store, resolver *environment.Resolver, logger ports.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:    steps,
		progress: progressStore,
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline. It stops at the first failing step; steps that
// already completed in an earlier run are skipped. On success of every step
// the installation summary is emitted.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	result := Result{RunID: uuid.NewString()}
	logger := o.logger.With(ports.F("run", result.RunID))

	if err := o.progress.Load(); err != nil {
		return result, err
	}

	for _, s := range o.steps {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		outcome := o.runStep(ctx, s, logger)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Failed() {
			logger.Error("deployment aborted",
				ports.F("step", outcome.Step),
				ports.F("error", outcome.Err))
			return result, step.Fail(outcome.Step, outcome.Err)
		}
	}

	if o.summary != nil {
		path, err := o.summary.Emit(ctx, o.resolver.Resolved(), o.progress.Completed())
		if err != nil {
			// The deployment itself succeeded; a summary failure is reported
			// but does not fail the run.
			logger.Warn("installation summary generation failed", ports.F("error", err))
		} else {
			result.SummaryPath = path
		}
	}

	logger.Info("deployment complete", ports.F("steps", len(result.Outcomes)))
	return result, nil
}

// runStep drives one step through the standard sequence: skip if done,
// check+install dependencies, resolve variables, execute, mark done. On
// failure the step's cleanup runs (when supported) before the failure is
// reported upward.
func (o *Orchestrator) runStep(ctx context.Context, s step.Step, logger ports.Logger) step.Outcome {
	name := s.Name()
	stepLogger := logger.With(ports.F("step", name))

	if o.progress.Done(name) {
		stepLogger.Info("already done, skipping")
		return step.Outcome{Step: name, Status: step.StatusSkipped}
	}

	start := time.Now()
	stepLogger.Info("starting step")

	ok, err := s.CheckDependencies(ctx)
	if err != nil {
		return o.fail(ctx, s, stepLogger, start, err)
	}
	if !ok {
		stepLogger.Info("dependencies not met, installing")
		if err := s.InstallDependencies(ctx); err != nil {
			wrapped := fmt.Errorf("%w: %v", step.ErrDependencyInstallFailed, err)
			return o.fail(ctx, s, stepLogger, start, wrapped)
		}
	}

	env, err := o.resolver.ResolveAll(ctx, s.RequiredVariables())
	if err != nil {
		return o.fail(ctx, s, stepLogger, start, err)
	}

	if err := s.Execute(ctx, env); err != nil {
		wrapped := fmt.Errorf("%w: %v", step.ErrExecutionFailed, err)
		return o.fail(ctx, s, stepLogger, start, wrapped)
	}

	// The step itself succeeded; a persistence failure must not trigger
	// cleanup, or it would undo work that is in place and working.
	if err := o.progress.MarkDone(name); err != nil {
		stepLogger.Error("failed to persist progress", ports.F("error", err))
		return step.Outcome{Step: name, Status: step.StatusFailed, Err: err, Duration: time.Since(start)}
	}

	stepLogger.Info("step completed", ports.F("duration", time.Since(start).Round(time.Millisecond)))
	return step.Outcome{Step: name, Status: step.StatusCompleted, Duration: time.Since(start)}
}

// fail is the single site where cleanup-on-failure happens: every step error
// funnels through here, so cleanup can never be skipped by an early return.
func (o *Orchestrator) fail(ctx context.Context, s step.Step, logger ports.Logger, start time.Time, err error) step.Outcome {
	outcome := step.Outcome{
		Step:     s.Name(),
		Status:   step.StatusFailed,
		Err:      err,
		Duration: time.Since(start),
	}

	if s.CanCleanup() {
		logger.Warn("step failed, running cleanup", ports.F("error", err))
		if cerr := s.Cleanup(ctx); cerr != nil {
			logger.Error("cleanup failed", ports.F("error", cerr))
		} else {
			outcome.Status = step.StatusCleanedUp
		}
	} else {
		logger.Error("step failed", ports.F("error", err))
	}

	return outcome
}
