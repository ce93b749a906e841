package environment

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// Resolver resolves variables with a fixed precedence: values already
// resolved this run (including process environment and CLI seeds), then the
// persisted settings file, then a prompt (or the declared default in batch
// mode). Newly obtained values are persisted back to the settings file.
type Resolver struct {
	mu       sync.Mutex
	settings *SettingsStore
	prompter ports.Prompter
	logger   ports.Logger
	batch    bool
	resolved step.Environment
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBatchMode disables interactive prompting; unresolved variables fall
// back to their declared defaults.
func WithBatchMode(batch bool) ResolverOption {
	return func(r *Resolver) {
		r.batch = batch
	}
}

// WithSeed pre-resolves a variable, as if it had been exported before the
// run. CLI flags like --domain and --email are injected this way.
func WithSeed(name, value string) ResolverOption {
	return func(r *Resolver) {
		if value != "" {
			r.resolved[name] = value
		}
	}
}

// NewResolver creates a Resolver over the given settings store and prompter.
func NewResolver(settings *SettingsStore, prompter ports.Prompter, logger ports.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		settings: settings,
		prompter: prompter,
		logger:   logger,
		resolved: make(step.Environment),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the value for spec, consulting sources in precedence order.
// Resolution is idempotent within a run: once a value is obtained it is
// returned unchanged on every later call, never silently overwritten.
func (r *Resolver) Resolve(ctx context.Context, spec step.VariableSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(ctx, spec)
}

// ResolveAll resolves each spec in order and returns the merged environment.
// Called by the orchestrator immediately before a step executes.
func (r *Resolver) ResolveAll(ctx context.Context, specs []step.VariableSpec) (step.Environment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	env := make(step.Environment, len(specs))
	for _, spec := range specs {
		value, err := r.resolveLocked(ctx, spec)
		if err != nil {
			return nil, err
		}
		env[spec.Name] = value
	}
	return env, nil
}

// Resolved returns a copy of everything resolved so far this run. The
// summary generator consumes this after the final step.
func (r *Resolver) Resolved() step.Environment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(step.Environment, len(r.resolved))
	for k, v := range r.resolved {
		out[k] = v
	}
	return out
}

func (r *Resolver) resolveLocked(ctx context.Context, spec step.VariableSpec) (string, error) {
	// 1. Already resolved this run.
	if v, ok := r.resolved[spec.Name]; ok {
		return v, nil
	}

	// 2. Process environment.
	if v, ok := os.LookupEnv(spec.Name); ok && v != "" {
		r.resolved[spec.Name] = v
		return v, nil
	}

	// 3. Persisted settings file.
	if v, ok, err := r.settings.Get(spec.Name); err != nil {
		return "", err
	} else if ok && v != "" {
		r.resolved[spec.Name] = v
		return v, nil
	}

	// 4. Batch mode takes the default without asking.
	if r.batch {
		if spec.Default == "" && spec.Required {
			return "", fmt.Errorf("%w: %s", step.ErrMissingRequiredVariable, spec.Name)
		}
		return r.accept(spec, spec.Default)
	}

	// 5. Interactive prompt, empty reply takes the default.
	value, err := r.prompter.Prompt(ctx, spec.Prompt, spec.Default)
	if err != nil {
		return "", fmt.Errorf("prompt for %s: %w", spec.Name, err)
	}
	if value == "" {
		value = spec.Default
	}
	if value == "" && spec.Required {
		return "", fmt.Errorf("%w: %s", step.ErrMissingRequiredVariable, spec.Name)
	}

	return r.accept(spec, value)
}

// accept records a newly obtained value and persists it for future runs.
func (r *Resolver) accept(spec step.VariableSpec, value string) (string, error) {
	r.resolved[spec.Name] = value

	if err := r.settings.Set(spec.Name, value); err != nil {
		return "", err
	}

	logged := value
	if spec.Secret {
		logged = "********"
	}
	r.logger.Debug("variable resolved", ports.F("name", spec.Name), ports.F("value", logged))

	return value, nil
}
