// Package step defines the unit of provisioning work and its lifecycle
// contract. Concrete steps live under internal/provider.
package step

import "context"

// Step is a single named unit of provisioning work. The orchestrator drives
// every step through the same sequence: dependency check (install if needed),
// variable resolution, execute, and cleanup on failure.
type Step interface {
	// Name returns the stable identifier used as the progress-state key.
	Name() string

	// CanCleanup reports whether the step supports best-effort undo after a
	// failed Execute.
	CanCleanup() bool

	// RequiredVariables declares the configuration values this step reads,
	// in resolution order.
	RequiredVariables() []VariableSpec

	// CheckDependencies performs read-only probes for the external tools and
	// packages the step needs. It must not change system state.
	CheckDependencies(ctx context.Context) (bool, error)

	// InstallDependencies installs missing dependencies. Only invoked when
	// CheckDependencies returned false. Must be idempotent.
	InstallDependencies(ctx context.Context) error

	// Execute performs the step's provisioning action with the resolved
	// environment. Steps read only the keys they declared.
	Execute(ctx context.Context, env Environment) error

	// Cleanup undoes the step's changes on a best-effort basis. Called after
	// a failed Execute when CanCleanup is true, and unconditionally (in
	// reverse step order) during a full reset.
	Cleanup(ctx context.Context) error
}

// Environment is the resolved configuration for one step execution: a plain
// value object handed into Execute, never process-global state.
type Environment map[string]string

// Get returns the value for key, or empty string if absent.
func (e Environment) Get(key string) string {
	return e[key]
}

// Lookup returns the value and whether the key is present.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Merge returns a new Environment with entries from other layered on top.
func (e Environment) Merge(other Environment) Environment {
	out := make(Environment, len(e)+len(other))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
