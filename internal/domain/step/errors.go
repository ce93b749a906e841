package step

import (
	"errors"
	"fmt"
)

// Error kinds surfaced at the step boundary. The orchestrator wraps them in
// a StepError naming the failing step; callers match with errors.Is.
var (
	// ErrMissingRequiredVariable indicates a variable had no persisted value,
	// no default, and no interactive input was possible.
	ErrMissingRequiredVariable = errors.New("missing required variable")

	// ErrDependencyInstallFailed indicates InstallDependencies failed after
	// CheckDependencies reported missing dependencies.
	ErrDependencyInstallFailed = errors.New("dependency installation failed")

	// ErrExecutionFailed indicates a step's Execute failed.
	ErrExecutionFailed = errors.New("step execution failed")

	// ErrExternalToolUnavailable indicates a required external binary is
	// absent and cannot be auto-installed on this platform. The message
	// carries operator-facing remediation text.
	ErrExternalToolUnavailable = errors.New("external tool unavailable")

	// ErrValidationFailed indicates a configuration document failed schema
	// validation or declared an unmet dependency.
	ErrValidationFailed = errors.New("validation failed")
)

// StepError is the single consolidated failure a step reports upward.
type StepError struct {
	Step string
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Fail wraps err as a StepError for the named step.
func Fail(name string, err error) *StepError {
	return &StepError{Step: name, Err: err}
}

// ToolUnavailable builds an ErrExternalToolUnavailable with remediation text.
func ToolUnavailable(tool, remediation string) error {
	return fmt.Errorf("%w: %s (%s)", ErrExternalToolUnavailable, tool, remediation)
}
