// Package ports defines the interfaces through which the deployment core
// talks to the outside world: external binaries, logging, and the operator.
package ports

import (
	"context"
)

// CommandResult represents the outcome of one external command invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandCall records a command invocation, including anything piped to stdin.
type CommandCall struct {
	Command string
	Args    []string
	Stdin   string
}

// String renders the call the way it would appear on a shell command line.
func (c CommandCall) String() string {
	s := c.Command
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// CommandRunner executes external binaries (docker, apt-get, certbot,
// crontab, ...). Every provisioning side effect of the tool flows through
// this interface, which keeps each step testable against a recorded double.
type CommandRunner interface {
	// Run executes a command and captures stdout/stderr.
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)

	// RunInput executes a command with the given string piped to stdin.
	// Used for crontab(1), kcadm.sh -f -, and psql restores.
	RunInput(ctx context.Context, stdin string, command string, args ...string) (CommandResult, error)

	// LookPath reports whether a binary is resolvable on PATH.
	LookPath(name string) bool
}
