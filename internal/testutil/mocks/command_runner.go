// Package mocks provides test doubles for the ports interfaces.
package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/fawz-io/kcmanage/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
// Results are registered per exact command line; a prefix fallback covers
// commands whose trailing arguments vary (paths, generated names).
type CommandRunner struct {
	mu            sync.RWMutex
	results       map[string]ports.CommandResult
	errors        map[string]error
	prefixResults []prefixResult
	defaultResult *ports.CommandResult
	missing       map[string]bool
	calls         []ports.CommandCall
}

type prefixResult struct {
	prefix string
	result ports.CommandResult
	err    error
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]ports.CommandResult),
		errors:  make(map[string]error),
		missing: make(map[string]bool),
	}
}

// AddResult registers an exact command line and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddError registers an exact command line that returns an error (binary
// missing, context cancelled, ...).
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// AddPrefixResult registers a result for any command line starting with the
// given words.
func (m *CommandRunner) AddPrefixResult(prefix string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixResults = append(m.prefixResults, prefixResult{prefix: prefix, result: result})
}

// SetDefaultResult makes unmatched commands return the given result instead
// of failing the test with a missing-stub error.
func (m *CommandRunner) SetDefaultResult(result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResult = &result
}

// SetMissing marks a binary as absent from PATH.
func (m *CommandRunner) SetMissing(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[name] = true
}

// Run executes a mock command.
func (m *CommandRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	return m.RunInput(ctx, "", command, args...)
}

// RunInput executes a mock command recording its stdin.
func (m *CommandRunner) RunInput(_ context.Context, stdin string, command string, args ...string) (ports.CommandResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ports.CommandCall{Command: command, Args: args, Stdin: stdin})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := buildKey(command, args)

	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{}, err
	}
	if result, ok := m.results[key]; ok {
		return result, nil
	}
	for _, p := range m.prefixResults {
		if strings.HasPrefix(key, p.prefix) {
			return p.result, p.err
		}
	}
	if m.defaultResult != nil {
		return *m.defaultResult, nil
	}

	// Unstubbed commands succeed silently; tests assert on Calls().
	return ports.CommandResult{ExitCode: 0}, nil
}

// LookPath reports binary availability per SetMissing.
func (m *CommandRunner) LookPath(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.missing[name]
}

// Calls returns a copy of all recorded invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CalledWith reports whether any recorded call starts with the given words.
func (m *CommandRunner) CalledWith(words ...string) bool {
	prefix := strings.Join(words, " ")
	for _, call := range m.Calls() {
		if strings.HasPrefix(call.String(), prefix) {
			return true
		}
	}
	return false
}

func buildKey(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

// Ensure CommandRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*CommandRunner)(nil)
