// Package prompt implements the interactive Prompter port on top of
// bubbletea, so missing variables can be collected from the operator during
// a setup run.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fawz-io/kcmanage/internal/ports"
)

// ErrPromptAborted is returned when the operator cancels an interactive
// prompt with Esc or Ctrl+C.
var ErrPromptAborted = errors.New("prompt aborted")

// Terminal is an interactive Prompter backed by bubbletea programs.
type Terminal struct {
	input  io.Reader
	output io.Writer
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithInput overrides the input stream. Used in tests.
func WithInput(r io.Reader) Option {
	return func(t *Terminal) { t.input = r }
}

// WithOutput overrides the output stream. Used in tests.
func WithOutput(w io.Writer) Option {
	return func(t *Terminal) { t.output = w }
}

// NewTerminal creates a Terminal prompting on stdin/stdout.
func NewTerminal(opts ...Option) *Terminal {
	t := &Terminal{input: os.Stdin, output: os.Stdout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Prompt asks the operator for a single value. An empty submission falls
// back to the default when one is set.
func (t *Terminal) Prompt(ctx context.Context, label, defaultValue string) (string, error) {
	model := newInputModel(label, defaultValue)

	final, err := t.run(ctx, model)
	if err != nil {
		return "", err
	}

	m, ok := final.(inputModel)
	if !ok || m.cancelled {
		return "", fmt.Errorf("%w: %s", ErrPromptAborted, label)
	}
	return m.Value(), nil
}

// Confirm asks a yes/no question.
func (t *Terminal) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	model := newConfirmModel(question, defaultYes)

	final, err := t.run(ctx, model)
	if err != nil {
		return false, err
	}

	m, ok := final.(confirmModel)
	if !ok || m.cancelled {
		return false, fmt.Errorf("%w: %s", ErrPromptAborted, question)
	}
	return m.answer, nil
}

func (t *Terminal) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.input),
		tea.WithOutput(t.output))

	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

// Ensure Terminal implements the Prompter port.
var _ ports.Prompter = (*Terminal)(nil)
