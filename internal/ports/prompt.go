package ports

import "context"

// Prompter asks the operator for configuration values during a run.
// The resolver only reaches for it when a variable cannot be satisfied from
// the run environment or the persisted settings file.
type Prompter interface {
	// Prompt asks for a value, showing the default as a bracketed suggestion.
	// An empty reply takes the default.
	Prompt(ctx context.Context, label, defaultValue string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}
