package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/fawz-io/kcmanage/internal/ports"
)

// Prompter is a test double for ports.Prompter with scripted replies.
type Prompter struct {
	mu       sync.Mutex
	replies  map[string]string
	confirms map[string]bool
	asked    []string
}

// NewPrompter creates a new Prompter mock.
func NewPrompter() *Prompter {
	return &Prompter{
		replies:  make(map[string]string),
		confirms: make(map[string]bool),
	}
}

// AddReply scripts the answer for a prompt label. An empty reply simulates
// the operator accepting the default.
func (p *Prompter) AddReply(label, reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[label] = reply
}

// AddConfirm scripts the answer for a confirmation question.
func (p *Prompter) AddConfirm(question string, answer bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms[question] = answer
}

// Prompt returns the scripted reply, failing on unscripted prompts so tests
// notice unexpected interaction.
func (p *Prompter) Prompt(_ context.Context, label, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.asked = append(p.asked, label)
	reply, ok := p.replies[label]
	if !ok {
		return "", fmt.Errorf("unscripted prompt: %q", label)
	}
	return reply, nil
}

// Confirm returns the scripted answer, defaulting to the suggested one.
func (p *Prompter) Confirm(_ context.Context, question string, defaultYes bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.asked = append(p.asked, question)
	if answer, ok := p.confirms[question]; ok {
		return answer, nil
	}
	return defaultYes, nil
}

// Asked returns the labels of all prompts shown, in order.
func (p *Prompter) Asked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.asked))
	copy(out, p.asked)
	return out
}

// Ensure Prompter implements ports.Prompter.
var _ ports.Prompter = (*Prompter)(nil)
