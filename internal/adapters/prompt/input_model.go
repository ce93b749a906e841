package prompt

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	defaultStyle = lipgloss.NewStyle().Faint(true)
	helpStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
)

// inputModel collects one free-form value.
type inputModel struct {
	label        string
	defaultValue string
	input        textinput.Model
	done         bool
	cancelled    bool
}

func newInputModel(label, defaultValue string) inputModel {
	ti := textinput.New()
	ti.Placeholder = defaultValue
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 48

	return inputModel{
		label:        label,
		defaultValue: defaultValue,
		input:        ti,
	}
}

// Value returns the submitted value, falling back to the default on empty
// input.
func (m inputModel) Value() string {
	if v := m.input.Value(); v != "" {
		return v
	}
	return m.defaultValue
}

// Init implements tea.Model.
func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the prompt line.
func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	line := labelStyle.Render(m.label)
	if m.defaultValue != "" {
		line += " " + defaultStyle.Render("(default: "+m.defaultValue+")")
	}
	return line + "\n" + m.input.View() + "\n" + helpStyle.Render("enter to accept, esc to abort") + "\n"
}
