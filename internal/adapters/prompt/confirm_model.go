package prompt

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	buttonStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("8"))
	buttonActiveStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).
				Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
)

// confirmModel is a yes/no dialog. Focus starts on the default answer.
type confirmModel struct {
	question  string
	yes       bool
	answer    bool
	done      bool
	cancelled bool
}

func newConfirmModel(question string, defaultYes bool) confirmModel {
	return confirmModel{question: question, yes: defaultYes}
}

// Init implements tea.Model.
func (m confirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "h":
		m.yes = true
	case "right", "l":
		m.yes = false
	case "y", "Y":
		m.answer = true
		m.done = true
		return m, tea.Quit
	case "n", "N":
		m.answer = false
		m.done = true
		return m, tea.Quit
	case "enter":
		m.answer = m.yes
		m.done = true
		return m, tea.Quit
	case "esc", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the question with the two buttons.
func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	yesBtn := buttonStyle.Render("Yes")
	noBtn := buttonActiveStyle.Render("No")
	if m.yes {
		yesBtn = buttonActiveStyle.Render("Yes")
		noBtn = buttonStyle.Render("No")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yesBtn, "  ", noBtn)
	return labelStyle.Render(m.question) + "\n\n" + buttons + "\n"
}
