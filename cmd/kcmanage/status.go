package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fawz-io/kcmanage/internal/provider/docker"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	stepColStyle = lipgloss.NewStyle().Width(28)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress and container states",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := newApp(nil)

		if err := a.progress.Load(); err != nil {
			printError(err)
			return err
		}

		fmt.Println(headerStyle.Render("Pipeline"))
		for _, s := range a.pipeline() {
			state := pendingStyle.Render("pending")
			if a.progress.Done(s.Name()) {
				state = doneStyle.Render("done")
			}
			fmt.Printf("  %s %s\n", stepColStyle.Render(s.Name()), state)
		}

		fmt.Println()
		fmt.Println(headerStyle.Render("Containers"))

		res, err := a.runner.Run(cmd.Context(), "docker", "ps", "-a",
			"--filter", "label="+docker.ManagedLabel,
			"--format", "{{.Names}}\t{{.Status}}")
		if err != nil || !res.Success() {
			fmt.Println("  docker not reachable")
			return nil
		}

		out := strings.TrimSpace(res.Stdout)
		if out == "" {
			fmt.Println("  no managed containers")
			return nil
		}
		for _, line := range strings.Split(out, "\n") {
			parts := strings.SplitN(line, "\t", 2)
			name, state := parts[0], ""
			if len(parts) == 2 {
				state = parts[1]
			}
			style := pendingStyle
			if strings.HasPrefix(state, "Up") {
				style = doneStyle
			}
			fmt.Printf("  %s %s\n", stepColStyle.Render(name), style.Render(state))
		}
		return nil
	},
}
