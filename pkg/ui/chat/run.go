package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Reply is what the console shows for one pipeline run.
type Reply struct {
	Text      string
	Delivered bool
	Recorded  bool
	Note      string
}

// PromptFunc runs one message through the relay.
type PromptFunc func(ctx context.Context, prompt string) (Reply, error)

// RuntimeInfo is shown in the console header.
type RuntimeInfo struct {
	Provider string
	Model    string
	Store    string
	Channel  string
}

func RunInteractive(ctx context.Context, promptFn PromptFunc, info RuntimeInfo) error {
	model := newModel(ctx, promptFn, modeInteractive, "", info)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func RunOneShot(ctx context.Context, promptFn PromptFunc, prompt string, info RuntimeInfo) error {
	model := newModel(ctx, promptFn, modeOneShot, prompt, info)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render("🤖 Relay console closed")
}
