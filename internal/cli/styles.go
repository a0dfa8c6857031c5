package cli

import "github.com/charmbracelet/lipgloss"

// styles holds the lipgloss styles for human-readable output. lipgloss
// drops colors automatically when stdout is not a terminal.
var styles = struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA")),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
}
