// Package tui holds the interactive terminal views: the upload progress
// dialog and the document chat.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("You")
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Render("Assistant")
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
