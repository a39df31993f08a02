package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const maxNameWidth = 24

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	ringStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

func truncateName(name string) string {
	if name == "" {
		return "unknown"
	}
	return runewidth.Truncate(name, maxNameWidth, "…")
}
