// Package ui holds terminal presentation helpers for the wasipy CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessColor = "#10B981" // Emerald green
	ErrorColor   = "#EF4444" // Red
	InfoColor    = "#3B82F6" // Blue
	DimTextColor = "#9CA3AF" // Dimmed gray
)

var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(SuccessColor)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ErrorColor)).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(InfoColor))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(DimTextColor))
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// IsCI reports whether we're in a CI environment
func IsCI() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}
