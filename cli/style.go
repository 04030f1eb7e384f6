package cli

import "github.com/charmbracelet/lipgloss"

var (
	// Success style for positive outcomes (green)
	Success = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#7FD962"}).
		Bold(true)

	// Warning style for cautionary messages (yellow)
	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB454"}).
		Bold(true)

	// Error style for failures (red)
	Error = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F07178"}).
		Bold(true)

	// Info style for column names and identifiers (blue)
	Info = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#59C2FF"})

	// Dim style for secondary information (gray)
	Dim = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#8A9199"})

	// Bold style for headers
	Bold = lipgloss.NewStyle().
		Bold(true)

	SuccessPrefix = Success.Render("✓")
	WarningPrefix = Warning.Render("⚠")
	ErrorPrefix   = Error.Render("✗")
)
