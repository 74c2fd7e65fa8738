package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the TUI.
var (
	// Tab bar styles.
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Underline(true) // cyan
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))                           // gray
	tabGap           = "  "

	// Log line styles by level.
	errorLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	warnLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	debugLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	printLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green

	// General utility styles.
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)
