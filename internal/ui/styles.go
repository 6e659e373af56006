// Package ui renders TaskPace output for the terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")

	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	// Large elapsed-time readout in the watch view.
	StyleClock = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// PhaseStyle colors a timer phase.
func PhaseStyle(p task.Phase) lipgloss.Style {
	switch p {
	case task.PhaseRunning:
		return StyleSuccess
	case task.PhasePaused:
		return StyleWarning
	case task.PhaseCompleted:
		return StyleSubtle
	default:
		return StyleText
	}
}

// PhaseIcon is a one-character marker for a phase.
func PhaseIcon(p task.Phase) string {
	switch p {
	case task.PhaseRunning:
		return "▶"
	case task.PhasePaused:
		return "⏸"
	case task.PhaseCompleted:
		return "✓"
	default:
		return "○"
	}
}

// ReasonStyle colors a prediction reason.
func ReasonStyle(r estimate.Reason) lipgloss.Style {
	switch r {
	case estimate.ReasonModelPrediction:
		return StyleSuccess
	case estimate.ReasonInsufficientTrainingData, estimate.ReasonLowConfidence:
		return StyleWarning
	default:
		return StyleError
	}
}
