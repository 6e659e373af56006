package ui

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsInteractive reports whether stdout is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// FormatMinutes renders minutes as "45m" or "1h 05m".
func FormatMinutes(m float64) string {
	if math.IsNaN(m) || m < 0 {
		return "-"
	}
	total := int(math.Round(m))
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

// FormatClock renders a duration as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// Truncate shortens s to maxLen display cells, adding an ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || lipgloss.Width(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen == 1 {
		return "…"
	}
	if len(r) > maxLen-1 {
		r = r[:maxLen-1]
	}
	return string(r) + "…"
}

// RenderPanel renders content in a rounded box with an optional title.
func RenderPanel(title, content string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		Padding(0, 1)
	if title != "" {
		content = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render(title) + "\n" + content
	}
	return style.Render(content)
}
