package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/task"
)

// Table renders rows in a compact aligned format for the terminal.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxWidth int // Max width per column (0 = auto)
}

// ColumnWidths calculates column widths from headers and cell contents.
func (t *Table) ColumnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	if t.MaxWidth > 0 {
		for i := range widths {
			widths[i] = min(widths[i], t.MaxWidth)
		}
	}
	return widths
}

// Render outputs the table to a string.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.ColumnWidths()
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	cellStyle := lipgloss.NewStyle().Foreground(ColorText)

	var sb strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = headerStyle.Render(padRight(h, widths[i]))
	}
	sb.WriteString(" " + strings.Join(cells, "  ") + "\n")

	for i, w := range widths {
		cells[i] = StyleSubtle.Render(strings.Repeat("─", w))
	}
	sb.WriteString(" " + strings.Join(cells, "──") + "\n")

	for _, row := range t.Rows {
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = Truncate(row[i], widths[i])
			}
			cells[i] = cellStyle.Render(padRight(val, widths[i]))
		}
		sb.WriteString(" " + strings.Join(cells, "  ") + "\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// TaskTable builds the task list view.
func TaskTable(tasks []task.Task) *Table {
	t := &Table{
		Headers:  []string{"ID", "Title", "Category", "Status", "Spent", "Estimate"},
		MaxWidth: 40,
	}
	for _, tk := range tasks {
		phase := tk.Timer.Phase()
		spent := FormatMinutes(tk.Timer.TimeSpentMinutes())
		if phase == task.PhaseCompleted && tk.Timer.ActualMinutes != nil {
			spent = FormatMinutes(*tk.Timer.ActualMinutes)
		}
		t.Rows = append(t.Rows, []string{
			tk.ID,
			tk.Title,
			tk.Category(),
			PhaseIcon(phase) + " " + string(phase),
			spent,
			FormatEstimate(tk.Estimate),
		})
	}
	return t
}

// FormatEstimate renders a stored estimate, or its reason when none was exposed.
func FormatEstimate(e *task.Estimate) string {
	switch {
	case e == nil:
		return "-"
	case e.PredictedMinutes == nil:
		return string(e.Reason)
	default:
		return fmt.Sprintf("%s (%.0f%%)", FormatMinutes(*e.PredictedMinutes), e.Confidence*100)
	}
}

// RenderModelStatus renders the estimator status as a key/value panel.
func RenderModelStatus(s app.ModelStatus) string {
	ready := StyleWarning.Render(fmt.Sprintf("warming up (%d/%d samples)", s.SampleCount, s.Gate.MinTrainingSamples))
	if s.Ready {
		ready = StyleSuccess.Render("ready")
	}

	rows := [][2]string{
		{"Status", ready},
		{"Samples", fmt.Sprintf("%d", s.SampleCount)},
		{"Running MAE", FormatMinutes(s.RunningMAE)},
		{"Error term", FormatMinutes(s.ErrorTerm)},
		{"Threshold", fmt.Sprintf("%.2f", s.Gate.ConfidenceThreshold)},
		{"Format", fmt.Sprintf("v%d", s.FormatVersion)},
		{"Store", s.Location},
	}
	if s.UpdatedAt != nil {
		rows = append(rows, [2]string{"Updated", s.UpdatedAt.Local().Format("2006-01-02 15:04")})
	}
	if s.Dirty {
		rows = append(rows, [2]string{"Unsaved", StyleError.Render(s.LastSaveError)})
	}

	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(StyleSubtle.Render(padRight(r[0], 12)) + " " + r[1] + "\n")
	}
	return RenderPanel("Model", strings.TrimRight(sb.String(), "\n"))
}
