// Package mcp implements the tool handlers served over the Model Context
// Protocol and renders their results as compact Markdown.
package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
)

// FormatError returns a Markdown error block.
func FormatError(message string) string {
	return fmt.Sprintf("## Error\n\n**Details**: %s", message)
}

// FormatValidationError returns a Markdown error for validation failures.
func FormatValidationError(field, message string) string {
	return fmt.Sprintf("## Validation Error\n\n**Field**: `%s`\n**Details**: %s", field, message)
}

func minutes(m float64) string {
	return fmt.Sprintf("%.1f min", m)
}

// FormatPrediction renders a gated prediction.
func FormatPrediction(fv estimate.FeatureVector, res estimate.PredictionResult) string {
	var sb strings.Builder
	sb.WriteString("## Duration Estimate\n\n")
	if res.PredictedMinutes != nil {
		fmt.Fprintf(&sb, "**Predicted**: %s\n", minutes(*res.PredictedMinutes))
	} else {
		sb.WriteString("**Predicted**: none\n")
	}
	fmt.Fprintf(&sb, "**Confidence**: %.2f\n", res.Confidence)
	fmt.Fprintf(&sb, "**Reason**: `%s`\n", res.Reason)
	fmt.Fprintf(&sb, "\n**Features**: category=%s, hour=%d, day=%d, subtasks=%d, vague=%t, dependencies=%t\n",
		fv.CategoryID, fv.HourOfDay, fv.DayOfWeek, fv.EstimatedSubtasks, fv.IsVague, fv.HasDependencies)
	if res.Reason == estimate.ReasonInsufficientTrainingData {
		sb.WriteString("\nThe model needs more completed tasks before it will answer.\n")
	}
	return sb.String()
}

// FormatPredictionJSON renders a prediction as the flat JSON object
// {predicted_minutes, confidence, reason, features}.
func FormatPredictionJSON(fv estimate.FeatureVector, res estimate.PredictionResult) (string, error) {
	data, err := json.MarshalIndent(PredictResult{PredictionResult: res, Features: fv}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prediction: %w", err)
	}
	return string(data), nil
}

// FormatTask renders one task with its live timer total.
func FormatTask(t *task.Task, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", t.Title)
	fmt.Fprintf(&sb, "**ID**: `%s`\n", t.ID)
	fmt.Fprintf(&sb, "**Category**: %s\n", t.Category())
	fmt.Fprintf(&sb, "**Status**: %s\n", t.Timer.Phase())
	fmt.Fprintf(&sb, "**Time spent**: %s\n", minutes(float64(t.Timer.TotalSeconds(now))/60))
	if t.Timer.ActualMinutes != nil {
		fmt.Fprintf(&sb, "**Actual**: %s\n", minutes(*t.Timer.ActualMinutes))
	}
	if e := t.Estimate; e != nil {
		if e.PredictedMinutes != nil {
			fmt.Fprintf(&sb, "**Estimate**: %s (confidence %.2f)\n", minutes(*e.PredictedMinutes), e.Confidence)
		} else {
			fmt.Fprintf(&sb, "**Estimate**: none (`%s`)\n", e.Reason)
		}
	}
	return sb.String()
}

// FormatTimer renders a timer transition.
func FormatTimer(action TimerAction, res *app.TimerResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Timer %s\n\n", action)
	fmt.Fprintf(&sb, "**Task**: `%s`\n", res.TaskID)
	fmt.Fprintf(&sb, "**Status**: %s\n", res.Phase)
	fmt.Fprintf(&sb, "**Time spent**: %s\n", minutes(res.TimeSpentMinutes))
	if res.ElapsedMinutesAdded != nil {
		fmt.Fprintf(&sb, "**Added**: %s\n", minutes(*res.ElapsedMinutesAdded))
	}
	return sb.String()
}

// FormatCompletion renders a completion result.
func FormatCompletion(res *app.CompleteResult) string {
	var sb strings.Builder
	sb.WriteString("## Task Completed\n\n")
	fmt.Fprintf(&sb, "**Task**: `%s`\n", res.Task.ID)
	fmt.Fprintf(&sb, "**Actual**: %s\n", minutes(res.ActualMinutes))
	if res.AlreadyCompleted {
		sb.WriteString("\nThe task was already completed; the model was not updated again.\n")
		return sb.String()
	}
	if res.LearnStatus != "" {
		fmt.Fprintf(&sb, "**Model update**: `%s` (%d samples)\n", res.LearnStatus, res.SampleCount)
	}
	if res.ModelSaveError != "" {
		fmt.Fprintf(&sb, "**Warning**: model not persisted: %s\n", res.ModelSaveError)
	}
	return sb.String()
}

// FormatTaskList renders tasks as a Markdown table.
func FormatTaskList(tasks []task.Task, now time.Time) string {
	if len(tasks) == 0 {
		return "No tasks found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Tasks (%d)\n\n", len(tasks))
	sb.WriteString("| ID | Title | Category | Status | Spent |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for i := range tasks {
		t := &tasks[i]
		title := strings.ReplaceAll(t.Title, "|", "\\|")
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n",
			t.ID, title, t.Category(), t.Timer.Phase(), minutes(float64(t.Timer.TotalSeconds(now))/60))
	}
	return sb.String()
}
