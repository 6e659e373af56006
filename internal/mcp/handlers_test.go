package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	h     *Handler
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	est, err := app.OpenEstimator(context.Background(), store.Snapshots(), estimate.DefaultGate())
	require.NoError(t, err)

	hs := &harness{clock: time.Date(2026, 3, 4, 9, 30, 0, 0, time.Local)}
	appCtx := app.NewContext(store, est)
	appCtx.Now = func() time.Time { return hs.clock }
	hs.h = NewHandler(appCtx)
	return hs
}

// taskID pulls the id out of the "**ID**: `task-...`" line.
func taskID(t *testing.T, content string) string {
	t.Helper()
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, "**ID**: `"); ok {
			return strings.TrimSuffix(rest, "`")
		}
	}
	t.Fatalf("no task id in %q", content)
	return ""
}

func TestHandlePredict(t *testing.T) {
	hs := newHarness(t)

	hour, day, subtasks, deps := 14, 2, 3, true
	res := hs.h.HandlePredict(context.Background(), PredictParams{
		Category:          "Work Related",
		HourOfDay:         &hour,
		DayOfWeek:         &day,
		EstimatedSubtasks: &subtasks,
		HasDependencies:   &deps,
	})
	require.Empty(t, res.Error)
	got := decodePrediction(t, res.Content)
	assert.Nil(t, got.PredictedMinutes)
	assert.Equal(t, estimate.ReasonInsufficientTrainingData, got.Reason)
	assert.Equal(t, estimate.FeatureVector{
		CategoryID:        estimate.CategoryWorkRelated,
		HourOfDay:         14,
		DayOfWeek:         2,
		EstimatedSubtasks: 3,
		HasDependencies:   true,
	}, got.Features)

	var flat map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &flat))
	for _, k := range []string{"predicted_minutes", "confidence", "reason"} {
		assert.Contains(t, flat, k)
	}

	res = hs.h.HandlePredict(context.Background(), PredictParams{Category: "unknown"})
	got = decodePrediction(t, res.Content)
	assert.Equal(t, estimate.CategoryOther, got.Features.CategoryID)
	assert.Equal(t, 12, got.Features.HourOfDay)
	assert.Equal(t, 1, got.Features.EstimatedSubtasks)

	res = hs.h.HandlePredict(context.Background(), PredictParams{UseClock: true})
	got = decodePrediction(t, res.Content)
	assert.Equal(t, 9, got.Features.HourOfDay)
	assert.Equal(t, 2, got.Features.DayOfWeek)
}

func decodePrediction(t *testing.T, content string) PredictResult {
	t.Helper()
	var out PredictResult
	require.NoError(t, json.Unmarshal([]byte(content), &out))
	return out
}

func TestHandleTimerTool_Lifecycle(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()

	res := hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionCreate, Title: "Gym session", UserID: "u1", Context: map[string]any{"category": "Health and Fitness"}})
	require.Empty(t, res.Error)
	id := taskID(t, res.Content)
	assert.Contains(t, res.Content, "Health and Fitness")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionStart, TaskID: id})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "**Status**: running")

	hs.clock = hs.clock.Add(30 * time.Minute)
	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionShow, TaskID: strings.TrimPrefix(id, "task-")})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "**Time spent**: 30.0 min")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionPause, TaskID: id})
	assert.Contains(t, res.Content, "**Added**: 30.0 min")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionResume, TaskID: id})
	assert.Contains(t, res.Content, "**Status**: running")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionComplete, TaskID: id, UserID: "u1"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Content, "**Actual**: 30.0 min")
	assert.Contains(t, res.Content, "`applied` (1 samples)")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionComplete, TaskID: id})
	assert.Contains(t, res.Content, "already completed")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionStart, TaskID: id})
	assert.Contains(t, res.Error, "already completed")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionList, UserID: "u1", IncludeCompleted: true})
	assert.Contains(t, res.Content, "## Tasks (1)")
	assert.Contains(t, res.Content, id)
}

func TestHandleTimerTool_Validation(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()

	res := hs.h.HandleTimerTool(ctx, TimerToolParams{Action: "stop"})
	assert.Contains(t, res.Error, "invalid action")
	assert.Contains(t, res.Content, "Validation Error")

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionStart})
	assert.Equal(t, "task_id is required for start action", res.Error)

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionCreate})
	assert.Equal(t, "title is required for create action", res.Error)

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionShow, TaskID: "task-ffffffff"})
	assert.NotEmpty(t, res.Error)

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionList})
	assert.Equal(t, "No tasks found.", res.Content)

	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionCreate, Title: "Laundry"})
	require.Empty(t, res.Error)
	zero := 0.0
	res = hs.h.HandleTimerTool(ctx, TimerToolParams{Action: TimerActionComplete, TaskID: taskID(t, res.Content), ActualMinutes: &zero})
	assert.Contains(t, res.Error, "actual minutes must be greater than 0")
}

func TestTimerAction_IsValid(t *testing.T) {
	for _, a := range ValidTimerActions {
		assert.True(t, a.IsValid(), a)
	}
	assert.False(t, TimerAction("").IsValid())
}
