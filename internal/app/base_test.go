package app

import (
	"context"
	"testing"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end feedback loop: 35 completed "Work Related" tasks with durations
// clustered around 60 minutes make the next creation-time estimate usable.
func TestFeedbackLoop_ConvergesToUsableEstimate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	durations := []float64{55, 58, 60, 62, 65}

	for i := 0; i < 35; i++ {
		tk := f.create(t, "u1")
		_, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(durations[i%len(durations)])})
		require.NoError(t, err)
	}

	saved, _ := f.snapshots.saved()
	require.NotNil(t, saved)
	assert.Equal(t, int64(35), saved.SampleCount)

	res, err := f.app.Create(ctx, CreateTaskOptions{
		UserID: "u1",
		Title:  "Next report",
		Context: map[string]any{
			estimate.KeyCategory:          "Work Related",
			estimate.KeyEstimatedSubtasks: 3,
			estimate.KeyHasDependencies:   true,
		},
	})
	require.NoError(t, err)
	require.Equal(t, estimate.ReasonModelPrediction, res.Prediction.Reason)
	require.NotNil(t, res.Prediction.PredictedMinutes)
	assert.InDelta(t, 60, *res.Prediction.PredictedMinutes, 5)
	assert.GreaterOrEqual(t, res.Prediction.Confidence, estimate.ConfidenceThreshold)
	assert.Equal(t, res.Prediction.PredictedMinutes, res.Task.Estimate.PredictedMinutes)

	events, err := f.store.ListTrainingEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 35)
}

func TestContext_DefaultClock(t *testing.T) {
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	c := &Context{Tasks: store}
	assert.WithinDuration(t, time.Now(), c.now(), time.Second)
	c.track("ignored", nil)

	a := NewTaskApp(c)
	res, err := a.Create(context.Background(), CreateTaskOptions{Title: "no estimator"})
	require.NoError(t, err)
	assert.Nil(t, res.Task.Estimate)

	done, err := a.Complete(context.Background(), CompleteOptions{TaskID: res.Task.ID, ActualMinutes: minutes(5)})
	require.NoError(t, err)
	assert.Equal(t, task.PhaseCompleted, done.Task.Timer.Phase())
	assert.Empty(t, done.LearnStatus)
}
