package memory

import (
	"context"
	"testing"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedState(t *testing.T, n int) *estimate.ModelState {
	t.Helper()
	p := estimate.NewPredictor(nil, estimate.DefaultGate())
	fv := estimate.Normalize(map[string]any{estimate.KeyCategory: "Learning"})
	for i := 0; i < n; i++ {
		minutes := 30.0 + float64(i%5)
		require.True(t, p.Learn(fv, &minutes).Applied())
	}
	return p.Snapshot()
}

func TestSnapshots_LoadEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Snapshots().Load(context.Background())
	assert.ErrorIs(t, err, estimate.ErrNoSnapshot)
}

func TestSnapshots_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	snaps := store.Snapshots()

	first := trainedState(t, 3)
	require.NoError(t, snaps.Save(ctx, first))

	second := trainedState(t, 7)
	require.NoError(t, snaps.Save(ctx, second))

	got, err := snaps.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.SampleCount)
	assert.Equal(t, second.Weights, got.Weights)
	assert.Equal(t, second.RunningMAE, got.RunningMAE)

	var rows int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM model_snapshots`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSnapshots_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Snapshots().Save(ctx, trainedState(t, 4)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Snapshots().Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.SampleCount)

	p := estimate.NewPredictor(got, estimate.DefaultGate())
	assert.Equal(t, int64(4), p.SampleCount())
}

func TestSnapshots_RejectsMismatchedState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	bad := estimate.NewModelState()
	bad.Weights = bad.Weights[:2]
	assert.ErrorIs(t, store.Snapshots().Save(ctx, bad), estimate.ErrStateMismatch)

	_, err := store.DB().Exec(`INSERT INTO model_snapshots (id, format_version, payload, sample_count, running_mae, updated_at)
		VALUES (1, 99, '{"format_version":99}', 0, 0, '2026-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = store.Snapshots().Load(ctx)
	assert.ErrorIs(t, err, estimate.ErrStateMismatch)
}

func TestTrainingEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tk := sampleTask("learned")
	require.NoError(t, store.CreateTask(ctx, tk))

	predicted := 40.0
	for _, actual := range []float64{35, 50} {
		e := &task.TrainingEvent{
			TaskID:            tk.ID,
			UserID:            tk.UserID,
			Features:          tk.Features,
			ActualMinutes:     actual,
			EstimatedMinutes:  &predicted,
			LearnStatus:       estimate.LearnApplied,
			SampleCountAfter:  1,
			ErrorTermEstimate: estimate.ColdStartEstimate,
		}
		require.NoError(t, store.InsertTrainingEvent(ctx, e))
		assert.NotZero(t, e.ID)
	}

	events, err := store.ListTrainingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 35.0, events[0].ActualMinutes)
	assert.Equal(t, tk.Features, events[0].Features)
	assert.Equal(t, estimate.LearnApplied, events[1].LearnStatus)
	require.NotNil(t, events[1].EstimatedMinutes)
	assert.Equal(t, 40.0, *events[1].EstimatedMinutes)

	limited, err := store.ListTrainingEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := store.CountTrainingEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.DeleteTask(ctx, tk.ID))
	n, err = store.CountTrainingEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "events cascade with their task")
}

func TestTrainingEventForTask(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tk := sampleTask("looked up")
	require.NoError(t, store.CreateTask(ctx, tk))

	_, err := store.TrainingEventForTask(ctx, tk.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	for i, status := range []estimate.LearnStatus{estimate.LearnSkippedInvalidLabel, estimate.LearnApplied} {
		require.NoError(t, store.InsertTrainingEvent(ctx, &task.TrainingEvent{
			TaskID:           tk.ID,
			Features:         tk.Features,
			ActualMinutes:    30,
			LearnStatus:      status,
			SampleCountAfter: int64(i + 7),
		}))
	}

	e, err := store.TrainingEventForTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, estimate.LearnApplied, e.LearnStatus, "latest event wins")
	assert.Equal(t, int64(8), e.SampleCountAfter)
	assert.Equal(t, tk.Features, e.Features)
}
