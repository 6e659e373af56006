package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// conflictOnce makes the first UpdateTimer call fail with a version conflict
// after another writer bumped the row.
type conflictOnce struct {
	*memory.SQLiteStore
	once sync.Once
}

func (c *conflictOnce) UpdateTimer(ctx context.Context, t *task.Task, now time.Time) error {
	c.once.Do(func() {
		other := *t
		other.Timer = task.TimerState{TimeSpentSeconds: 1}
		_ = c.SQLiteStore.UpdateTimer(ctx, &other, now)
	})
	return c.SQLiteStore.UpdateTimer(ctx, t, now)
}

type fixture struct {
	app       *TaskApp
	store     *memory.SQLiteStore
	estimator *Estimator
	snapshots *memSnapshots
	clock     *fakeClock
}

// Tuesday 14:00 local time.
var creationTime = time.Date(2026, 3, 3, 14, 0, 0, 0, time.Local)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	snaps := &memSnapshots{}
	est, err := OpenEstimator(ctx, snaps, estimate.DefaultGate())
	require.NoError(t, err)

	clock := &fakeClock{now: creationTime}
	appCtx := NewContext(store, est)
	appCtx.Now = clock.Now

	return &fixture{app: NewTaskApp(appCtx), store: store, estimator: est, snapshots: snaps, clock: clock}
}

func (f *fixture) create(t *testing.T, user string) *task.Task {
	t.Helper()
	res, err := f.app.Create(context.Background(), CreateTaskOptions{
		UserID: user,
		Title:  "Quarterly report",
		Context: map[string]any{
			estimate.KeyCategory:          "Work Related",
			estimate.KeyEstimatedSubtasks: 3,
			estimate.KeyHasDependencies:   true,
		},
	})
	require.NoError(t, err)
	return res.Task
}

func TestCreate_CapturesCreationContextAndEstimate(t *testing.T) {
	f := newFixture(t)
	res, err := f.app.Create(context.Background(), CreateTaskOptions{
		UserID:  "u1",
		Title:   "Gym",
		Context: map[string]any{estimate.KeyCategory: "health and fitness"},
	})
	require.NoError(t, err)

	tk := res.Task
	assert.Equal(t, estimate.CategoryHealthAndFitness, tk.Features.CategoryID)
	assert.Equal(t, 14, tk.Features.HourOfDay)
	assert.Equal(t, 1, tk.Features.DayOfWeek, "Tuesday with Monday = 0")
	require.NotNil(t, tk.Estimate)
	assert.Equal(t, estimate.ReasonInsufficientTrainingData, tk.Estimate.Reason)
	assert.Nil(t, tk.Estimate.PredictedMinutes)

	stored, err := f.store.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Features, stored.Features)
}

func TestCreationContext_ExplicitValuesWin(t *testing.T) {
	raw := CreationContext(map[string]any{estimate.KeyHourOfDay: 7}, creationTime)
	assert.Equal(t, 7, raw[estimate.KeyHourOfDay])
	assert.Equal(t, 1, raw[estimate.KeyDayOfWeek])
}

func TestTimer_StartPauseResumeAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "u1")

	res, err := f.app.Start(ctx, tk.ID, "u1")
	require.NoError(t, err)
	assert.True(t, res.IsActive)
	assert.Equal(t, task.PhaseRunning, res.Phase)

	f.clock.Advance(10 * time.Second)
	res, err = f.app.Pause(ctx, tk.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, res.ElapsedSecondsAdded)
	assert.Equal(t, int64(10), *res.ElapsedSecondsAdded)
	assert.GreaterOrEqual(t, res.TimeSpentSeconds, int64(10))
	assert.False(t, res.IsActive)
	assert.Nil(t, res.TimerStartedAt)

	f.clock.Advance(time.Hour)
	_, err = f.app.Resume(ctx, tk.ID, "u1")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)
	res, err = f.app.Pause(ctx, tk.ID, "u1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.TimeSpentSeconds, int64(15))
	assert.Equal(t, int64(15), res.TimeSpentSeconds)
	assert.Equal(t, 0.25, res.TimeSpentMinutes)
}

func TestTimer_PauseFreshTaskIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	for i := 0; i < 3; i++ {
		res, err := f.app.Pause(ctx, tk.ID, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), *res.ElapsedSecondsAdded)
		assert.Equal(t, 0.0, *res.ElapsedMinutesAdded)
		assert.Equal(t, int64(0), res.TimeSpentSeconds)
		assert.False(t, res.IsActive)
	}
	stored, err := f.store.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version, "no-op pauses do not write")
}

func TestTimer_StartWhileRunningKeepsStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	first, err := f.app.Start(ctx, tk.ID, "")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Second)
	second, err := f.app.Start(ctx, tk.ID, "")
	require.NoError(t, err)
	assert.True(t, first.TimerStartedAt.Equal(*second.TimerStartedAt))
}

func TestComplete_LearnsOnceFromCreationFeatures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "u1")

	_, err := f.app.Start(ctx, tk.ID, "u1")
	require.NoError(t, err)
	f.clock.Advance(6 * time.Hour)

	res, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, UserID: "u1", ActualMinutes: minutes(55)})
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 55.0, res.ActualMinutes)
	assert.Equal(t, estimate.LearnApplied, res.LearnStatus)
	assert.Equal(t, int64(1), res.SampleCount)
	assert.True(t, res.Task.Timer.Completed)
	assert.Equal(t, int64(6*3600), res.Task.Timer.TimeSpentSeconds)

	f.clock.Advance(time.Hour)
	again, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, UserID: "u1", ActualMinutes: minutes(99)})
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.JSONEq(t, withoutRepeatFlag(t, res), withoutRepeatFlag(t, again), "repeat returns the stored result")
	assert.Equal(t, int64(1), f.estimator.Status().SampleCount, "second completion does not learn")

	events, err := f.store.ListTrainingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 14, events[0].Features.HourOfDay, "creation hour, not completion hour")
	assert.Equal(t, tk.Features, events[0].Features)
	assert.Equal(t, estimate.ColdStartEstimate, events[0].ErrorTermEstimate)

	_, err = f.app.Start(ctx, tk.ID, "u1")
	assert.ErrorIs(t, err, task.ErrTaskCompleted)
	_, err = f.app.Resume(ctx, tk.ID, "u1")
	assert.ErrorIs(t, err, task.ErrTaskCompleted)

	res2, err := f.app.Pause(ctx, tk.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), *res2.ElapsedSecondsAdded)
}

// withoutRepeatFlag encodes r with AlreadyCompleted cleared.
func withoutRepeatFlag(t *testing.T, r *CompleteResult) string {
	t.Helper()
	c := *r
	c.AlreadyCompleted = false
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return string(data)
}

func TestComplete_RejectsNonPositiveMinutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	for _, m := range []float64{0, -5} {
		_, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(m)})
		assert.ErrorIs(t, err, task.ErrInvalidActualMinutes)
	}

	got, err := f.app.Get(ctx, tk.ID, "")
	require.NoError(t, err)
	assert.False(t, got.Timer.Completed, "rejected input leaves the task open")
	assert.Equal(t, int64(0), f.estimator.Status().SampleCount)
}

func TestComplete_RepeatWithoutEstimator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")
	f.app.ctx.Estimator = nil

	first, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(12)})
	require.NoError(t, err)
	again, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID})
	require.NoError(t, err)
	assert.JSONEq(t, withoutRepeatFlag(t, first), withoutRepeatFlag(t, again))
	assert.Empty(t, again.LearnStatus)
}

func TestTaskApp_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "owner")
	_, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(20)})
	require.NoError(t, err)

	assert.ErrorIs(t, f.app.Delete(ctx, tk.ID, "intruder"), ErrForbidden)
	require.NoError(t, f.app.Delete(ctx, tk.ID, "owner"))

	_, err = f.app.Get(ctx, tk.ID, "")
	assert.ErrorIs(t, err, memory.ErrTaskNotFound)
	assert.ErrorIs(t, f.app.Delete(ctx, tk.ID, ""), memory.ErrTaskNotFound)

	n, err := f.store.CountTrainingEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), f.estimator.Status().SampleCount, "the model keeps what it learned")
}

func TestTaskApp_UpdatedAtFollowsClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")
	assert.True(t, tk.UpdatedAt.Equal(creationTime))

	f.clock.Advance(90 * time.Minute)
	_, err := f.app.Start(ctx, tk.ID, "")
	require.NoError(t, err)

	got, err := f.app.Get(ctx, tk.ID, "")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(creationTime.Add(90*time.Minute)), "got %s", got.UpdatedAt)
}

func TestComplete_UsesAccumulatedTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	_, err := f.app.Start(ctx, tk.ID, "")
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)

	res, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.ActualMinutes)
}

func TestComplete_ConcurrentCallersLearnOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	var wg sync.WaitGroup
	results := make([]*CompleteResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(30)})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		if r != nil && !r.AlreadyCompleted {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(1), f.estimator.Status().SampleCount)
}

func TestComplete_SaveFailureIsReportedNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	f.snapshots.failSaves(assert.AnError)
	res, err := f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, ActualMinutes: minutes(12)})
	require.NoError(t, err)
	assert.Contains(t, res.ModelSaveError, assert.AnError.Error())
	assert.True(t, res.Task.Timer.Completed)
	assert.Equal(t, int64(1), f.estimator.Status().SampleCount)
}

func TestTaskApp_NotFoundAndForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "owner")

	_, err := f.app.Start(ctx, "task-missing", "")
	assert.ErrorIs(t, err, memory.ErrTaskNotFound)

	_, err = f.app.Start(ctx, tk.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.app.Complete(ctx, CompleteOptions{TaskID: tk.ID, UserID: "intruder"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.app.Get(ctx, tk.ID, "owner")
	assert.NoError(t, err)
}

func TestTaskApp_RetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	f.app.ctx.Tasks = &conflictOnce{SQLiteStore: f.store}
	res, err := f.app.Start(ctx, tk.ID, "")
	require.NoError(t, err)
	assert.True(t, res.IsActive)
	assert.Equal(t, int64(1), res.TimeSpentSeconds, "retry re-read the concurrent write")
}

func TestTaskApp_Resolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.create(t, "")

	id, err := f.app.Resolve(ctx, tk.ID[5:9])
	require.NoError(t, err)
	assert.Equal(t, tk.ID, id)
}

func TestTaskApp_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, "u1")
	f.clock.Advance(time.Minute)
	f.create(t, "u1")
	f.create(t, "u2")

	_, err := f.app.Complete(ctx, CompleteOptions{TaskID: a.ID, ActualMinutes: minutes(10)})
	require.NoError(t, err)

	open, err := f.app.List(ctx, memory.TaskFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, open, 1)

	all, err := f.app.List(ctx, memory.TaskFilter{UserID: "u1", IncludeCompleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[1].ID)
}
