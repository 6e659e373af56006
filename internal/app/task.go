package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/telemetry"
	"github.com/josephgoksu/TaskPace/internal/util"
)

// ErrForbidden is returned when a caller acts on another user's task.
var ErrForbidden = errors.New("task belongs to another user")

// maxUpdateAttempts bounds the optimistic-concurrency retry loop.
const maxUpdateAttempts = 5

// errUnchanged lets a mutation skip the write when nothing changed.
var errUnchanged = errors.New("unchanged")

// CreateTaskOptions configures task creation.
type CreateTaskOptions struct {
	UserID string
	Title  string
	// Context holds the loosely-typed creation context (category, subtasks,
	// flags). Missing hour_of_day and day_of_week are taken from the clock.
	Context map[string]any
}

// CreateResult is returned by Create.
type CreateResult struct {
	Task       *task.Task                `json:"task"`
	Prediction estimate.PredictionResult `json:"prediction"`
}

// TimerResult is the caller-facing view of a timer transition.
type TimerResult struct {
	TaskID           string     `json:"task_id"`
	Phase            task.Phase `json:"phase"`
	TimerStartedAt   *time.Time `json:"timer_started_at"`
	IsActive         bool       `json:"is_active"`
	TimeSpentSeconds int64      `json:"time_spent_seconds"`
	TimeSpentMinutes float64    `json:"time_spent_minutes"`
	// Set by Pause only.
	ElapsedSecondsAdded *int64   `json:"elapsed_seconds_added,omitempty"`
	ElapsedMinutesAdded *float64 `json:"elapsed_minutes_added,omitempty"`
}

// CompleteOptions configures completion.
type CompleteOptions struct {
	TaskID string
	UserID string
	// ActualMinutes overrides the accumulated timer. When set it must be
	// finite and > 0.
	ActualMinutes *float64
}

// CompleteResult is returned by Complete.
type CompleteResult struct {
	Task             *task.Task           `json:"task"`
	ActualMinutes    float64              `json:"actual_minutes"`
	AlreadyCompleted bool                 `json:"already_completed"`
	LearnStatus      estimate.LearnStatus `json:"learn_status,omitempty"`
	SampleCount      int64                `json:"sample_count"`
	// ModelSaveError is set when the model learned but could not be persisted.
	ModelSaveError string `json:"model_save_error,omitempty"`
}

// TaskApp provides task lifecycle operations.
type TaskApp struct {
	ctx *Context
}

// NewTaskApp creates a new task application service.
func NewTaskApp(ctx *Context) *TaskApp {
	return &TaskApp{ctx: ctx}
}

// CreationContext fills hour_of_day and day_of_week (0 = Monday) from now
// when raw does not carry them.
func CreationContext(raw map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		out[k] = v
	}
	if _, ok := out[estimate.KeyHourOfDay]; !ok {
		out[estimate.KeyHourOfDay] = now.Hour()
	}
	if _, ok := out[estimate.KeyDayOfWeek]; !ok {
		out[estimate.KeyDayOfWeek] = (int(now.Weekday()) + 6) % 7
	}
	return out
}

// Create stores a new task together with the estimate made from its
// creation-time context.
func (a *TaskApp) Create(ctx context.Context, opts CreateTaskOptions) (*CreateResult, error) {
	now := a.ctx.now()
	fv := estimate.Normalize(CreationContext(opts.Context, now))

	t := &task.Task{
		UserID:    opts.UserID,
		Title:     opts.Title,
		Features:  fv,
		CreatedAt: now.UTC(),
	}

	var pred estimate.PredictionResult
	if a.ctx.Estimator != nil {
		pred = a.ctx.Estimator.Predict(ctx, fv)
		t.Estimate = task.EstimateFrom(pred)
	}

	if err := a.ctx.Tasks.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	slog.DebugContext(ctx, "task created", "task_id", t.ID, "category", fv.CategoryID.String(), "reason", pred.Reason)
	return &CreateResult{Task: t, Prediction: pred}, nil
}

// Resolve expands a unique id prefix to a full task id.
func (a *TaskApp) Resolve(ctx context.Context, idOrPrefix string) (string, error) {
	return util.ResolveTaskID(ctx, a.ctx.Tasks, idOrPrefix)
}

// Get returns a task after the ownership check.
func (a *TaskApp) Get(ctx context.Context, id, userID string) (*task.Task, error) {
	t, err := a.ctx.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(t, userID); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the user's tasks, incomplete first.
func (a *TaskApp) List(ctx context.Context, filter memory.TaskFilter) ([]task.Task, error) {
	return a.ctx.Tasks.ListTasks(ctx, filter)
}

// Start begins timing. Starting a running timer keeps its start time.
func (a *TaskApp) Start(ctx context.Context, id, userID string) (*TimerResult, error) {
	t, err := a.mutate(ctx, id, userID, func(t *task.Task, now time.Time) error {
		if t.Timer.Phase() == task.PhaseRunning {
			return errUnchanged
		}
		next, err := task.Start(t.Timer, now)
		if err != nil {
			return err
		}
		t.Timer = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return timerResult(t), nil
}

// Resume continues timing after a pause.
func (a *TaskApp) Resume(ctx context.Context, id, userID string) (*TimerResult, error) {
	t, err := a.mutate(ctx, id, userID, func(t *task.Task, now time.Time) error {
		if t.Timer.Phase() == task.PhaseRunning {
			return errUnchanged
		}
		next, err := task.Resume(t.Timer, now)
		if err != nil {
			return err
		}
		t.Timer = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return timerResult(t), nil
}

// Pause folds the running interval into the total. Pausing a timer that is
// not running succeeds and adds nothing.
func (a *TaskApp) Pause(ctx context.Context, id, userID string) (*TimerResult, error) {
	var elapsed int64
	t, err := a.mutate(ctx, id, userID, func(t *task.Task, now time.Time) error {
		elapsed = 0
		if t.Timer.Completed {
			return errUnchanged
		}
		if !t.Timer.IsActive && t.Timer.TimerStartedAt == nil {
			return errUnchanged
		}
		t.Timer, elapsed = task.Pause(t.Timer, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := timerResult(t)
	minutes := math.Round(float64(elapsed)/60*100) / 100
	res.ElapsedSecondsAdded = &elapsed
	res.ElapsedMinutesAdded = &minutes
	return res, nil
}

// Complete finalizes the task and, on the first completion only, trains the
// model on the task's creation-time features.
func (a *TaskApp) Complete(ctx context.Context, opts CompleteOptions) (*CompleteResult, error) {
	if err := task.ValidateActualMinutes(opts.ActualMinutes); err != nil {
		return nil, err
	}

	var completion task.Completion
	t, err := a.mutate(ctx, opts.TaskID, opts.UserID, func(t *task.Task, now time.Time) error {
		completion = task.Complete(t.Timer, now, opts.ActualMinutes)
		if completion.AlreadyCompleted {
			return errUnchanged
		}
		t.Timer = completion.State
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &CompleteResult{
		Task:             t,
		ActualMinutes:    completion.ActualMinutes,
		AlreadyCompleted: completion.AlreadyCompleted,
	}
	if completion.AlreadyCompleted {
		a.restoreLearnResult(ctx, res)
		return res, nil
	}
	if a.ctx.Estimator == nil {
		return res, nil
	}

	actual := completion.ActualMinutes
	outcome, saveErr := a.ctx.Estimator.Learn(ctx, t.Features, &actual)
	res.LearnStatus = outcome.Status
	res.SampleCount = outcome.SampleCount
	if saveErr != nil {
		res.ModelSaveError = saveErr.Error()
	}

	event := &task.TrainingEvent{
		TaskID:            t.ID,
		UserID:            t.UserID,
		Features:          t.Features,
		ActualMinutes:     actual,
		LearnStatus:       outcome.Status,
		SampleCountAfter:  outcome.SampleCount,
		ErrorTermEstimate: outcome.Estimate,
		CreatedAt:         a.ctx.now().UTC(),
	}
	if t.Estimate != nil {
		event.EstimatedMinutes = t.Estimate.PredictedMinutes
	}
	if err := a.ctx.Tasks.InsertTrainingEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to record training event", "task_id", t.ID, "error", err)
	}

	a.ctx.track(telemetry.EventTaskCompleted, telemetry.Properties{
		"actual":       telemetry.Bucket(actual),
		"had_estimate": t.Estimate != nil && t.Estimate.PredictedMinutes != nil,
		"learn_status": string(outcome.Status),
	})
	return res, nil
}

// restoreLearnResult fills a repeated completion from the training event
// written by the first one, so both calls report the same outcome.
func (a *TaskApp) restoreLearnResult(ctx context.Context, res *CompleteResult) {
	e, err := a.ctx.Tasks.TrainingEventForTask(ctx, res.Task.ID)
	if err != nil {
		if !errors.Is(err, memory.ErrEventNotFound) {
			slog.WarnContext(ctx, "failed to read training event", "task_id", res.Task.ID, "error", err)
		}
		return
	}
	res.LearnStatus = e.LearnStatus
	res.SampleCount = e.SampleCountAfter
}

// Delete removes a task and its training events. The model keeps what it
// already learned from them.
func (a *TaskApp) Delete(ctx context.Context, id, userID string) error {
	if _, err := a.Get(ctx, id, userID); err != nil {
		return err
	}
	return a.ctx.Tasks.DeleteTask(ctx, id)
}

// mutate runs fn against the latest stored task and writes the timer back
// with a version check, re-reading and retrying on conflict. fn returning
// errUnchanged skips the write.
func (a *TaskApp) mutate(ctx context.Context, id, userID string, fn func(t *task.Task, now time.Time) error) (*task.Task, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		t, err := a.Get(ctx, id, userID)
		if err != nil {
			return nil, err
		}

		now := a.ctx.now().UTC()
		err = fn(t, now)
		if errors.Is(err, errUnchanged) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}

		err = a.ctx.Tasks.UpdateTimer(ctx, t, now)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, memory.ErrVersionConflict) {
			return nil, err
		}
		slog.DebugContext(ctx, "timer update conflict, retrying", "task_id", id, "attempt", attempt)
	}
	return nil, fmt.Errorf("update task %s after %d attempts: %w", id, maxUpdateAttempts, memory.ErrVersionConflict)
}

func checkOwner(t *task.Task, userID string) error {
	if userID != "" && t.UserID != "" && t.UserID != userID {
		return fmt.Errorf("%w: %s", ErrForbidden, t.ID)
	}
	return nil
}

func timerResult(t *task.Task) *TimerResult {
	return &TimerResult{
		TaskID:           t.ID,
		Phase:            t.Timer.Phase(),
		TimerStartedAt:   t.Timer.TimerStartedAt,
		IsActive:         t.Timer.IsActive,
		TimeSpentSeconds: t.Timer.TimeSpentSeconds,
		TimeSpentMinutes: t.Timer.TimeSpentMinutes(),
	}
}
