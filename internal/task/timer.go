package task

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrTaskCompleted is returned when a transition is attempted on a completed task.
	ErrTaskCompleted = errors.New("task is already completed")
	// ErrInvalidActualMinutes rejects an explicit duration that is not a
	// finite number greater than zero.
	ErrInvalidActualMinutes = errors.New("actual minutes must be greater than 0")
)

// ValidateActualMinutes accepts nil (use the timer) or a finite value > 0.
func ValidateActualMinutes(m *float64) error {
	if m == nil {
		return nil
	}
	if !(*m > 0) || math.IsInf(*m, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidActualMinutes, *m)
	}
	return nil
}

// Phase is the derived state of a task timer.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhasePaused     Phase = "paused"
	PhaseCompleted  Phase = "completed"
)

// TimerState is the durable timing record of one task.
type TimerState struct {
	TimeSpentSeconds int64      `json:"time_spent_seconds"`
	TimerStartedAt   *time.Time `json:"timer_started_at"`
	IsActive         bool       `json:"is_active"`
	Completed        bool       `json:"completed"`
	ActualMinutes    *float64   `json:"actual_minutes,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Phase derives the state-machine phase from the stored fields.
func (s TimerState) Phase() Phase {
	switch {
	case s.Completed:
		return PhaseCompleted
	case s.IsActive && s.TimerStartedAt != nil:
		return PhaseRunning
	case s.TimeSpentSeconds > 0:
		return PhasePaused
	default:
		return PhaseNotStarted
	}
}

// TimeSpentMinutes reports the accumulated time in minutes.
func (s TimerState) TimeSpentMinutes() float64 {
	return math.Round(float64(s.TimeSpentSeconds)/60*100) / 100
}

// TotalSeconds is the accumulated time plus the open interval, if any.
func (s TimerState) TotalSeconds(now time.Time) int64 {
	return s.TimeSpentSeconds + elapsedSeconds(s, now)
}

// Start begins a timing interval. Starting a running timer keeps the
// original start time.
func Start(s TimerState, now time.Time) (TimerState, error) {
	if s.Completed {
		return s, ErrTaskCompleted
	}
	if s.IsActive && s.TimerStartedAt != nil {
		return s, nil
	}
	started := now.UTC()
	s.TimerStartedAt = &started
	s.IsActive = true
	return s, nil
}

// Resume continues timing after a pause. It has the same preconditions as
// Start and never resets the accumulated total.
func Resume(s TimerState, now time.Time) (TimerState, error) {
	return Start(s, now)
}

// Pause closes the running interval and returns the whole seconds added.
// Pausing a timer that is not running clears the interval fields and adds 0.
func Pause(s TimerState, now time.Time) (TimerState, int64) {
	elapsed := elapsedSeconds(s, now)
	s.TimeSpentSeconds += elapsed
	s.TimerStartedAt = nil
	s.IsActive = false
	return s, elapsed
}

// Completion is the result of a Complete call.
type Completion struct {
	State            TimerState
	ActualMinutes    float64
	AlreadyCompleted bool
}

// Complete finalizes the timer. An explicit actualMinutes (> 0) takes
// precedence over the accumulated time. Completing twice returns the stored
// result with AlreadyCompleted set.
func Complete(s TimerState, now time.Time, actualMinutes *float64) Completion {
	if s.Completed {
		c := Completion{State: s, AlreadyCompleted: true}
		if s.ActualMinutes != nil {
			c.ActualMinutes = *s.ActualMinutes
		}
		return c
	}

	s, _ = Pause(s, now)

	minutes := float64(s.TimeSpentSeconds) / 60
	if actualMinutes != nil && *actualMinutes > 0 && !math.IsInf(*actualMinutes, 0) {
		minutes = *actualMinutes
	}
	completedAt := now.UTC()
	s.Completed = true
	s.ActualMinutes = &minutes
	s.CompletedAt = &completedAt

	return Completion{State: s, ActualMinutes: minutes}
}

func elapsedSeconds(s TimerState, now time.Time) int64 {
	if !s.IsActive || s.TimerStartedAt == nil {
		return 0
	}
	d := now.Sub(*s.TimerStartedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
