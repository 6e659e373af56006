// Package task holds the task record and the timer state machine that
// produces the duration labels the estimator learns from.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/josephgoksu/TaskPace/internal/estimate"
)

// Estimate is the prediction shown to the user when the task was created.
type Estimate struct {
	PredictedMinutes *float64        `json:"predicted_minutes"`
	Confidence       float64         `json:"confidence"`
	Reason           estimate.Reason `json:"reason"`
}

// EstimateFrom copies the exposed fields of a prediction result.
func EstimateFrom(res estimate.PredictionResult) *Estimate {
	return &Estimate{
		PredictedMinutes: res.PredictedMinutes,
		Confidence:       res.Confidence,
		Reason:           res.Reason,
	}
}

// Task is a unit of work with its creation-time context and timer.
type Task struct {
	ID     string `json:"id" validate:"required,startswith=task-"`
	UserID string `json:"user_id,omitempty" validate:"max=128"`
	Title  string `json:"title" validate:"required,max=255"`

	// Features is the context captured at creation. Learning always uses
	// these values, never the completion-time context.
	Features estimate.FeatureVector `json:"features"`
	Estimate *Estimate              `json:"estimate,omitempty"`

	Timer TimerState `json:"timer"`

	// Version increments on every timer update (optimistic concurrency).
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category returns the display name of the task's category.
func (t *Task) Category() string {
	return t.Features.CategoryID.String()
}

var validate = validator.New()

// ErrInvalidTask wraps every validation failure.
var ErrInvalidTask = errors.New("invalid task")

// Validate checks the struct tags and normalizes the feature vector.
func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Features = t.Features.Sanitize()
	if err := validate.Struct(t); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return nil
}

// TrainingEvent records one completion that was fed to the estimator.
type TrainingEvent struct {
	ID                int64                  `json:"id"`
	TaskID            string                 `json:"task_id"`
	UserID            string                 `json:"user_id,omitempty"`
	Features          estimate.FeatureVector `json:"features"`
	ActualMinutes     float64                `json:"actual_minutes"`
	EstimatedMinutes  *float64               `json:"estimated_minutes,omitempty"`
	LearnStatus       estimate.LearnStatus   `json:"learn_status"`
	SampleCountAfter  int64                  `json:"sample_count_after"`
	ErrorTermEstimate float64                `json:"error_term_estimate"`
	CreatedAt         time.Time              `json:"created_at"`
}
