package server

import (
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
)

// PredictRequest is the flat payload for POST /api/predict: category,
// hour_of_day, day_of_week, estimated_subtasks, is_vague and
// has_dependencies. Malformed values fall back to defaults.
type PredictRequest map[string]any

// PredictResponse is {predicted_minutes, confidence, reason} with the
// normalized features alongside.
type PredictResponse struct {
	estimate.PredictionResult
	Features estimate.FeatureVector `json:"features"`
}

// CreateTaskRequest is the payload for POST /api/tasks.
type CreateTaskRequest struct {
	UserID  string         `json:"user_id" validate:"max=128"`
	Title   string         `json:"title" validate:"required,max=255"`
	Context map[string]any `json:"context"`
}

// TimerRequest is the optional payload for start, pause and resume.
type TimerRequest struct {
	UserID string `json:"user_id" validate:"max=128"`
}

// CompleteRequest is the payload for POST /api/tasks/{id}/complete.
type CompleteRequest struct {
	UserID        string   `json:"user_id" validate:"max=128"`
	ActualMinutes *float64 `json:"actual_minutes" validate:"omitempty,gt=0"`
}

// TaskListResponse wraps GET /api/tasks.
type TaskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
