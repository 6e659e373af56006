package mcp

import "github.com/josephgoksu/TaskPace/internal/estimate"

// PredictParams defines the parameters for the predict_task_time tool.
// Missing or out-of-range values fall back to defaults.
type PredictParams struct {
	Category          string `json:"category,omitempty"`
	HourOfDay         *int   `json:"hour_of_day,omitempty"`
	DayOfWeek         *int   `json:"day_of_week,omitempty"`
	EstimatedSubtasks *int   `json:"estimated_subtasks,omitempty"`
	IsVague           *bool  `json:"is_vague,omitempty"`
	HasDependencies   *bool  `json:"has_dependencies,omitempty"`

	// UseClock fills missing hour_of_day and day_of_week from the server clock.
	UseClock bool `json:"use_clock,omitempty"`
}

// Raw returns the set fields keyed the way estimate.Normalize expects.
func (p PredictParams) Raw() map[string]any {
	raw := make(map[string]any, 6)
	if p.Category != "" {
		raw[estimate.KeyCategory] = p.Category
	}
	if p.HourOfDay != nil {
		raw[estimate.KeyHourOfDay] = *p.HourOfDay
	}
	if p.DayOfWeek != nil {
		raw[estimate.KeyDayOfWeek] = *p.DayOfWeek
	}
	if p.EstimatedSubtasks != nil {
		raw[estimate.KeyEstimatedSubtasks] = *p.EstimatedSubtasks
	}
	if p.IsVague != nil {
		raw[estimate.KeyIsVague] = *p.IsVague
	}
	if p.HasDependencies != nil {
		raw[estimate.KeyHasDependencies] = *p.HasDependencies
	}
	return raw
}

// PredictResult is the JSON body of a predict_task_time answer: the gated
// prediction with the normalized features next to it.
type PredictResult struct {
	estimate.PredictionResult
	Features estimate.FeatureVector `json:"features"`
}

// TimerAction is an operation of the task_timer tool.
type TimerAction string

const (
	TimerActionCreate   TimerAction = "create"
	TimerActionStart    TimerAction = "start"
	TimerActionPause    TimerAction = "pause"
	TimerActionResume   TimerAction = "resume"
	TimerActionComplete TimerAction = "complete"
	TimerActionShow     TimerAction = "show"
	TimerActionList     TimerAction = "list"
)

// ValidTimerActions lists every action in display order.
var ValidTimerActions = []TimerAction{
	TimerActionCreate,
	TimerActionStart,
	TimerActionPause,
	TimerActionResume,
	TimerActionComplete,
	TimerActionShow,
	TimerActionList,
}

// IsValid reports whether a is a known action.
func (a TimerAction) IsValid() bool {
	for _, v := range ValidTimerActions {
		if a == v {
			return true
		}
	}
	return false
}

// TimerToolParams defines the parameters for the task_timer tool.
type TimerToolParams struct {
	// Action specifies which operation to perform.
	Action TimerAction `json:"action"`

	// TaskID is the task id or a unique prefix.
	// Required for: start, pause, resume, complete, show
	TaskID string `json:"task_id,omitempty"`

	// UserID scopes listing and enables the ownership check.
	UserID string `json:"user_id,omitempty"`

	// Title of the new task.
	// Required for: create
	Title string `json:"title,omitempty"`

	// Context is the creation context.
	// Optional for: create
	Context map[string]any `json:"context,omitempty"`

	// ActualMinutes overrides the timer; it must be > 0 when set.
	// Optional for: complete
	ActualMinutes *float64 `json:"actual_minutes,omitempty"`

	// IncludeCompleted lists completed tasks as well.
	// Optional for: list
	IncludeCompleted bool `json:"include_completed,omitempty"`
}

// ToolResult is the response of a tool handler.
type ToolResult struct {
	Action  string `json:"action,omitempty"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
