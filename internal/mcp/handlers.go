package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/memory"
)

// Handler serves the tools against one application context.
type Handler struct {
	appCtx *app.Context
	tasks  *app.TaskApp
}

// NewHandler creates a tool handler.
func NewHandler(appCtx *app.Context) *Handler {
	return &Handler{appCtx: appCtx, tasks: app.NewTaskApp(appCtx)}
}

func (h *Handler) now() time.Time {
	if h.appCtx.Now != nil {
		return h.appCtx.Now()
	}
	return time.Now()
}

// HandlePredict answers predict_task_time. Malformed context never fails.
func (h *Handler) HandlePredict(ctx context.Context, params PredictParams) *ToolResult {
	if h.appCtx.Estimator == nil {
		return &ToolResult{Error: "estimator not available"}
	}
	raw := params.Raw()
	if params.UseClock {
		raw = app.CreationContext(raw, h.now())
	}
	fv, res := h.appCtx.Estimator.PredictRaw(ctx, raw)
	content, err := FormatPredictionJSON(fv, res)
	if err != nil {
		return &ToolResult{Error: err.Error()}
	}
	return &ToolResult{Content: content}
}

// HandleTimerTool routes task_timer actions.
func (h *Handler) HandleTimerTool(ctx context.Context, params TimerToolParams) *ToolResult {
	if !params.Action.IsValid() {
		names := make([]string, len(ValidTimerActions))
		for i, a := range ValidTimerActions {
			names[i] = string(a)
		}
		return &ToolResult{
			Action:  string(params.Action),
			Error:   fmt.Sprintf("invalid action %q, must be one of: %s", params.Action, strings.Join(names, ", ")),
			Content: FormatValidationError("action", "must be one of: "+strings.Join(names, ", ")),
		}
	}

	switch params.Action {
	case TimerActionCreate:
		return h.create(ctx, params)
	case TimerActionList:
		return h.list(ctx, params)
	}

	if strings.TrimSpace(params.TaskID) == "" {
		return &ToolResult{
			Action:  string(params.Action),
			Error:   fmt.Sprintf("task_id is required for %s action", params.Action),
			Content: FormatValidationError("task_id", "required for "+string(params.Action)),
		}
	}
	id, err := h.tasks.Resolve(ctx, strings.TrimSpace(params.TaskID))
	if err != nil {
		return failed(params.Action, err)
	}

	switch params.Action {
	case TimerActionStart, TimerActionResume, TimerActionPause:
		fn := h.tasks.Start
		switch params.Action {
		case TimerActionResume:
			fn = h.tasks.Resume
		case TimerActionPause:
			fn = h.tasks.Pause
		}
		res, err := fn(ctx, id, params.UserID)
		if err != nil {
			return failed(params.Action, err)
		}
		return &ToolResult{Action: string(params.Action), Content: FormatTimer(params.Action, res)}

	case TimerActionComplete:
		res, err := h.tasks.Complete(ctx, app.CompleteOptions{TaskID: id, UserID: params.UserID, ActualMinutes: params.ActualMinutes})
		if err != nil {
			return failed(params.Action, err)
		}
		return &ToolResult{Action: string(params.Action), Content: FormatCompletion(res)}

	default: // show
		t, err := h.tasks.Get(ctx, id, params.UserID)
		if err != nil {
			return failed(params.Action, err)
		}
		return &ToolResult{Action: string(params.Action), Content: FormatTask(t, h.now())}
	}
}

func (h *Handler) create(ctx context.Context, params TimerToolParams) *ToolResult {
	if strings.TrimSpace(params.Title) == "" {
		return &ToolResult{
			Action:  string(params.Action),
			Error:   "title is required for create action",
			Content: FormatValidationError("title", "required for create"),
		}
	}
	res, err := h.tasks.Create(ctx, app.CreateTaskOptions{UserID: params.UserID, Title: params.Title, Context: params.Context})
	if err != nil {
		return failed(params.Action, err)
	}
	content := FormatTask(res.Task, h.now()) + "\n" + FormatPrediction(res.Task.Features, res.Prediction)
	return &ToolResult{Action: string(params.Action), Content: content}
}

func (h *Handler) list(ctx context.Context, params TimerToolParams) *ToolResult {
	tasks, err := h.tasks.List(ctx, memory.TaskFilter{UserID: params.UserID, IncludeCompleted: params.IncludeCompleted})
	if err != nil {
		return failed(params.Action, err)
	}
	return &ToolResult{Action: string(params.Action), Content: FormatTaskList(tasks, h.now())}
}

func failed(action TimerAction, err error) *ToolResult {
	return &ToolResult{Action: string(action), Error: err.Error(), Content: FormatError(err.Error())}
}
