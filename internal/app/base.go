// Package app provides the application layer that orchestrates business logic.
// CLI, HTTP and MCP handlers are thin adapters over these types.
package app

import (
	"context"
	"time"

	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/telemetry"
)

// TaskStore is the task persistence the app layer needs.
// *memory.SQLiteStore implements it.
type TaskStore interface {
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, filter memory.TaskFilter) ([]task.Task, error)
	UpdateTimer(ctx context.Context, t *task.Task, now time.Time) error
	DeleteTask(ctx context.Context, id string) error
	FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
	InsertTrainingEvent(ctx context.Context, e *task.TrainingEvent) error
	TrainingEventForTask(ctx context.Context, taskID string) (*task.TrainingEvent, error)
}

// Context holds shared dependencies for all app services.
type Context struct {
	Tasks     TaskStore
	Estimator *Estimator
	Telemetry telemetry.Client
	// Now is the clock used for timer transitions. Defaults to time.Now.
	Now func() time.Time
}

// NewContext creates an app context with a real clock and no telemetry.
func NewContext(tasks TaskStore, est *Estimator) *Context {
	return &Context{
		Tasks:     tasks,
		Estimator: est,
		Telemetry: telemetry.NewNoopClient(),
		Now:       time.Now,
	}
}

func (c *Context) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Context) track(event string, props telemetry.Properties) {
	if c.Telemetry != nil {
		c.Telemetry.Track(event, props)
	}
}
