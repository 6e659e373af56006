package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/util"
)

// NewTaskID returns a short random task id.
func NewTaskID() string {
	return util.TaskIDPrefix + uuid.NewString()[:util.TaskIDLength-len(util.TaskIDPrefix)]
}

// prepareTask sets default values for a task before insertion.
func prepareTask(t *task.Task, now time.Time) {
	if t.ID == "" {
		t.ID = NewTaskID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.Version = 1
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	// UserID restricts the result to one owner when non-empty.
	UserID           string
	IncludeCompleted bool
}

// CreateTask inserts a new task. Missing ids and timestamps are filled in.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *task.Task) error {
	prepareTask(t, time.Now().UTC())
	if err := t.Validate(); err != nil {
		return err
	}

	var (
		predicted  *float64
		confidence float64
		reason     estimate.Reason
	)
	if t.Estimate != nil {
		predicted, confidence, reason = t.Estimate.PredictedMinutes, t.Estimate.Confidence, t.Estimate.Reason
	}
	fv := t.Features
	tm := t.Timer

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, user_id, title,
			category_id, hour_of_day, day_of_week, estimated_subtasks, is_vague, has_dependencies,
			predicted_minutes, confidence, reason,
			time_spent_seconds, timer_started_at, is_active, completed, actual_minutes, completed_at,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Title,
		int(fv.CategoryID), fv.HourOfDay, fv.DayOfWeek, fv.EstimatedSubtasks, boolToInt(fv.IsVague), boolToInt(fv.HasDependencies),
		nullFloat(predicted), confidence, string(reason),
		tm.TimeSpentSeconds, nullTime(tm.TimerStartedAt), boolToInt(tm.IsActive), boolToInt(tm.Completed), nullFloat(tm.ActualMinutes), nullTime(tm.CompletedAt),
		t.Version, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// taskRowScanner abstracts row scanning for reuse between QueryRow and rows.Next().
type taskRowScanner interface {
	Scan(dest ...any) error
}

const taskSelectColumns = `id, user_id, title,
       category_id, hour_of_day, day_of_week, estimated_subtasks, is_vague, has_dependencies,
       predicted_minutes, confidence, reason,
       time_spent_seconds, timer_started_at, is_active, completed, actual_minutes, completed_at,
       version, created_at, updated_at`

// scanTaskRow scans a task row into a Task struct.
func scanTaskRow(row taskRowScanner) (task.Task, error) {
	var t task.Task
	var category, vague, deps, active, completed int
	var predicted, actual sql.NullFloat64
	var confidence float64
	var reason string
	var startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID, &t.UserID, &t.Title,
		&category, &t.Features.HourOfDay, &t.Features.DayOfWeek, &t.Features.EstimatedSubtasks, &vague, &deps,
		&predicted, &confidence, &reason,
		&t.Timer.TimeSpentSeconds, &startedAt, &active, &completed, &actual, &completedAt,
		&t.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return t, err
	}

	t.Features.CategoryID = estimate.Category(category)
	t.Features.IsVague = vague != 0
	t.Features.HasDependencies = deps != 0

	if reason != "" {
		t.Estimate = &task.Estimate{
			PredictedMinutes: parseNullFloat(predicted),
			Confidence:       confidence,
			Reason:           estimate.Reason(reason),
		}
	}

	t.Timer.TimerStartedAt = parseNullTime(startedAt)
	t.Timer.IsActive = active != 0
	t.Timer.Completed = completed != 0
	t.Timer.ActualMinutes = parseNullFloat(actual)
	t.Timer.CompletedAt = parseNullTime(completedAt)

	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskSelectColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return &t, nil
}

// ListTasks returns tasks with incomplete ones first, each group oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]task.Task, error) {
	q := `SELECT ` + taskSelectColumns + ` FROM tasks WHERE 1=1`
	args := []any{}

	if filter.UserID != "" {
		q += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if !filter.IncludeCompleted {
		q += " AND completed = 0"
	}
	q += " ORDER BY completed ASC, created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTimer writes t.Timer if the stored version still equals t.Version.
// On success t.Version is advanced and t.UpdatedAt set to now; a stale
// version yields ErrVersionConflict.
func (s *SQLiteStore) UpdateTimer(ctx context.Context, t *task.Task, now time.Time) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	now = now.UTC()
	tm := t.Timer

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET time_spent_seconds = ?, timer_started_at = ?, is_active = ?, completed = ?,
		    actual_minutes = ?, completed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, tm.TimeSpentSeconds, nullTime(tm.TimerStartedAt), boolToInt(tm.IsActive), boolToInt(tm.Completed),
		nullFloat(tm.ActualMinutes), nullTime(tm.CompletedAt), formatTime(now),
		t.ID, t.Version)
	if err != nil {
		return fmt.Errorf("update timer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timer rows affected: %w", err)
	}
	if affected == 0 {
		var version int64
		err := s.db.QueryRowContext(ctx, `SELECT version FROM tasks WHERE id = ?`, t.ID).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
		}
		if err != nil {
			return fmt.Errorf("read task version: %w", err)
		}
		return fmt.Errorf("%w: %s at version %d (have %d)", ErrVersionConflict, t.ID, version, t.Version)
	}

	t.Version++
	t.UpdatedAt = now
	return nil
}

// DeleteTask removes a task. Its training events cascade with it.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// FindTaskIDsByPrefix returns all task IDs that start with the given prefix.
// Results are ordered by ID for consistent output.
func (s *SQLiteStore) FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks WHERE id LIKE ? ORDER BY id`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("find task IDs by prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return ids, nil
}
