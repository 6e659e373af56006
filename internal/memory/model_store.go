package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
)

// === Model snapshots ===

// SnapshotTable stores the model state in the singleton model_snapshots row.
type SnapshotTable struct {
	store *SQLiteStore
}

// Snapshots returns the model snapshot view of the store.
func (s *SQLiteStore) Snapshots() *SnapshotTable {
	return &SnapshotTable{store: s}
}

// Load returns the persisted state or estimate.ErrNoSnapshot.
func (t *SnapshotTable) Load(ctx context.Context) (*estimate.ModelState, error) {
	var payload string
	err := t.store.db.QueryRowContext(ctx, `SELECT payload FROM model_snapshots WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, estimate.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query model snapshot: %w", err)
	}

	var st estimate.ModelState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("decode model snapshot: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("validate model snapshot: %w", err)
	}
	return &st, nil
}

// Save replaces the stored state in one statement, so readers never see a
// partially written snapshot.
func (t *SnapshotTable) Save(ctx context.Context, st *estimate.ModelState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("refuse to save model snapshot: %w", err)
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode model snapshot: %w", err)
	}

	_, err = t.store.db.ExecContext(ctx, `
		INSERT INTO model_snapshots (id, format_version, payload, sample_count, running_mae, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			format_version = excluded.format_version,
			payload = excluded.payload,
			sample_count = excluded.sample_count,
			running_mae = excluded.running_mae,
			updated_at = excluded.updated_at
	`, st.FormatVersion, string(payload), st.SampleCount, st.RunningMAE.Value(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save model snapshot: %w", err)
	}
	return nil
}

// Location describes where snapshots are kept.
func (t *SnapshotTable) Location() string {
	if t.store.basePath == ":memory:" {
		return "sqlite::memory:"
	}
	return "sqlite:" + t.store.basePath + "/" + DatabaseFile + "#model_snapshots"
}

// === Training events ===

// InsertTrainingEvent appends one completion record and sets e.ID.
func (s *SQLiteStore) InsertTrainingEvent(ctx context.Context, e *task.TrainingEvent) error {
	if e.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	features, err := json.Marshal(e.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO training_events (
			task_id, user_id, features, actual_minutes, estimated_minutes,
			learn_status, sample_count_after, error_term_estimate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TaskID, e.UserID, string(features), e.ActualMinutes, nullFloat(e.EstimatedMinutes),
		string(e.LearnStatus), e.SampleCountAfter, e.ErrorTermEstimate, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert training event for %s: %w", e.TaskID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

const trainingEventColumns = `id, task_id, user_id, features, actual_minutes, estimated_minutes,
       learn_status, sample_count_after, error_term_estimate, created_at`

func scanTrainingEvent(row taskRowScanner) (task.TrainingEvent, error) {
	var e task.TrainingEvent
	var features, status, createdAt string
	var estimated sql.NullFloat64
	if err := row.Scan(&e.ID, &e.TaskID, &e.UserID, &features, &e.ActualMinutes, &estimated,
		&status, &e.SampleCountAfter, &e.ErrorTermEstimate, &createdAt); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(features), &e.Features); err != nil {
		return e, fmt.Errorf("decode features of event %d: %w", e.ID, err)
	}
	e.Features = e.Features.Sanitize()
	e.EstimatedMinutes = parseNullFloat(estimated)
	e.LearnStatus = estimate.LearnStatus(status)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// TrainingEventForTask returns the latest event recorded for taskID, or
// ErrEventNotFound.
func (s *SQLiteStore) TrainingEventForTask(ctx context.Context, taskID string) (*task.TrainingEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trainingEventColumns+` FROM training_events
		WHERE task_id = ? ORDER BY id DESC LIMIT 1`, taskID)
	e, err := scanTrainingEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("query training event: %w", err)
	}
	return &e, nil
}

// ListTrainingEvents returns events in insertion order. limit <= 0 means all.
func (s *SQLiteStore) ListTrainingEvents(ctx context.Context, limit int) ([]task.TrainingEvent, error) {
	q := `SELECT ` + trainingEventColumns + ` FROM training_events ORDER BY id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query training events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []task.TrainingEvent
	for rows.Next() {
		e, err := scanTrainingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training event: %w", err)
		}
		events = append(events, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list training events: %w", err)
	}
	return events, nil
}

// CountTrainingEvents returns the number of stored events.
func (s *SQLiteStore) CountTrainingEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count training events: %w", err)
	}
	return n, nil
}
