// Package memory persists tasks, model snapshots, and training events in SQLite.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the file name of the store inside the data directory.
const DatabaseFile = "taskpace.db"

var (
	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrVersionConflict is returned when a task changed since it was read.
	ErrVersionConflict = errors.New("task was modified concurrently")
	// ErrEventNotFound is returned when a task has no training event.
	ErrEventNotFound = errors.New("training event not found")
)

// SQLiteStore is the SQLite-backed task and model store.
type SQLiteStore struct {
	db       *sql.DB
	basePath string
}

// NewSQLiteStore opens (or creates) the database under basePath.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, DatabaseFile)

		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc/sqlite connections do not share an in-memory database, and a
	// single writer avoids SQLITE_BUSY on the file database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		db:       db,
		basePath: basePath,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,

		-- Creation-time context. Learning reads these, never the completion context.
		category_id INTEGER NOT NULL,
		hour_of_day INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		estimated_subtasks INTEGER NOT NULL,
		is_vague INTEGER NOT NULL DEFAULT 0,
		has_dependencies INTEGER NOT NULL DEFAULT 0,

		-- Estimate shown at creation
		predicted_minutes REAL,
		confidence REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',

		-- Timer
		time_spent_seconds INTEGER NOT NULL DEFAULT 0,
		timer_started_at TEXT,
		is_active INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		actual_minutes REAL,
		completed_at TEXT,

		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, completed, created_at);

	-- Singleton row holding the latest model state
	CREATE TABLE IF NOT EXISTS model_snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		format_version INTEGER NOT NULL,
		payload TEXT NOT NULL,              -- JSON-encoded estimate.ModelState
		sample_count INTEGER NOT NULL,
		running_mae REAL NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS training_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		features TEXT NOT NULL,             -- JSON-encoded estimate.FeatureVector
		actual_minutes REAL NOT NULL,
		estimated_minutes REAL,
		learn_status TEXT NOT NULL,
		sample_count_after INTEGER NOT NULL,
		error_term_estimate REAL NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_training_events_created ON training_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_training_events_task ON training_events(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying handle for callers that need raw access.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// BasePath returns the data directory, or ":memory:".
func (s *SQLiteStore) BasePath() string {
	return s.basePath
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
