package memory

import (
	"context"
	"strings"
	"testing"
)

// TestCheckRowsErr_NilError tests that checkRowsErr returns nil when rows.Err() is nil.
func TestCheckRowsErr_NilError(t *testing.T) {
	store := newTestStore(t)

	rows, err := store.db.Query("SELECT 1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
	}

	if err := checkRowsErr(rows); err != nil {
		t.Errorf("checkRowsErr returned error for successful iteration: %v", err)
	}
}

// TestListTasks_ErrorPropagation tests that a closed database surfaces as an error
// instead of an empty list.
func TestListTasks_ErrorPropagation(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.CreateTask(context.Background(), sampleTask("doomed")); err != nil {
		t.Fatalf("create task: %v", err)
	}
	_ = store.Close()

	tasks, err := store.ListTasks(context.Background(), TaskFilter{})
	if err == nil {
		t.Fatalf("expected error from closed database, got %d tasks", len(tasks))
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Logf("error (acceptable): %v", err)
	}

	if _, err := store.ListTrainingEvents(context.Background(), 0); err == nil {
		t.Error("expected error from ListTrainingEvents on closed database")
	}
}
