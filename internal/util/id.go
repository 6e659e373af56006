// Package util provides shared utility functions.
package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// TaskIDPrefix starts every task id.
	TaskIDPrefix = "task-"
	// TaskIDLength is the full length of a generated task ID (e.g., "task-abcdef12").
	TaskIDLength = 13
	// MaxAmbiguousCandidates is the max number of candidates to show in ambiguous error.
	MaxAmbiguousCandidates = 5
)

// Errors returned by ID resolution functions.
var (
	ErrAmbiguousID = errors.New("ambiguous ID prefix")
	ErrNotFound    = errors.New("not found")
)

// TaskIDResolver finds task IDs by prefix.
type TaskIDResolver interface {
	FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ResolveTaskID resolves a task ID or prefix to a full task ID.
// The "task-" prefix may be omitted. An exact match wins over longer
// candidates; otherwise the prefix must match exactly one task.
func ResolveTaskID(ctx context.Context, resolver TaskIDResolver, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", fmt.Errorf("task ID: %w", ErrNotFound)
	}

	normalized := idOrPrefix
	if !strings.HasPrefix(normalized, TaskIDPrefix) {
		normalized = TaskIDPrefix + normalized
	}

	candidates, err := resolver.FindTaskIDsByPrefix(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("find task IDs: %w", err)
	}

	for _, c := range candidates {
		if c == normalized {
			return c, nil
		}
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("task with prefix %q: %w", normalized, ErrNotFound)
	case 1:
		return candidates[0], nil
	default:
		shown := candidates
		if len(shown) > MaxAmbiguousCandidates {
			shown = shown[:MaxAmbiguousCandidates]
		}
		return "", fmt.Errorf("%w: prefix %q matches %d tasks: %v",
			ErrAmbiguousID, normalized, len(candidates), shown)
	}
}
