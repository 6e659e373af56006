package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/telemetry"
)

// SnapshotStore persists the full model state. Load returns
// estimate.ErrNoSnapshot when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*estimate.ModelState, error)
	Save(ctx context.Context, st *estimate.ModelState) error
	Location() string
}

// Estimator owns the process's predictor and its persistence. It replaces a
// global model: open it once, share it, and Close it on shutdown.
type Estimator struct {
	predictor *estimate.Predictor
	store     SnapshotStore
	telemetry telemetry.Client

	// mu serializes learn + save.
	mu       sync.Mutex
	dirty    bool
	lastSave time.Time
	saveErr  error
}

// EstimatorOption customizes OpenEstimator.
type EstimatorOption func(*Estimator)

// WithTelemetry sets the telemetry client (default: no-op).
func WithTelemetry(c telemetry.Client) EstimatorOption {
	return func(e *Estimator) {
		if c != nil {
			e.telemetry = c
		}
	}
}

// OpenEstimator loads the latest snapshot, or starts an untrained model when
// none exists. Any other load failure is returned: an unreadable snapshot is
// never silently replaced.
func OpenEstimator(ctx context.Context, store SnapshotStore, gate estimate.Gate, opts ...EstimatorOption) (*Estimator, error) {
	if err := gate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate: %w", err)
	}

	st, err := store.Load(ctx)
	switch {
	case errors.Is(err, estimate.ErrNoSnapshot):
		slog.Info("no model snapshot found, starting untrained", "location", store.Location())
		st = nil
	case err != nil:
		return nil, fmt.Errorf("load model snapshot from %s: %w", store.Location(), err)
	default:
		slog.Debug("model snapshot loaded", "location", store.Location(), "samples", st.SampleCount)
	}

	e := &Estimator{
		predictor: estimate.NewPredictor(st, gate),
		store:     store,
		telemetry: telemetry.NewNoopClient(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Predict returns the gated prediction for fv. It never blocks on learning.
func (e *Estimator) Predict(ctx context.Context, fv estimate.FeatureVector) estimate.PredictionResult {
	res := e.predictor.Predict(fv)
	if res.Cause != nil {
		slog.WarnContext(ctx, "prediction degraded to no_estimate", "error", res.Cause)
	}
	e.telemetry.Track(telemetry.EventPredictionServed, telemetry.Properties{
		"reason":   string(res.Reason),
		"category": fv.CategoryID.String(),
		"samples":  e.predictor.SampleCount(),
	})
	return res
}

// PredictRaw normalizes loosely-typed input and predicts.
func (e *Estimator) PredictRaw(ctx context.Context, raw map[string]any) (estimate.FeatureVector, estimate.PredictionResult) {
	fv := estimate.Normalize(raw)
	return fv, e.Predict(ctx, fv)
}

// Learn feeds one completed duration to the model and persists the new state
// before returning. A persistence failure is returned as an error; the
// in-memory model keeps the update and the next successful save (or Close)
// writes the full history.
func (e *Estimator) Learn(ctx context.Context, fv estimate.FeatureVector, actualMinutes *float64) (estimate.LearnOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := e.predictor.Learn(fv, actualMinutes)
	switch outcome.Status {
	case estimate.LearnApplied:
		e.dirty = true
		e.telemetry.Track(telemetry.EventModelUpdated, telemetry.Properties{
			"samples":  outcome.SampleCount,
			"category": fv.CategoryID.String(),
		})
	case estimate.LearnNumericFailure:
		slog.ErrorContext(ctx, "model update rejected", "error", outcome.Err, "samples", outcome.SampleCount)
	case estimate.LearnSkippedInvalidLabel:
		slog.DebugContext(ctx, "label skipped", "samples", outcome.SampleCount)
	}

	if !e.dirty {
		return outcome, nil
	}
	return outcome, e.saveLocked(ctx)
}

// Flush saves the state if an earlier save failed.
func (e *Estimator) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	return e.saveLocked(ctx)
}

// Close performs the final flush.
func (e *Estimator) Close(ctx context.Context) error {
	if err := e.Flush(ctx); err != nil {
		return fmt.Errorf("final model flush: %w", err)
	}
	return nil
}

func (e *Estimator) saveLocked(ctx context.Context) error {
	if err := e.store.Save(ctx, e.predictor.Snapshot()); err != nil {
		e.saveErr = err
		slog.ErrorContext(ctx, "model snapshot save failed, keeping in-memory state", "location", e.store.Location(), "error", err)
		return fmt.Errorf("save model snapshot: %w", err)
	}
	e.dirty = false
	e.saveErr = nil
	e.lastSave = time.Now().UTC()
	return nil
}

// SetGate swaps the confidence gate without touching learned state.
func (e *Estimator) SetGate(g estimate.Gate) error {
	if err := e.predictor.SetGate(g); err != nil {
		return err
	}
	slog.Info("confidence gate updated",
		"min_training_samples", g.MinTrainingSamples,
		"confidence_threshold", g.ConfidenceThreshold)
	return nil
}

// Gate returns the active gate.
func (e *Estimator) Gate() estimate.Gate {
	return e.predictor.Gate()
}

// Snapshot returns a copy of the current model state.
func (e *Estimator) Snapshot() *estimate.ModelState {
	return e.predictor.Snapshot()
}

// ModelStatus summarizes the model for display.
type ModelStatus struct {
	SampleCount   int64         `json:"sample_count" yaml:"sample_count"`
	RunningMAE    float64       `json:"running_mae" yaml:"running_mae"`
	ErrorTerm     float64       `json:"error_term" yaml:"error_term"`
	Ready         bool          `json:"ready" yaml:"ready"`
	FormatVersion int           `json:"format_version" yaml:"format_version"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Location      string        `json:"location" yaml:"location"`
	Dirty         bool          `json:"dirty" yaml:"dirty"`
	LastSaveError string        `json:"last_save_error,omitempty" yaml:"last_save_error,omitempty"`
	Gate          estimate.Gate `json:"gate" yaml:"gate"`
}

// Status reports the model's current state.
func (e *Estimator) Status() ModelStatus {
	st := e.predictor.Snapshot()
	g := e.predictor.Gate()

	e.mu.Lock()
	dirty, saveErr := e.dirty, e.saveErr
	e.mu.Unlock()

	status := ModelStatus{
		SampleCount:   st.SampleCount,
		RunningMAE:    st.RunningMAE.Value(),
		ErrorTerm:     g.ErrorTerm(st.RunningMAE.Value(), st.SampleCount),
		Ready:         st.SampleCount >= g.MinTrainingSamples,
		FormatVersion: st.FormatVersion,
		Location:      e.store.Location(),
		Dirty:         dirty,
		Gate:          g,
	}
	if !st.UpdatedAt.IsZero() {
		updated := st.UpdatedAt
		status.UpdatedAt = &updated
	}
	if saveErr != nil {
		status.LastSaveError = saveErr.Error()
	}
	return status
}
