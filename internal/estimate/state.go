package estimate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// FormatVersion is the current version of the persisted ModelState layout.
const FormatVersion = 1

var (
	// ErrUntrained is reported when the model has not seen a label yet.
	ErrUntrained = errors.New("model has no training data")
	// ErrNonFinite is reported when evaluation or an update produced NaN/Inf.
	ErrNonFinite = errors.New("non-finite model output")
	// ErrStateMismatch is reported when a state's dimensions do not match the feature schema.
	ErrStateMismatch = errors.New("model state does not match feature schema")
	// ErrNoSnapshot is returned by snapshot stores that hold no state yet.
	ErrNoSnapshot = errors.New("no model snapshot")
)

// Scaler holds running mean/variance statistics (Welford's algorithm).
type Scaler struct {
	Count int64     `json:"count" yaml:"count"`
	Mean  []float64 `json:"mean" yaml:"mean"`
	M2    []float64 `json:"m2" yaml:"m2"`
}

func newScaler(dim int) Scaler {
	return Scaler{Mean: make([]float64, dim), M2: make([]float64, dim)}
}

func (s *Scaler) update(x []float64) {
	s.Count++
	n := float64(s.Count)
	for i, v := range x {
		delta := v - s.Mean[i]
		s.Mean[i] += delta / n
		s.M2[i] += delta * (v - s.Mean[i])
	}
}

// Std returns the population standard deviation of column i.
func (s Scaler) Std(i int) float64 {
	if s.Count == 0 || s.M2[i] <= 0 {
		return 0
	}
	return math.Sqrt(s.M2[i] / float64(s.Count))
}

// transform standardizes x. Columns without variance map to 0.
func (s Scaler) transform(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		std := s.Std(i)
		if std == 0 {
			continue
		}
		z[i] = (v - s.Mean[i]) / std
	}
	return z
}

func (s Scaler) clone() Scaler {
	out := Scaler{Count: s.Count, Mean: make([]float64, len(s.Mean)), M2: make([]float64, len(s.M2))}
	copy(out.Mean, s.Mean)
	copy(out.M2, s.M2)
	return out
}

// RunningMAE is a cumulative mean absolute error.
type RunningMAE struct {
	Sum   float64 `json:"sum" yaml:"sum"`
	Count int64   `json:"count" yaml:"count"`
}

// Update records one (actual, predicted) pair.
func (m *RunningMAE) Update(actual, predicted float64) {
	m.Sum += math.Abs(actual - predicted)
	m.Count++
}

// Value returns the current MAE, or 0 with no observations.
func (m RunningMAE) Value() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// ModelState is the full learned state of the predictor. Instances held by a
// Predictor are never mutated in place.
type ModelState struct {
	FormatVersion int        `json:"format_version" yaml:"format_version"`
	InputScaler   Scaler     `json:"input_scaler" yaml:"input_scaler"`
	TargetScaler  Scaler     `json:"target_scaler" yaml:"target_scaler"`
	Weights       []float64  `json:"weights" yaml:"weights"`
	Intercept     float64    `json:"intercept" yaml:"intercept"`
	RunningMAE    RunningMAE `json:"running_mae" yaml:"running_mae"`
	SampleCount   int64      `json:"sample_count" yaml:"sample_count"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"updated_at"`
}

// NewModelState returns an untrained state sized for the feature schema.
func NewModelState() *ModelState {
	return &ModelState{
		FormatVersion: FormatVersion,
		InputScaler:   newScaler(numFeatures),
		TargetScaler:  newScaler(1),
		Weights:       make([]float64, numFeatures),
	}
}

// Validate checks that a (typically loaded) state fits the current schema.
func (s *ModelState) Validate() error {
	if s == nil {
		return fmt.Errorf("nil state: %w", ErrStateMismatch)
	}
	if s.FormatVersion != FormatVersion {
		return fmt.Errorf("format version %d (want %d): %w", s.FormatVersion, FormatVersion, ErrStateMismatch)
	}
	if len(s.Weights) != numFeatures || len(s.InputScaler.Mean) != numFeatures || len(s.InputScaler.M2) != numFeatures {
		return fmt.Errorf("input width %d (want %d): %w", len(s.Weights), numFeatures, ErrStateMismatch)
	}
	if len(s.TargetScaler.Mean) != 1 || len(s.TargetScaler.M2) != 1 {
		return fmt.Errorf("target scaler width %d: %w", len(s.TargetScaler.Mean), ErrStateMismatch)
	}
	if s.SampleCount < 0 || s.RunningMAE.Count < 0 || s.RunningMAE.Sum < 0 {
		return fmt.Errorf("negative counters: %w", ErrStateMismatch)
	}
	return nil
}

// Clone returns a deep copy.
func (s *ModelState) Clone() *ModelState {
	out := *s
	out.InputScaler = s.InputScaler.clone()
	out.TargetScaler = s.TargetScaler.clone()
	out.Weights = make([]float64, len(s.Weights))
	copy(out.Weights, s.Weights)
	return &out
}

// targetStd is floored at 1 minute so early updates stay well-conditioned.
func (s *ModelState) targetStd() float64 {
	return math.Max(s.TargetScaler.Std(0), 1.0)
}

// evaluate returns the raw (unfloored) estimate in minutes.
// An untrained model yields 0 together with ErrUntrained.
func (s *ModelState) evaluate(fv FeatureVector) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if s.TargetScaler.Count == 0 {
		return 0, ErrUntrained
	}
	z := s.InputScaler.transform(fv.encode())
	y := s.TargetScaler.Mean[0] + s.targetStd()*s.linear(z)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, ErrNonFinite
	}
	return y, nil
}

func (s *ModelState) linear(z []float64) float64 {
	out := s.Intercept
	for i, w := range s.Weights {
		out += w * z[i]
	}
	return out
}

func (s *ModelState) finite() bool {
	if math.IsNaN(s.Intercept) || math.IsInf(s.Intercept, 0) {
		return false
	}
	for _, w := range s.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
	}
	for _, v := range append(append([]float64{}, s.InputScaler.Mean...), s.TargetScaler.Mean...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
