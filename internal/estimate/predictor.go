package estimate

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Learning constants.
const (
	LearningRate = 0.01
	// ColdStartEstimate is the error-bookkeeping estimate used when the model
	// cannot produce one.
	ColdStartEstimate = 45.0
	gradientClip      = 1e3
)

// PredictionResult is what callers see. PredictedMinutes is set only when
// Reason is ReasonModelPrediction.
type PredictionResult struct {
	PredictedMinutes *float64 `json:"predicted_minutes"`
	Confidence       float64  `json:"confidence"`
	Reason           Reason   `json:"reason"`
	// Cause is the internal failure behind a ReasonNoEstimate result.
	Cause error `json:"-"`
}

// LearnStatus classifies the result of a Learn call.
type LearnStatus string

const (
	LearnApplied             LearnStatus = "applied"
	LearnSkippedInvalidLabel LearnStatus = "skipped_invalid_label"
	LearnNumericFailure      LearnStatus = "numeric_failure"
)

// LearnOutcome reports what Learn did.
type LearnOutcome struct {
	Status LearnStatus
	// Label is the (floored) label that was learned.
	Label float64
	// Estimate is the prediction used for error bookkeeping.
	Estimate    float64
	SampleCount int64
	Err         error
}

// Applied reports whether the model parameters changed.
func (o LearnOutcome) Applied() bool { return o.Status == LearnApplied }

// Predictor is an online linear regression model with a confidence gate.
// Predict is lock-free; Learn calls are serialized internally and publish a
// new immutable state on success.
type Predictor struct {
	state atomic.Pointer[ModelState]
	gate  atomic.Pointer[Gate]
	mu    sync.Mutex
	now   func() time.Time
}

// NewPredictor wraps a state (nil means untrained) with the given gate.
func NewPredictor(state *ModelState, gate Gate) *Predictor {
	if state == nil {
		state = NewModelState()
	}
	p := &Predictor{now: time.Now}
	p.state.Store(state.Clone())
	p.gate.Store(&gate)
	return p
}

// Gate returns the active gate.
func (p *Predictor) Gate() Gate { return *p.gate.Load() }

// SetGate swaps the gate. Learned state is untouched.
func (p *Predictor) SetGate(g Gate) error {
	if err := g.Validate(); err != nil {
		return err
	}
	p.gate.Store(&g)
	return nil
}

// Snapshot returns a deep copy of the current state for persistence.
func (p *Predictor) Snapshot() *ModelState { return p.state.Load().Clone() }

// SampleCount returns the number of successful updates.
func (p *Predictor) SampleCount() int64 { return p.state.Load().SampleCount }

// Predict evaluates the model and applies the gate. It never fails; internal
// problems surface as ReasonNoEstimate with Cause set.
func (p *Predictor) Predict(fv FeatureVector) PredictionResult {
	st := p.state.Load()
	g := p.Gate()

	raw, err := st.evaluate(fv.Sanitize())
	if err != nil && !errors.Is(err, ErrUntrained) {
		return PredictionResult{Confidence: 0, Reason: ReasonNoEstimate, Cause: err}
	}
	yHat := g.Floor(raw)
	confidence := g.Confidence(yHat, g.ErrorTerm(st.RunningMAE.Value(), st.SampleCount))
	return g.Apply(yHat, confidence, st.SampleCount)
}

// Learn updates the model toward actualMinutes. Invalid labels and numeric
// failures leave the state unchanged.
func (p *Predictor) Learn(fv FeatureVector, actualMinutes *float64) LearnOutcome {
	if actualMinutes == nil || math.IsNaN(*actualMinutes) || math.IsInf(*actualMinutes, 0) || *actualMinutes <= 0 {
		return LearnOutcome{Status: LearnSkippedInvalidLabel, SampleCount: p.SampleCount()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	g := p.Gate()
	fv = fv.Sanitize()
	label := g.Floor(*actualMinutes)
	current := p.state.Load()

	estimate, err := current.evaluate(fv)
	if err != nil {
		estimate = ColdStartEstimate
	}
	estimate = g.Floor(estimate)

	next := current.Clone()
	next.RunningMAE.Update(label, estimate)

	if err := next.step(fv, label); err != nil {
		return LearnOutcome{Status: LearnNumericFailure, Label: label, Estimate: estimate, SampleCount: current.SampleCount, Err: err}
	}
	next.SampleCount++
	next.UpdatedAt = p.now().UTC()
	p.state.Store(next)

	return LearnOutcome{Status: LearnApplied, Label: label, Estimate: estimate, SampleCount: next.SampleCount}
}

// step performs one SGD update in place. On error the receiver must be discarded.
func (s *ModelState) step(fv FeatureVector, label float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sgd update panicked: %v", r)
		}
	}()
	if err := s.Validate(); err != nil {
		return err
	}

	x := fv.encode()
	s.InputScaler.update(x)
	s.TargetScaler.update([]float64{label})

	z := s.InputScaler.transform(x)
	target := (label - s.TargetScaler.Mean[0]) / s.targetStd()

	grad := 2 * (s.linear(z) - target)
	grad = math.Max(-gradientClip, math.Min(gradientClip, grad))
	for i := range s.Weights {
		s.Weights[i] -= LearningRate * grad * z[i]
	}
	s.Intercept -= LearningRate * grad

	if !s.finite() {
		return ErrNonFinite
	}
	return nil
}
