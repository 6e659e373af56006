package estimate

import (
	"fmt"
	"math"
)

// Reason explains why a prediction was or was not exposed.
type Reason string

const (
	ReasonModelPrediction          Reason = "model_prediction"
	ReasonNoEstimate               Reason = "no_estimate"
	ReasonInsufficientTrainingData Reason = "insufficient_training_data"
	ReasonLowConfidence            Reason = "low_confidence"
)

// Gate defaults.
const (
	MinTrainingSamples  = 30
	ConfidenceThreshold = 0.7
	MinPredictedMinutes = 5.0
	ErrorPrior          = 20.0
	ErrorPriorSamples   = 20
	ConfidenceFloor     = 15.0
)

// Gate decides whether a raw estimate is trustworthy enough to expose.
// Cold start and low confidence are reported with distinct reasons.
type Gate struct {
	MinTrainingSamples  int64   `json:"min_training_samples" yaml:"minTrainingSamples" mapstructure:"minTrainingSamples"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidenceThreshold" mapstructure:"confidenceThreshold"`
	MinPredictedMinutes float64 `json:"min_predicted_minutes" yaml:"minPredictedMinutes" mapstructure:"minPredictedMinutes"`
	// ErrorPrior replaces the running MAE until more than ErrorPriorSamples
	// samples have been learned.
	ErrorPrior        float64 `json:"error_prior" yaml:"errorPrior" mapstructure:"errorPrior"`
	ErrorPriorSamples int64   `json:"error_prior_samples" yaml:"errorPriorSamples" mapstructure:"errorPriorSamples"`
	// ConfidenceFloor is the minimum denominator of the confidence ratio.
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidenceFloor" mapstructure:"confidenceFloor"`
}

// DefaultGate returns the gate with its standard thresholds.
func DefaultGate() Gate {
	return Gate{
		MinTrainingSamples:  MinTrainingSamples,
		ConfidenceThreshold: ConfidenceThreshold,
		MinPredictedMinutes: MinPredictedMinutes,
		ErrorPrior:          ErrorPrior,
		ErrorPriorSamples:   ErrorPriorSamples,
		ConfidenceFloor:     ConfidenceFloor,
	}
}

// Validate rejects thresholds that would break the result invariants.
func (g Gate) Validate() error {
	switch {
	case g.MinTrainingSamples < 0:
		return fmt.Errorf("minTrainingSamples must be >= 0, got %d", g.MinTrainingSamples)
	case g.ConfidenceThreshold < 0 || g.ConfidenceThreshold > 1 || math.IsNaN(g.ConfidenceThreshold):
		return fmt.Errorf("confidenceThreshold must be in [0,1], got %v", g.ConfidenceThreshold)
	case !(g.MinPredictedMinutes > 0) || math.IsInf(g.MinPredictedMinutes, 0):
		return fmt.Errorf("minPredictedMinutes must be > 0, got %v", g.MinPredictedMinutes)
	case g.ErrorPrior < 0 || math.IsNaN(g.ErrorPrior) || math.IsInf(g.ErrorPrior, 0):
		return fmt.Errorf("errorPrior must be >= 0, got %v", g.ErrorPrior)
	case g.ErrorPriorSamples < 0:
		return fmt.Errorf("errorPriorSamples must be >= 0, got %d", g.ErrorPriorSamples)
	case !(g.ConfidenceFloor > 0) || math.IsInf(g.ConfidenceFloor, 0):
		return fmt.Errorf("confidenceFloor must be > 0, got %v", g.ConfidenceFloor)
	}
	return nil
}

// Floor clamps an estimate (or label) to the minimum duration.
func (g Gate) Floor(minutes float64) float64 {
	return math.Max(minutes, g.MinPredictedMinutes)
}

// Confidence computes 1 - err/max(yHat, floor), clamped to [0,1].
func (g Gate) Confidence(yHat, err float64) float64 {
	c := 1 - err/math.Max(yHat, g.ConfidenceFloor)
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}

// ErrorTerm picks the running MAE once enough samples exist, else the prior.
func (g Gate) ErrorTerm(mae float64, samples int64) float64 {
	if samples > g.ErrorPriorSamples {
		return mae
	}
	return g.ErrorPrior
}

// Apply turns a floored estimate into a PredictionResult.
func (g Gate) Apply(yHat, confidence float64, samples int64) PredictionResult {
	if samples < g.MinTrainingSamples {
		return PredictionResult{Confidence: confidence, Reason: ReasonInsufficientTrainingData}
	}
	if confidence < g.ConfidenceThreshold {
		return PredictionResult{Confidence: confidence, Reason: ReasonLowConfidence}
	}
	minutes := yHat
	return PredictionResult{PredictedMinutes: &minutes, Confidence: confidence, Reason: ReasonModelPrediction}
}
