/*
Package eval replays recorded completions through a fresh predictor to
measure how the estimator and its confidence gate would have behaved,
without touching the live model.
*/
package eval

import (
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
)

// Sample is one labelled observation.
type Sample struct {
	TaskID        string                 `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Features      estimate.FeatureVector `json:"features" yaml:"features"`
	ActualMinutes float64                `json:"actual_minutes" yaml:"actual_minutes"`
}

// Dataset is a file of samples for offline evaluation.
type Dataset struct {
	Version int      `json:"version" yaml:"version"`
	Label   string   `json:"label,omitempty" yaml:"label,omitempty"`
	Samples []Sample `json:"samples" yaml:"samples"`
}

// Results holds the output of a replay.
type Results struct {
	GeneratedAt time.Time                    `json:"generated_at" yaml:"generated_at"`
	Label       string                       `json:"label,omitempty" yaml:"label,omitempty"`
	Gate        estimate.Gate                `json:"gate" yaml:"gate"`
	Overall     Summary                      `json:"overall" yaml:"overall"`
	ByCategory  map[string]Summary           `json:"by_category" yaml:"by_category"`
	Reasons     map[estimate.Reason]int      `json:"reasons" yaml:"reasons"`
	Learn       map[estimate.LearnStatus]int `json:"learn" yaml:"learn"`
	FinalModel  FinalModel                   `json:"final_model" yaml:"final_model"`
}

// Summary aggregates prequential results: each sample is predicted before
// the model learns from it.
type Summary struct {
	Samples  int `json:"samples" yaml:"samples"`
	Answered int `json:"answered" yaml:"answered"`
	// AnswerRate is Answered / Samples.
	AnswerRate float64 `json:"answer_rate" yaml:"answer_rate"`
	// AnsweredMAE is the mean absolute error over exposed predictions.
	AnsweredMAE float64 `json:"answered_mae" yaml:"answered_mae"`
	// ModelMAE is the error of the raw model output on every sample,
	// whether or not the gate exposed it.
	ModelMAE float64 `json:"model_mae" yaml:"model_mae"`

	answeredErr float64
	modelErr    float64
}

// FinalModel describes the replayed model after the last sample.
type FinalModel struct {
	SampleCount int64   `json:"sample_count" yaml:"sample_count"`
	RunningMAE  float64 `json:"running_mae" yaml:"running_mae"`
}
