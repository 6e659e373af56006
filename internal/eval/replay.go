package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/task"
	"gopkg.in/yaml.v3"
)

// FromTrainingEvents converts stored events into samples, oldest first.
func FromTrainingEvents(events []task.TrainingEvent) []Sample {
	samples := make([]Sample, 0, len(events))
	for _, e := range events {
		samples = append(samples, Sample{TaskID: e.TaskID, Features: e.Features, ActualMinutes: e.ActualMinutes})
	}
	return samples
}

// LoadDataset reads a YAML or JSON dataset (chosen by file extension).
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &ds)
	default:
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if ds.Version != 0 && ds.Version != 1 {
		return nil, fmt.Errorf("unsupported dataset version %d", ds.Version)
	}
	for i := range ds.Samples {
		ds.Samples[i].Features = ds.Samples[i].Features.Sanitize()
	}
	return &ds, nil
}

// Replay predicts each sample with a fresh model, then learns from it.
// progress, when set, is called after every sample.
func Replay(samples []Sample, gate estimate.Gate, progress func(done int)) (*Results, error) {
	if err := gate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate: %w", err)
	}

	p := estimate.NewPredictor(nil, gate)
	res := &Results{
		GeneratedAt: time.Now().UTC(),
		Gate:        gate,
		ByCategory:  make(map[string]Summary),
		Reasons:     make(map[estimate.Reason]int),
		Learn:       make(map[estimate.LearnStatus]int),
	}

	for i, s := range samples {
		fv := s.Features.Sanitize()
		pred := p.Predict(fv)
		res.Reasons[pred.Reason]++

		actual := s.ActualMinutes
		outcome := p.Learn(fv, &actual)
		res.Learn[outcome.Status]++

		if outcome.Status != estimate.LearnSkippedInvalidLabel {
			cat := fv.CategoryID.String()
			sum := res.ByCategory[cat]
			sum.add(pred, outcome)
			res.ByCategory[cat] = sum
			res.Overall.add(pred, outcome)
		}

		if progress != nil {
			progress(i + 1)
		}
	}

	res.Overall.finish()
	for k, v := range res.ByCategory {
		v.finish()
		res.ByCategory[k] = v
	}
	st := p.Snapshot()
	res.FinalModel = FinalModel{SampleCount: st.SampleCount, RunningMAE: st.RunningMAE.Value()}
	return res, nil
}

func (s *Summary) add(pred estimate.PredictionResult, outcome estimate.LearnOutcome) {
	s.Samples++
	s.modelErr += math.Abs(outcome.Label - outcome.Estimate)
	if pred.PredictedMinutes != nil {
		s.Answered++
		s.answeredErr += math.Abs(outcome.Label - *pred.PredictedMinutes)
	}
}

func (s *Summary) finish() {
	if s.Samples > 0 {
		s.AnswerRate = float64(s.Answered) / float64(s.Samples)
		s.ModelMAE = s.modelErr / float64(s.Samples)
	}
	if s.Answered > 0 {
		s.AnsweredMAE = s.answeredErr / float64(s.Answered)
	}
}
