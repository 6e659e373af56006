package estimate

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func workFeatures() FeatureVector {
	return Normalize(map[string]any{
		KeyCategory:          "Work Related",
		KeyHourOfDay:         14,
		KeyDayOfWeek:         2,
		KeyEstimatedSubtasks: 3,
		KeyIsVague:           false,
		KeyHasDependencies:   true,
	})
}

func TestPredict_FreshModel(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	res := p.Predict(workFeatures())

	assert.Nil(t, res.PredictedMinutes)
	assert.Equal(t, ReasonInsufficientTrainingData, res.Reason)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestPredict_InsufficientBeforeThirtySamples(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()
	for i := 0; i < MinTrainingSamples-1; i++ {
		out := p.Learn(fv, ptr(60))
		require.True(t, out.Applied())

		res := p.Predict(fv)
		assert.Nil(t, res.PredictedMinutes, "after %d samples", i+1)
		assert.Equal(t, ReasonInsufficientTrainingData, res.Reason)
	}
	assert.Equal(t, int64(MinTrainingSamples-1), p.SampleCount())
}

func TestLearn_InvalidLabelsAreNoOps(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()
	require.True(t, p.Learn(fv, ptr(30)).Applied())
	before := p.Snapshot()

	for _, label := range []*float64{nil, ptr(0), ptr(-5), ptr(math.NaN()), ptr(math.Inf(1)), ptr(math.Inf(-1))} {
		out := p.Learn(fv, label)
		assert.Equal(t, LearnSkippedInvalidLabel, out.Status)
	}
	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, int64(1), p.SampleCount())
}

func TestLearn_ColdStartUsesFallbackEstimate(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	out := p.Learn(workFeatures(), ptr(55))

	require.True(t, out.Applied())
	assert.Equal(t, ColdStartEstimate, out.Estimate)
	assert.InDelta(t, 10.0, p.Snapshot().RunningMAE.Value(), 1e-9)
}

func TestLearn_FloorsLabel(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	out := p.Learn(workFeatures(), ptr(1.5))

	require.True(t, out.Applied())
	assert.Equal(t, MinPredictedMinutes, out.Label)
	assert.Equal(t, MinPredictedMinutes, p.Snapshot().TargetScaler.Mean[0])
}

func TestLearn_ConvergesOnClusteredLabels(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()
	labels := []float64{55, 58, 60, 62, 65}
	for i := 0; i < 35; i++ {
		require.True(t, p.Learn(fv, ptr(labels[i%len(labels)])).Applied())
	}

	res := p.Predict(fv)
	require.Equal(t, ReasonModelPrediction, res.Reason)
	require.NotNil(t, res.PredictedMinutes)
	assert.GreaterOrEqual(t, res.Confidence, ConfidenceThreshold)
	assert.InDelta(t, 60.0, *res.PredictedMinutes, 5.0)
}

func TestPredict_LowConfidenceOnNoisyLabels(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()
	labels := []float64{5, 200, 10, 240, 6, 180}
	for i := 0; i < 40; i++ {
		p.Learn(fv, ptr(labels[i%len(labels)]))
	}

	res := p.Predict(fv)
	assert.Equal(t, ReasonLowConfidence, res.Reason)
	assert.Nil(t, res.PredictedMinutes)
	assert.Less(t, res.Confidence, ConfidenceThreshold)
}

func TestPredict_InvariantsOverRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := NewPredictor(nil, DefaultGate())

	randomFeatures := func() FeatureVector {
		return Normalize(map[string]any{
			KeyCategory:          rng.Intn(12) - 2,
			KeyHourOfDay:         rng.Intn(40) - 8,
			KeyDayOfWeek:         rng.Intn(10) - 2,
			KeyEstimatedSubtasks: rng.Intn(8),
			KeyIsVague:           rng.Intn(2),
			KeyHasDependencies:   rng.Intn(2),
		})
	}

	for i := 0; i < 300; i++ {
		fv := randomFeatures()
		p.Learn(fv, ptr(rng.Float64()*240))

		res := p.Predict(randomFeatures())
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		if res.PredictedMinutes != nil {
			assert.Equal(t, ReasonModelPrediction, res.Reason)
			assert.GreaterOrEqual(t, *res.PredictedMinutes, MinPredictedMinutes)
		} else {
			assert.NotEqual(t, ReasonModelPrediction, res.Reason)
		}
	}
}

func TestPredict_CorruptStateDegradesToNoEstimate(t *testing.T) {
	st := NewModelState()
	st.Weights = st.Weights[:3]
	p := NewPredictor(st, DefaultGate())

	res := p.Predict(workFeatures())
	assert.Equal(t, ReasonNoEstimate, res.Reason)
	assert.Equal(t, 0.0, res.Confidence)
	assert.ErrorIs(t, res.Cause, ErrStateMismatch)

	out := p.Learn(workFeatures(), ptr(30))
	assert.Equal(t, LearnNumericFailure, out.Status)
	assert.Equal(t, int64(0), p.SampleCount())
}

func TestPredict_NonFiniteStateDegradesToNoEstimate(t *testing.T) {
	st := NewModelState()
	st.TargetScaler.Count = 1
	st.TargetScaler.Mean[0] = math.Inf(1)
	p := NewPredictor(st, DefaultGate())

	res := p.Predict(workFeatures())
	assert.Equal(t, ReasonNoEstimate, res.Reason)
	assert.ErrorIs(t, res.Cause, ErrNonFinite)
}

func TestLearn_NumericFailureLeavesStateUnchanged(t *testing.T) {
	st := NewModelState()
	st.Intercept = math.NaN()
	p := NewPredictor(st, DefaultGate())
	before := p.Snapshot()

	out := p.Learn(workFeatures(), ptr(40))
	assert.Equal(t, LearnNumericFailure, out.Status)
	assert.ErrorIs(t, out.Err, ErrNonFinite)
	assert.Equal(t, int64(0), p.SampleCount())
	assert.Equal(t, before.RunningMAE, p.Snapshot().RunningMAE)
}

func TestPredictor_SetGate(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()
	for i := 0; i < 5; i++ {
		p.Learn(fv, ptr(50))
	}

	g := DefaultGate()
	g.MinTrainingSamples = 3
	g.ConfidenceThreshold = 0
	require.NoError(t, p.SetGate(g))

	res := p.Predict(fv)
	assert.Equal(t, ReasonModelPrediction, res.Reason)

	bad := DefaultGate()
	bad.ConfidenceThreshold = 2
	assert.Error(t, p.SetGate(bad))
	assert.Equal(t, g, p.Gate())
}

func TestPredictor_ConcurrentPredictAndLearn(t *testing.T) {
	p := NewPredictor(nil, DefaultGate())
	fv := workFeatures()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				p.Learn(fv, ptr(60))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res := p.Predict(fv)
				assert.GreaterOrEqual(t, res.Confidence, 0.0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), p.SampleCount())
}

func TestModelState_Validate(t *testing.T) {
	require.NoError(t, NewModelState().Validate())

	st := NewModelState()
	st.FormatVersion = 99
	assert.ErrorIs(t, st.Validate(), ErrStateMismatch)

	st = NewModelState()
	st.TargetScaler.Mean = nil
	assert.ErrorIs(t, st.Validate(), ErrStateMismatch)

	var nilState *ModelState
	assert.ErrorIs(t, nilState.Validate(), ErrStateMismatch)
}

func TestGate_Confidence(t *testing.T) {
	g := DefaultGate()
	assert.Equal(t, 1.0, g.Confidence(60, 0))
	assert.InDelta(t, 0.5, g.Confidence(40, 20), 1e-9)
	// Small estimates use the floor as denominator.
	assert.InDelta(t, 1-10.0/15.0, g.Confidence(5, 10), 1e-9)
	assert.Equal(t, 0.0, g.Confidence(10, 100))

	assert.Equal(t, ErrorPrior, g.ErrorTerm(3, ErrorPriorSamples))
	assert.Equal(t, 3.0, g.ErrorTerm(3, ErrorPriorSamples+1))
}
