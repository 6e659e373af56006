package snapshot

import (
	"context"
	"testing"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trained(t *testing.T, n int) *estimate.ModelState {
	t.Helper()
	p := estimate.NewPredictor(nil, estimate.DefaultGate())
	fv := estimate.Normalize(map[string]any{estimate.KeyCategory: "Social", estimate.KeyIsVague: true})
	for i := 0; i < n; i++ {
		minutes := 20.0 + float64(i)
		require.True(t, p.Learn(fv, &minutes).Applied())
	}
	return p.Snapshot()
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "/data", FormatJSON)
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, estimate.ErrNoSnapshot)
}

func TestFileStore_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			fs := afero.NewMemMapFs()
			s := NewFileStore(fs, "/data", format)

			st := trained(t, 6)
			require.NoError(t, s.Save(ctx, st))

			exists, err := afero.Exists(fs, "/data/model."+string(format)+".checksum")
			require.NoError(t, err)
			assert.True(t, exists)
			tmpExists, _ := afero.Exists(fs, s.Path()+".tmp")
			assert.False(t, tmpExists)

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, st.SampleCount, got.SampleCount)
			assert.Equal(t, st.RunningMAE, got.RunningMAE)
			assert.InDeltaSlice(t, st.Weights, got.Weights, 1e-12)
			assert.InDelta(t, st.Intercept, got.Intercept, 1e-12)

			fv := estimate.Normalize(map[string]any{estimate.KeyCategory: "Social"})
			assert.Equal(t,
				estimate.NewPredictor(st, estimate.DefaultGate()).Predict(fv).Confidence,
				estimate.NewPredictor(got, estimate.DefaultGate()).Predict(fv).Confidence)
		})
	}
}

func TestFileStore_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", FormatJSON)
	require.NoError(t, s.Save(ctx, trained(t, 2)))

	data, err := afero.ReadFile(fs, s.Path())
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, s.Path(), append(data, ' '), 0o644))

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestFileStore_LoadsWithoutChecksum(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", FormatYAML)
	require.NoError(t, s.Save(ctx, trained(t, 3)))
	require.NoError(t, fs.Remove(s.Path()+checksumSuffix))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.SampleCount)
}

func TestFileStore_RejectsIncompatibleState(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data", FormatJSON)

	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, s.Path(), []byte(`{"format_version": 1, "weights": [1, 2]}`), 0o644))
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, estimate.ErrStateMismatch)

	bad := estimate.NewModelState()
	bad.FormatVersion = 0
	assert.ErrorIs(t, s.Save(ctx, bad), estimate.ErrStateMismatch)
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFileStore(afero.NewMemMapFs(), "/data", FormatJSON)
	assert.ErrorIs(t, s.Save(ctx, trained(t, 1)), context.Canceled)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)
}
