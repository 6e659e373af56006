package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, slog.LevelInfo, "JSON"))
	l.Debug("hidden")
	l.Info("model saved", "samples", 31)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "model saved", rec["msg"])
	assert.Equal(t, float64(31), rec["samples"])
}

func TestNewHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, slog.LevelWarn, "text"))
	l.Info("hidden")
	l.Warn("save failed")
	assert.Contains(t, buf.String(), `msg="save failed"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetup_VerboseForcesDebug(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Setup("error", "text", true)
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, l, slog.Default())
}
