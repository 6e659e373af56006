package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(defaultViper())
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Model.Store)
	assert.Equal(t, "json", cfg.Model.File.Format)
	assert.Equal(t, estimate.DefaultGate(), cfg.Model.Gate)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"unknown store", KeyModelStore, "redis", "Model.Store"},
		{"bad format", KeyModelFileFormat, "toml", "Format"},
		{"bad port", KeyServerPort, 0, "Port"},
		{"bad level", KeyLogLevel, "trace", "Level"},
		{"bad threshold", KeyModelGate + ".confidenceThreshold", 1.5, "confidenceThreshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := defaultViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_NormalizesCase(t *testing.T) {
	v := defaultViper()
	v.Set(KeyLogLevel, "DEBUG")
	v.Set(KeyModelFileFormat, "YAML")
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "yaml", cfg.Model.File.Format)
}

func TestGateFrom(t *testing.T) {
	v := defaultViper()
	v.Set(KeyModelGate+".minTrainingSamples", 10)
	g, err := GateFrom(v)
	require.NoError(t, err)
	assert.Equal(t, int64(10), g.MinTrainingSamples)
	assert.Equal(t, estimate.ConfidenceThreshold, g.ConfidenceThreshold)

	v.Set(KeyModelGate+".minTrainingSamples", -1)
	_, err = GateFrom(v)
	assert.Error(t, err)
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	cfg, err := Load(defaultViper())
	require.NoError(t, err)
	cfg.Model.Store = StoreFile
	cfg.Model.Gate.MinTrainingSamples = 12

	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	require.NoError(t, WriteConfig(path, cfg, false))

	err = WriteConfig(path, cfg, false)
	assert.ErrorContains(t, err, "already exists")
	require.NoError(t, WriteConfig(path, cfg, true))

	v := defaultViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	got, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestGetDataPath_ResolutionOrder(t *testing.T) {
	original := GetGlobalConfigDir
	defer func() { GetGlobalConfigDir = original }()
	home := t.TempDir()
	GetGlobalConfigDir = func() (string, error) { return filepath.Join(home, ".taskpace"), nil }

	work := t.TempDir()
	t.Chdir(work)
	t.Setenv("XDG_DATA_HOME", "")

	if got := GetDataPath(); got != filepath.Join(home, ".taskpace", "data") {
		t.Errorf("global fallback: got %q", got)
	}

	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	if got := GetDataPath(); got != filepath.Join(xdg, "taskpace") {
		t.Errorf("xdg: got %q", got)
	}

	require.NoError(t, os.MkdirAll(filepath.Join(work, LocalDataDir), 0o755))
	if got := GetDataPath(); got != LocalDataDir {
		t.Errorf("local: got %q", got)
	}

	viper.Set(KeyDataPath, "/explicit")
	defer viper.Set(KeyDataPath, "")
	if got := GetDataPath(); got != "/explicit" {
		t.Errorf("explicit: got %q", got)
	}
}

func TestGetDataPath_GlobalDirError(t *testing.T) {
	original := GetGlobalConfigDir
	defer func() { GetGlobalConfigDir = original }()
	GetGlobalConfigDir = func() (string, error) {
		return "", errors.New("test error: cannot get home dir")
	}
	t.Chdir(t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")

	if got := GetDataPath(); got != "./data" {
		t.Errorf("expected ./data, got %q", got)
	}
}
