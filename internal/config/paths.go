package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.taskpace).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskpace"), nil
}

// LocalDataDir is the per-project data directory checked before the global one.
const LocalDataDir = ".taskpace/data"

// GetDataPath returns the directory holding the database, model files and crash logs.
// Resolution order (first match wins):
// 1. Explicit config via "data.path" (Viper/env/flag)
// 2. Local project directory: .taskpace/data (if exists)
// 3. XDG_DATA_HOME/taskpace (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.taskpace/data
func GetDataPath() string {
	if path := viper.GetString(KeyDataPath); path != "" {
		return path
	}

	if info, err := os.Stat(LocalDataDir); err == nil && info.IsDir() {
		return LocalDataDir
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "taskpace")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "data")
}

// EnsureDataPath resolves the data directory and creates it if needed.
func EnsureDataPath() (string, error) {
	dir := GetDataPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
