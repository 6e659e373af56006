// Package telemetry sends opt-in, anonymous usage events to PostHog.
// Nothing is sent unless telemetry.enabled is set and an API key is configured.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ConfigFileName is the name of the telemetry state file inside the data directory.
const ConfigFileName = "telemetry.json"

// Config holds the telemetry state.
type Config struct {
	Enabled bool `json:"enabled"`

	// AnonymousID is a random UUID generated once and never tied to a user id.
	AnonymousID string `json:"anonymous_id"`
}

// Load reads <dir>/telemetry.json. A missing file yields a disabled config
// with a fresh anonymous ID.
func Load(dir string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AnonymousID = uuid.New().String()
			return cfg, nil
		}
		return nil, fmt.Errorf("read telemetry config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse telemetry config: %w", err)
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
	}
	return cfg, nil
}

// Save writes the config to <dir>/telemetry.json with owner-only permissions.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0600); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return nil
}

// IsEnabled returns true if telemetry is currently enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// New builds the client for the given settings. Any failure degrades to a
// NoopClient.
func New(dir string, enabled bool, apiKey, endpoint, version string) Client {
	if !enabled || apiKey == "" {
		return NewNoopClient()
	}
	cfg, err := Load(dir)
	if err != nil {
		return NewNoopClient()
	}
	if !cfg.Enabled {
		cfg.Enabled = true
		_ = cfg.Save(dir)
	}
	client, err := NewPostHogClient(apiKey, endpoint, version, cfg)
	if err != nil {
		return NewNoopClient()
	}
	return client
}
