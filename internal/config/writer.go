package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file name searched for by the CLI.
const ConfigFileName = ".taskpace.yaml"

const configHeader = "# TaskPace configuration\n# Every key can be overridden with TASKPACE_<SECTION>_<KEY> environment variables.\n"

// WriteConfig writes cfg as YAML to path. It refuses to overwrite an
// existing file unless force is set.
func WriteConfig(path string, cfg *AppConfig, force bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}
