package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/spf13/viper"
)

// AppConfig is the resolved application configuration.
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose" yaml:"verbose"`
	Data      DataConfig      `mapstructure:"data" yaml:"data"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type DataConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

type ModelConfig struct {
	Store string          `mapstructure:"store" yaml:"store" validate:"required,oneof=sqlite file"`
	File  ModelFileConfig `mapstructure:"file" yaml:"file"`
	Gate  estimate.Gate   `mapstructure:"gate" yaml:"gate"`
}

type ModelFileConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=json yaml"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowedOrigins" yaml:"allowedOrigins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `mapstructure:"rateLimit" yaml:"rateLimit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rateBurst" yaml:"rateBurst" validate:"gte=0"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Model.File.Format = strings.ToLower(cfg.Model.File.Format)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the gate thresholds.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Model.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid config: model.gate: %w", err)
	}
	return nil
}

// GateFrom reads only the gate section, for hot reloads.
func GateFrom(v *viper.Viper) (estimate.Gate, error) {
	var g estimate.Gate
	if err := v.UnmarshalKey(KeyModelGate, &g); err != nil {
		return g, fmt.Errorf("unmarshal %s: %w", KeyModelGate, err)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}
