// Package config provides centralized configuration for TaskPace.
// All default values are defined here to keep a single source of truth.
package config

import (
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyDataPath         = "data.path"
	KeyModelStore       = "model.store"
	KeyModelFileFormat  = "model.file.format"
	KeyModelGate        = "model.gate"
	KeyServerPort       = "server.port"
	KeyServerOrigins    = "server.allowedOrigins"
	KeyServerRateLimit  = "server.rateLimit"
	KeyServerRateBurst  = "server.rateBurst"
	KeyTelemetryEnabled = "telemetry.enabled"
	KeyTelemetryAPIKey  = "telemetry.apiKey"
	KeyTelemetryHost    = "telemetry.endpoint"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyVerbose          = "verbose"
)

// Model snapshot backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

const (
	DefaultModelStore      = StoreSQLite
	DefaultModelFileFormat = "json"
	DefaultServerPort      = 5005
	DefaultRateLimit       = 20.0
	DefaultRateBurst       = 40
	DefaultTelemetryHost   = "https://us.i.posthog.com"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// SetDefaults registers every default with viper. Safe to call repeatedly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataPath, "")
	v.SetDefault(KeyModelStore, DefaultModelStore)
	v.SetDefault(KeyModelFileFormat, DefaultModelFileFormat)

	g := estimate.DefaultGate()
	v.SetDefault(KeyModelGate+".minTrainingSamples", g.MinTrainingSamples)
	v.SetDefault(KeyModelGate+".confidenceThreshold", g.ConfidenceThreshold)
	v.SetDefault(KeyModelGate+".minPredictedMinutes", g.MinPredictedMinutes)
	v.SetDefault(KeyModelGate+".errorPrior", g.ErrorPrior)
	v.SetDefault(KeyModelGate+".errorPriorSamples", g.ErrorPriorSamples)
	v.SetDefault(KeyModelGate+".confidenceFloor", g.ConfidenceFloor)

	v.SetDefault(KeyServerPort, DefaultServerPort)
	v.SetDefault(KeyServerOrigins, []string{"http://localhost:5173"})
	v.SetDefault(KeyServerRateLimit, DefaultRateLimit)
	v.SetDefault(KeyServerRateBurst, DefaultRateBurst)

	v.SetDefault(KeyTelemetryEnabled, false)
	v.SetDefault(KeyTelemetryAPIKey, "")
	v.SetDefault(KeyTelemetryHost, DefaultTelemetryHost)

	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}
