/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = ".taskpace"
	configDir  = ".taskpace"
	envPrefix  = "TASKPACE"
)

var (
	// appConfig is the resolved configuration, set by InitConfig.
	appConfig *config.AppConfig
	// configErr is reported by the first command that runs.
	configErr error
)

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	// Env handling must be set up before reading the config file.
	viper.SetEnvPrefix(envPrefix)                          // e.g., TASKPACE_VERBOSE
	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // model.gate.errorPrior -> TASKPACE_MODEL_GATE_ERRORPRIOR

	config.SetDefaults(viper.GetViper())

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else if info, err := os.Stat(configDir); err == nil && info.IsDir() {
		// Project-specific config directory takes priority: ./.taskpace/.taskpace.yaml
		viper.AddConfigPath(configDir)
		viper.SetConfigName(configName)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home) // $HOME/.taskpace.yaml
		}
		viper.AddConfigPath(".") // ./.taskpace.yaml
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case cfgFileFlag != "":
			configErr = fmt.Errorf("read config file %s: %w", cfgFileFlag, err)
			return
		case errors.As(err, &notFound):
			if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		default:
			configErr = fmt.Errorf("read config file %s: %w", viper.ConfigFileUsed(), err)
			return
		}
	}

	appConfig, configErr = config.Load(viper.GetViper())
}

// watchGate reloads the confidence gate whenever the config file changes.
// Invalid gate values are logged and ignored.
func watchGate(est *app.Estimator) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		g, err := config.GateFrom(viper.GetViper())
		if err != nil {
			slog.Warn("ignoring invalid gate in reloaded config", "file", e.Name, "error", err)
			return
		}
		if g == est.Gate() {
			return
		}
		if err := est.SetGate(g); err != nil {
			slog.Warn("gate reload rejected", "error", err)
		}
	})
	viper.WatchConfig()
	slog.Debug("watching config for gate changes", "file", viper.ConfigFileUsed())
}

// requireNoArgs is cobra.NoArgs with a friendlier hint.
func requireNoArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown argument %q for %q\nRun '%s --help' for usage", args[0], cmd.CommandPath(), cmd.CommandPath())
	}
	return nil
}
