/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephgoksu/TaskPace/internal/config"
	"github.com/josephgoksu/TaskPace/internal/telemetry"
	"github.com/josephgoksu/TaskPace/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// configShowCmd shows current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Args:  requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		if cfg.Telemetry.APIKey != "" {
			cfg.Telemetry.APIKey = "********"
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), cfg)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			cmd.Printf("# %s\n", used)
		} else {
			cmd.Println("# no config file, defaults and environment only")
		}
		cmd.Printf("# data directory: %s\n", config.GetDataPath())
		return printYAML(cmd.OutOrStdout(), cfg)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.IsSet(args[0]) {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		cmd.Println(viper.Get(args[0]))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write the resolved configuration to ./.taskpace/.taskpace.yaml,
or to $HOME/.taskpace.yaml with --global.`,
	Args: requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		global, _ := cmd.Flags().GetBool("global")

		path := filepath.Join(configDir, config.ConfigFileName)
		if global {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("get home directory: %w", err)
			}
			path = filepath.Join(home, config.ConfigFileName)
		}
		if err := config.WriteConfig(path, appConfig, force); err != nil {
			return err
		}
		cmd.Printf("%s Wrote %s\n", ui.Icon("✓", ui.StyleSuccess), path)
		return nil
	},
}

// Telemetry subcommands
var configTelemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage anonymous usage telemetry.

When enabled, TaskPace sends command names and coarse outcome buckets
(never titles, user ids or exact durations). Events are only sent when
telemetry.apiKey is configured.`,
}

var configTelemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show telemetry status",
	Args:  requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.EnsureDataPath()
		if err != nil {
			return err
		}
		cfg, err := telemetry.Load(dir)
		if err != nil {
			return err
		}
		state := ui.StyleSubtle.Render("disabled")
		if cfg.IsEnabled() || appConfig.Telemetry.Enabled {
			state = ui.StyleSuccess.Render("enabled")
		}
		cmd.Printf("Telemetry: %s\n", state)
		cmd.Printf("Anonymous ID: %s\n", cfg.AnonymousID)
		if appConfig.Telemetry.APIKey == "" {
			cmd.Println("No API key configured; nothing is sent.")
		}
		return nil
	},
}

var configTelemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	Args:  requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(cmd, true)
	},
}

var configTelemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	Args:  requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(cmd, false)
	},
}

func setTelemetry(cmd *cobra.Command, enabled bool) error {
	dir, err := config.EnsureDataPath()
	if err != nil {
		return err
	}
	cfg, err := telemetry.Load(dir)
	if err != nil {
		return err
	}
	cfg.Enabled = enabled
	if err := cfg.Save(dir); err != nil {
		return err
	}
	if enabled {
		cmd.Println("Telemetry enabled. Thank you!")
	} else {
		cmd.Println("Telemetry disabled.")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configGetCmd, configInitCmd, configTelemetryCmd)
	configTelemetryCmd.AddCommand(configTelemetryStatusCmd, configTelemetryEnableCmd, configTelemetryDisableCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configInitCmd.Flags().Bool("global", false, "write to $HOME instead of ./.taskpace")
}
