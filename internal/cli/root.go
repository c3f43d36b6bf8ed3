// Package cli implements the homectl command-line interface using Cobra:
// serve runs the daemon, migrate applies storage migrations standalone,
// devicesim drives the MQTT bridges with synthetic telemetry.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "homectl",
	Short:         "homectl — home automation controller",
	Long:          `homectl ingests sensor/actuator telemetry, derives household state from it, and drives a goal/action planner against the configured zones.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./homectl.toml", "path to the TOML configuration file")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
