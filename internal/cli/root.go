// Package cli implements the irrigation hub's command-line interface using
// Cobra: serve runs the daemon, config inspects and validates the active
// configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hubd",
	Short: "irrigation-hub — soil-moisture-driven irrigation controller",
	Long: `irrigation-hub runs a single greenhouse/garden hub: it ingests sensor
telemetry and node presence over MQTT, evaluates a pulse/soak watering
schedule per zone, actuates relay valves over GPIO, and enforces daily
watering limits regardless of what the scheduler or a dashboard command
asks for.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
