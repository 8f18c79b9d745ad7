package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fieldwatch/irrigation-hub/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to config.toml (overrides CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd)
}

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the irrigation hub daemon",
	Long:  `Start the MQTT ingest loop, scheduler, watchdog, and dashboard API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}

	return d.Serve(context.Background())
}
