package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldwatch/irrigation-hub/internal/daemon"
)

func init() {
	configCmd.Flags().StringVar(&configValidatePath, "config", "", "Path to config.toml (overrides CONFIG_PATH)")
	rootCmd.AddCommand(configCmd)
}

var configValidatePath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Load and validate the active configuration",
	Long:  `Load config.toml plus environment overrides and report every validation error found, without starting the daemon.`,
	RunE:  runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configValidatePath)
	if err != nil {
		return err
	}

	fmt.Printf("mode: %s\n", cfg.Mode)
	fmt.Printf("max_concurrent_valves: %d\n", cfg.MaxConcurrentValves)
	fmt.Printf("zones: %d\n", len(cfg.Zones))
	fmt.Printf("sensors: %d\n", len(cfg.Sensors))
	fmt.Printf("mqtt: %s:%d\n", cfg.MQTT.Host, cfg.MQTT.Port)
	fmt.Printf("db: %s\n", cfg.DB.URL)
	fmt.Printf("web: :%d\n", cfg.Web.Port)
	fmt.Println("configuration OK")
	return nil
}
