// Package daemon wires the irrigation hub's components together and
// manages its configuration and process lifecycle.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// Config holds the full on-disk configuration for one hub.
type Config struct {
	Mode                domain.OperationMode `toml:"mode"`
	MaxConcurrentValves int                  `toml:"max_concurrent_valves"`
	Zones               []domain.ZoneConfig  `toml:"zones"`
	Sensors             []domain.SensorConfig `toml:"sensors"`

	MQTT MQTTConfig `toml:"mqtt"`
	DB   DBConfig   `toml:"db"`
	Web  WebConfig  `toml:"web"`
	Node NodeConfig `toml:"node"`
}

// MQTTConfig controls the bus adapter's broker connection.
type MQTTConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// DBConfig controls the persistence adapter.
type DBConfig struct {
	URL                string `toml:"url"`
	BackupPath         string `toml:"backup_path"`
	BackupIntervalSec  int    `toml:"backup_interval_sec"`
}

// WebConfig controls the dashboard HTTP server.
type WebConfig struct {
	Port int `toml:"port"`
}

// NodeConfig controls node-health bookkeeping.
type NodeConfig struct {
	RelayActiveLow      bool `toml:"relay_active_low"`
	StaleTimeoutMin      int `toml:"node_stale_timeout_min"`
}

// DefaultConfig returns a configuration with no zones or sensors and every
// ambient setting at its documented default.
func DefaultConfig() Config {
	return Config{
		Mode:                domain.ModeAuto,
		MaxConcurrentValves: 2,
		Zones:               nil,
		Sensors:             nil,
		MQTT: MQTTConfig{
			Host: "127.0.0.1",
			Port: 1883,
		},
		DB: DBConfig{
			URL:               filepath.Join(irrigationHome(), "hub.db"),
			BackupPath:        filepath.Join(irrigationHome(), "backup", "hub.db"),
			BackupIntervalSec: 1800,
		},
		Web: WebConfig{
			Port: 8080,
		},
		Node: NodeConfig{
			RelayActiveLow:  true,
			StaleTimeoutMin: 10,
		},
	}
}

// LoadConfig reads the TOML config at path (or CONFIG_PATH, or
// "config.toml" if neither is set), applies environment-variable
// overrides, validates the result, and returns it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("configuration failed validation: %w", joinErrors(errs))
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML, creating parent directories as
// needed.
func SaveConfig(cfg Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks every top-level invariant plus every zone's and
// sensor's own Validate(), collecting all violations rather than
// stopping at the first.
func (c Config) Validate() []error {
	var errs []error

	if !c.Mode.Valid() {
		errs = append(errs, fmt.Errorf("mode %q is not one of auto|monitor", c.Mode))
	}
	if c.Mode == domain.ModeAuto && c.MaxConcurrentValves <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent_valves must be positive in auto mode"))
	}
	if c.MaxConcurrentValves < 0 {
		errs = append(errs, fmt.Errorf("max_concurrent_valves must not be negative"))
	}

	knownZones := make(map[string]bool, len(c.Zones))
	usedPins := make(map[int]string, len(c.Zones))
	for _, z := range c.Zones {
		for _, err := range z.Validate() {
			errs = append(errs, err)
		}
		if knownZones[z.ZoneID] {
			errs = append(errs, fmt.Errorf("zone_id %q is defined more than once", z.ZoneID))
		}
		knownZones[z.ZoneID] = true

		if other, taken := usedPins[z.ValveGPIOPin]; taken {
			errs = append(errs, fmt.Errorf("zones %q and %q both claim GPIO pin %d", other, z.ZoneID, z.ValveGPIOPin))
		} else {
			usedPins[z.ValveGPIOPin] = z.ZoneID
		}
	}

	knownSensors := make(map[string]bool, len(c.Sensors))
	for _, s := range c.Sensors {
		for _, err := range s.Validate(knownZones) {
			errs = append(errs, err)
		}
		if knownSensors[s.SensorID] {
			errs = append(errs, fmt.Errorf("sensor_id %q is defined more than once", s.SensorID))
		}
		knownSensors[s.SensorID] = true
	}

	return errs
}

// applyEnvOverrides layers the documented environment variables over cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MQTT.Port = n
		}
	}
	if v := os.Getenv("MQTT_USER"); v != "" {
		cfg.MQTT.User = v
	}
	if v := os.Getenv("MQTT_PASS"); v != "" {
		cfg.MQTT.Pass = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		cfg.DB.URL = v
	}
	if v := os.Getenv("DB_BACKUP_PATH"); v != "" {
		cfg.DB.BackupPath = v
	}
	if v := os.Getenv("DB_BACKUP_INTERVAL_SEC"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.DB.BackupIntervalSec = n
		}
	}
	if v := os.Getenv("RELAY_ACTIVE_LOW"); v != "" {
		cfg.Node.RelayActiveLow = v == "true" || v == "1"
	}
	if v := os.Getenv("WEB_PORT"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Web.Port = n
		}
	}
	if v := os.Getenv("NODE_STALE_TIMEOUT_MIN"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Node.StaleTimeoutMin = n
		}
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}

// joinErrors folds multiple validation errors into one wrapped error so
// callers can use errors.Is/As against the sentinel while still printing
// every violation.
func joinErrors(errs []error) error {
	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return fmt.Errorf("%s: %w", msg, domain.ErrInvalidConfig)
}

// irrigationHome returns the hub's data directory.
func irrigationHome() string {
	if env := os.Getenv("IRRIGATION_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".irrigation-hub")
}
