package domain

import "fmt"

// ValidGPIOPins is the hardware whitelist of pins safe to drive as relay
// outputs on the reference board — it excludes bus lines and the ID EEPROM
// lines.
var ValidGPIOPins = map[int]bool{
	4: true, 5: true, 6: true, 12: true, 13: true, 16: true, 17: true,
	18: true, 19: true, 20: true, 21: true, 22: true, 23: true, 24: true,
	25: true, 26: true, 27: true,
}

// ZoneConfig describes one addressable irrigation zone.
type ZoneConfig struct {
	ZoneID             string  `json:"zone_id" toml:"zone_id"`
	Name               string  `json:"name" toml:"name"`
	MinMoisture        float64 `json:"min_moisture" toml:"min_moisture"`
	TargetMoisture     float64 `json:"target_moisture" toml:"target_moisture"`
	PulseSec           int     `json:"pulse_sec" toml:"pulse_sec"`
	SoakMin            int     `json:"soak_min" toml:"soak_min"`
	StaleTimeoutMin    int     `json:"stale_timeout_min" toml:"stale_timeout_min"`
	MaxOpenSecPerDay   int     `json:"max_open_sec_per_day" toml:"max_open_sec_per_day"`
	MaxPulsesPerDay    int     `json:"max_pulses_per_day" toml:"max_pulses_per_day"`
	ValveGPIOPin       int     `json:"valve_gpio_pin" toml:"valve_gpio_pin"`
}

// Validate checks a single zone's invariants, returning every violation
// found rather than stopping at the first one.
func (z ZoneConfig) Validate() []error {
	var errs []error
	if z.ZoneID == "" {
		errs = append(errs, fmt.Errorf("zone: zone_id must not be empty"))
	}
	if !(z.MinMoisture >= 0 && z.MinMoisture <= 1) {
		errs = append(errs, fmt.Errorf("zone %s: min_moisture must be in [0,1]", z.ZoneID))
	}
	if !(z.TargetMoisture >= 0 && z.TargetMoisture <= 1) {
		errs = append(errs, fmt.Errorf("zone %s: target_moisture must be in [0,1]", z.ZoneID))
	}
	if z.TargetMoisture <= z.MinMoisture {
		errs = append(errs, fmt.Errorf("zone %s: target_moisture must be greater than min_moisture", z.ZoneID))
	}
	if z.PulseSec <= 0 {
		errs = append(errs, fmt.Errorf("zone %s: pulse_sec must be positive", z.ZoneID))
	}
	if z.SoakMin <= 0 {
		errs = append(errs, fmt.Errorf("zone %s: soak_min must be positive", z.ZoneID))
	}
	if z.StaleTimeoutMin <= 0 {
		errs = append(errs, fmt.Errorf("zone %s: stale_timeout_min must be positive", z.ZoneID))
	}
	if z.MaxOpenSecPerDay <= 0 {
		errs = append(errs, fmt.Errorf("zone %s: max_open_sec_per_day must be positive", z.ZoneID))
	}
	if z.MaxPulsesPerDay <= 0 {
		errs = append(errs, fmt.Errorf("zone %s: max_pulses_per_day must be positive", z.ZoneID))
	}
	if z.PulseSec > z.MaxOpenSecPerDay {
		errs = append(errs, fmt.Errorf("zone %s: pulse_sec must not exceed max_open_sec_per_day", z.ZoneID))
	}
	if !ValidGPIOPins[z.ValveGPIOPin] {
		errs = append(errs, fmt.Errorf("zone %s: valve_gpio_pin %d is not in the hardware whitelist", z.ZoneID, z.ValveGPIOPin))
	}
	return errs
}
