package domain

// OperationMode selects whether the scheduler may actuate valves.
type OperationMode string

const (
	// ModeAuto lets the scheduler drive valves automatically.
	ModeAuto OperationMode = "auto"
	// ModeMonitor runs every scheduler check except actuation — read-only.
	ModeMonitor OperationMode = "monitor"
)

// Valid reports whether m is a recognised operation mode.
func (m OperationMode) Valid() bool {
	return m == ModeAuto || m == ModeMonitor
}
