package domain

import "time"

// WateringReason identifies what triggered a watering event.
type WateringReason string

const (
	ReasonScheduler      WateringReason = "scheduler"
	ReasonManualCommand  WateringReason = "manual_command"
	ReasonWatchdogClose  WateringReason = "watchdog_close"
)

// WateringResult identifies the outcome of a watering event.
type WateringResult string

const (
	ResultOK          WateringResult = "ok"
	ResultForceClosed WateringResult = "force_closed"
	ResultSafetyBlock WateringResult = "safety_block"
)

// WateringEvent is one append-only record of a valve open/close cycle.
// CorrelationID is a unique ID per stored event; InsertWateringEvent
// assigns a fresh UUID when the caller leaves it blank. No log line
// carries it, so it identifies the row rather than linking it to logs.
type WateringEvent struct {
	ID            int64          `json:"id"`
	CorrelationID string         `json:"correlation_id"`
	TSStart       int64          `json:"ts_start"`
	TSEnd         int64          `json:"ts_end"`
	ZoneID        string         `json:"zone_id"`
	Reason        WateringReason `json:"reason"`
	Result        WateringResult `json:"result"`
}

// DailyCounter tracks cumulative valve usage for one zone on one UTC day.
type DailyCounter struct {
	Day     string `json:"day"` // YYYY-MM-DD, UTC
	ZoneID  string `json:"zone_id"`
	OpenSec int    `json:"open_sec"`
	Pulses  int    `json:"pulses"`
}

// DayString returns the UTC calendar-day key for t, as used by
// DailyCounter. Daily counters use the UTC date string; a zone that runs
// across midnight UTC has its open-seconds split across two counter rows
// — an accepted limitation at garden scale.
func DayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// EventKind classifies an entry in the bounded runtime event ring.
type EventKind string

const (
	EventReading   EventKind = "reading"
	EventValve     EventKind = "valve"
	EventScheduler EventKind = "scheduler"
	EventSystem    EventKind = "system"
	EventError     EventKind = "error"
)

// Event is one ephemeral entry in the 200-slot bounded ring held by the
// Shared Runtime State (C3).
type Event struct {
	TS     time.Time `json:"ts"`
	Kind   EventKind `json:"kind"`
	Detail string    `json:"detail"`
}

// MaxEventRing is the fixed capacity of the event ring; the oldest entry
// is evicted whenever an insert would exceed it.
const MaxEventRing = 200
