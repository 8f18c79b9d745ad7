// Package safety is the single chokepoint every valve-open decision must
// pass through. Nothing else in the hub is allowed to drive a valve ON
// directly.
package safety

import (
	"log"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// CounterReader is the subset of the persistence adapter the gate needs.
// A separate interface keeps the gate testable without a real database.
type CounterReader interface {
	GetDailyCounters(day, zoneID string) (domain.DailyCounter, error)
}

// Gate evaluates whether a zone may be opened right now.
type Gate struct {
	counters CounterReader
}

// NewGate constructs a Gate backed by the given counter store.
func NewGate(counters CounterReader) *Gate {
	return &Gate{counters: counters}
}

// Decision is the structured outcome of a Grant call, used both to drive
// the caller's branching and to build the recorded error event on refusal.
type Decision struct {
	Granted bool
	Reason  error // nil if Granted
}

// Grant evaluates the four gate rules for zoneID and returns a Decision.
// alreadyOn and openZonesExcluding come from the caller's own read of
// shared runtime state, so the scheduler can layer its tick-local counter
// on top of openZonesExcluding before calling in — the gate itself does
// not read shared state directly, keeping the tick-local accounting
// entirely in the scheduler's hands.
func (g *Gate) Grant(zone domain.ZoneConfig, alreadyOn bool, openZonesExcluding int, maxConcurrentValves int, now time.Time) Decision {
	if alreadyOn {
		return Decision{Granted: false, Reason: domain.ErrZoneAlreadyOn}
	}
	if openZonesExcluding >= maxConcurrentValves {
		return Decision{Granted: false, Reason: domain.ErrConcurrentCeiling}
	}

	day := domain.DayString(now)
	counters, err := g.counters.GetDailyCounters(day, zone.ZoneID)
	if err != nil {
		// Fail-open: a counter-read failure must never itself cause a
		// zone to go unwatered. Logged loudly so an operator notices the
		// storage layer is unhealthy.
		log.Printf("safety: daily counter read failed for zone %s, failing open: %v", zone.ZoneID, err)
		return Decision{Granted: true}
	}

	if counters.Pulses >= zone.MaxPulsesPerDay {
		return Decision{Granted: false, Reason: domain.ErrDailyPulseCapReached}
	}
	if counters.OpenSec >= zone.MaxOpenSecPerDay {
		return Decision{Granted: false, Reason: domain.ErrDailyOpenSecCapReached}
	}
	return Decision{Granted: true}
}
