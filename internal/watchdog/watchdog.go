// Package watchdog force-closes any valve that has been open longer than
// its zone's pulse width plus a 30 s grace period, independent of bus
// connectivity. It is the backstop of last resort: nothing else in the
// hub is allowed to leave a valve open indefinitely.
package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

const (
	tickInterval = 5 * time.Second
	grace        = 30 * time.Second
)

// Board is the subset of the valve board the watchdog drives.
type Board interface {
	Set(zoneID string, on bool)
}

// Store is the subset of persistence the watchdog needs to account for a
// forced close.
type Store interface {
	AddOpenSeconds(day, zoneID string, delta int) error
	InsertWateringEvent(e domain.WateringEvent) (int64, error)
}

// State is the subset of shared runtime state the watchdog reads and
// mutates.
type State interface {
	OpenedSince(zoneID string) (time.Time, bool)
	CloseValve(zoneID string, at time.Time) (time.Duration, domain.WateringReason, bool)
	RecordValve(zoneID string, open bool, at time.Time, detail string)
	RecordError(at time.Time, detail string)
}

// Watchdog ticks every 5s checking every configured zone's opened_at
// against its deadline.
type Watchdog struct {
	board Board
	store Store
	state State
	zones map[string]domain.ZoneConfig // zone_id -> config, for pulse_sec
}

// New constructs a Watchdog over the given zone configs.
func New(board Board, store Store, state State, zones map[string]domain.ZoneConfig) *Watchdog {
	return &Watchdog{board: board, store: store, state: state, zones: zones}
}

// Run blocks, ticking every 5s until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	w.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep checks every zone once. This package's tests call it directly for
// a synchronous single pass instead of waiting on the real ticker.
func (w *Watchdog) sweep() {
	now := time.Now()
	for zoneID, zone := range w.zones {
		openedAt, open := w.state.OpenedSince(zoneID)
		if !open {
			continue
		}
		deadline := time.Duration(zone.PulseSec)*time.Second + grace
		elapsed := now.Sub(openedAt)
		if elapsed <= deadline {
			continue
		}
		w.forceClose(zoneID, openedAt, now, elapsed)
	}
}

func (w *Watchdog) forceClose(zoneID string, openedAt, now time.Time, elapsed time.Duration) {
	w.board.Set(zoneID, false)
	elapsedSec := int(elapsed.Seconds())

	if _, _, ok := w.state.CloseValve(zoneID, now); !ok {
		// State had already moved on between the read and the close —
		// still worth recording the forced action, but don't double
		// count seconds nobody asked us to add.
		log.Printf("watchdog: zone %s closed concurrently, skipping duration accounting", zoneID)
		return
	}

	day := domain.DayString(now)
	if err := w.store.AddOpenSeconds(day, zoneID, elapsedSec); err != nil {
		log.Printf("watchdog: failed to record open seconds for zone %s: %v", zoneID, err)
	}
	if _, err := w.store.InsertWateringEvent(domain.WateringEvent{
		TSStart: openedAt.Unix(),
		TSEnd:   now.Unix(),
		ZoneID:  zoneID,
		Reason:  domain.ReasonWatchdogClose,
		Result:  domain.ResultForceClosed,
	}); err != nil {
		log.Printf("watchdog: failed to record watering event for zone %s: %v", zoneID, err)
	}

	detail := "force-closed zone " + zoneID
	w.state.RecordValve(zoneID, false, now, detail)
	w.state.RecordError(now, detail)
}
