// Package valve drives the relay board that opens and closes irrigation
// solenoids over GPIO. Construction claims every configured line as an
// output pinned to its OFF level; runtime Set calls never fail, so callers
// never have to reason about a mid-cycle GPIO error.
package valve

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// Line is a single requested GPIO output line.
type Line interface {
	// SetValue drives the physical pin to 0 or 1.
	SetValue(value int) error
	Close() error
}

// Driver acquires output lines on a gpiochip. RequestLine must return the
// line already driven to initialValue — acquisition and first-write happen
// atomically so a line is never observed floating or in the wrong polarity.
type Driver interface {
	RequestLine(pin int, initialValue int) (Line, error)
	Close() error
}

// Board is the in-process handle to every zone's valve relay.
type Board struct {
	mu        sync.Mutex
	driver    Driver
	lines     map[string]Line // zone_id -> line
	activeLow bool
	on        map[string]bool // zone_id -> logical on/off, for AllOff/status
}

// NewBoard claims one output line per zone in pins, each pinned OFF at
// acquisition time, and returns a ready Board. Any acquisition failure
// tears down the lines already claimed and returns ErrHardwareInit.
func NewBoard(driver Driver, pins map[string]int, activeLow bool) (*Board, error) {
	b := &Board{
		driver:    driver,
		lines:     make(map[string]Line, len(pins)),
		activeLow: activeLow,
		on:        make(map[string]bool, len(pins)),
	}

	// Deterministic acquisition order keeps startup logs and failure
	// messages reproducible across runs.
	zoneIDs := make([]string, 0, len(pins))
	for zoneID := range pins {
		zoneIDs = append(zoneIDs, zoneID)
	}
	sort.Strings(zoneIDs)

	offLevel := b.levelFor(false)
	for _, zoneID := range zoneIDs {
		pin := pins[zoneID]
		line, err := driver.RequestLine(pin, offLevel)
		if err != nil {
			b.closeAll()
			return nil, fmt.Errorf("%w: zone %s pin %d: %v", domain.ErrHardwareInit, zoneID, pin, err)
		}
		b.lines[zoneID] = line
		b.on[zoneID] = false
	}
	return b, nil
}

// levelFor maps a logical on/off to the physical level, honoring polarity.
// active_low: ON is logic-low (0); otherwise ON is logic-high (1).
func (b *Board) levelFor(on bool) int {
	if b.activeLow {
		if on {
			return 0
		}
		return 1
	}
	if on {
		return 1
	}
	return 0
}

// Set drives zoneID's relay to the requested logical state. Unknown zone
// IDs are logged and otherwise ignored — callers are expected to have
// validated the zone exists before reaching hardware. Set never returns an error: a line, once
// acquired, only fails to write on a gone device, which is unrecoverable
// from this call site and is instead surfaced by the watchdog's deadline.
func (b *Board) Set(zoneID string, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, ok := b.lines[zoneID]
	if !ok {
		log.Printf("valve: set for unknown zone %s ignored", zoneID)
		return
	}
	_ = line.SetValue(b.levelFor(on))
	b.on[zoneID] = on
}

// IsOn reports the last logical state Set drove zoneID to.
func (b *Board) IsOn(zoneID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on[zoneID]
}

// AllOff drives every known zone to OFF. Used on the startup failure path,
// and on shutdown — it MUST run before Close so the relays end up in a
// safe resting state even if the process dies before the line is released.
func (b *Board) AllOff() {
	b.mu.Lock()
	defer b.mu.Unlock()
	offLevel := b.levelFor(false)
	for zoneID, line := range b.lines {
		_ = line.SetValue(offLevel)
		b.on[zoneID] = false
	}
}

// Close releases every claimed line and the underlying chip handle.
// Callers must call AllOff first.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Board) closeLocked() error {
	for _, line := range b.lines {
		_ = line.Close()
	}
	return b.driver.Close()
}

// closeAll is used during a failed NewBoard to release whatever was already
// claimed before returning the error.
func (b *Board) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.closeLocked()
}
