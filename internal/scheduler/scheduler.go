// Package scheduler runs the per-zone pulse/soak irrigation cycle: a
// 30 s tick that decides, per zone, whether to start watering, end a
// pulse, or finish soaking — entirely by publishing valve commands back
// onto the bus, the same path a manual command takes.
package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
)

const (
	tickInterval = 30 * time.Second
	// AvgWindow is the number of newest readings averaged per zone
	// before a watering decision is made.
	AvgWindow = 5
)

// zonePhase is the tagged-union scheduler state for one zone.
type zonePhase int

const (
	phaseIdle zonePhase = iota
	phaseWatering
	phaseSoaking
)

type zoneEntry struct {
	phase     zonePhase
	startedAt time.Time // valid when phase == phaseWatering
	until     time.Time // valid when phase == phaseSoaking
}

// Store is the subset of persistence the scheduler reads.
type Store interface {
	LatestZoneMoisture(zoneID string) (*domain.Reading, error)
	AvgZoneMoistureLastN(zoneID string, n int) (avg float64, ok bool, err error)
	GetDailyCounters(day, zoneID string) (domain.DailyCounter, error)
}

// State is the subset of shared runtime state the scheduler reads and
// writes. It never drives the valve board directly — only the ingest
// handlers (via a published command) do that.
type State interface {
	IsZoneOpen(zoneID string) (open bool, known bool)
	CountOpenZones(excludeZoneID string) int
	RecordScheduler(at time.Time, detail string)
	SetPendingReason(zoneID string, reason domain.WateringReason)
}

// Publisher is the bus capability the scheduler needs: publishing a valve
// command and reporting whether the bus is currently connected.
type Publisher interface {
	Publish(topic string, retained bool, payload string) error
	IsConnected() bool
}

// Scheduler evaluates every configured zone once per tick.
type Scheduler struct {
	mu                  sync.Mutex
	zones               map[string]domain.ZoneConfig
	entries             map[string]*zoneEntry
	store               Store
	state               State
	publisher           Publisher
	mode                func() domain.OperationMode
	maxConcurrentValves func() int
}

// New constructs a Scheduler. mode and maxConcurrentValves are read live
// on every tick so a config reload takes effect without a restart.
func New(zones map[string]domain.ZoneConfig, store Store, state State, publisher Publisher, mode func() domain.OperationMode, maxConcurrentValves func() int) *Scheduler {
	entries := make(map[string]*zoneEntry, len(zones))
	for id := range zones {
		entries[id] = &zoneEntry{phase: phaseIdle}
	}
	return &Scheduler{
		zones:               zones,
		entries:             entries,
		store:               store,
		state:               state,
		publisher:           publisher,
		mode:                mode,
		maxConcurrentValves: maxConcurrentValves,
	}
}

// Run blocks, ticking every 30 s until ctx is cancelled. Per the one-tick
// warm-up requirement, the scheduler does not evaluate any zone until the
// first tick fires — readings need a moment to arrive after startup.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(time.Now())
		}
	}
}

// Tick evaluates every zone once, in sorted zone_id order so results are
// reproducible across runs regardless of map iteration order.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zoneIDs := make([]string, 0, len(s.zones))
	for id := range s.zones {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Strings(zoneIDs)

	mode := s.mode()
	maxConcurrent := s.maxConcurrentValves()
	tickLocalStarted := 0

	for _, zoneID := range zoneIDs {
		zone := s.zones[zoneID]
		entry := s.entries[zoneID]
		switch entry.phase {
		case phaseIdle:
			if s.evaluateIdle(zone, entry, mode, maxConcurrent, tickLocalStarted, now) {
				tickLocalStarted++
			}
		case phaseWatering:
			s.evaluateWatering(zone, entry, now)
		case phaseSoaking:
			s.evaluateSoaking(zone, entry, now)
		}
	}
}

// evaluateIdle returns true if this zone transitioned to Watering this
// tick, so the caller can bump the tick-local started counter.
func (s *Scheduler) evaluateIdle(zone domain.ZoneConfig, entry *zoneEntry, mode domain.OperationMode, maxConcurrent, tickLocalStarted int, now time.Time) bool {
	monitorOnly := mode == domain.ModeMonitor

	if !monitorOnly {
		if !s.publisher.IsConnected() {
			return false
		}
		if open, known := s.state.IsZoneOpen(zone.ZoneID); known && open {
			return false
		}
		active := s.state.CountOpenZones(zone.ZoneID) + tickLocalStarted
		if active >= maxConcurrent {
			return false
		}
	}

	reading, err := s.store.LatestZoneMoisture(zone.ZoneID)
	if err != nil || reading == nil {
		return false
	}
	staleAfter := time.Duration(zone.StaleTimeoutMin) * time.Minute
	if now.Sub(time.Unix(reading.TSUnixSeconds, 0)) > staleAfter {
		return false
	}

	day := domain.DayString(now)
	counters, err := s.store.GetDailyCounters(day, zone.ZoneID)
	if err == nil {
		if counters.Pulses >= zone.MaxPulsesPerDay || counters.OpenSec >= zone.MaxOpenSecPerDay {
			return false
		}
	}

	avg, ok, err := s.store.AvgZoneMoistureLastN(zone.ZoneID, AvgWindow)
	if err != nil || !ok {
		return false
	}
	if avg >= zone.MinMoisture {
		return false
	}

	if monitorOnly {
		s.state.RecordScheduler(now, "low moisture alert: zone "+zone.ZoneID)
		return false
	}

	s.state.SetPendingReason(zone.ZoneID, domain.ReasonScheduler)
	if err := s.publisher.Publish(bus.ValveSetTopic(zone.ZoneID), false, "ON"); err != nil {
		log.Printf("scheduler: publish ON failed for zone %s: %v", zone.ZoneID, err)
		return false
	}
	entry.phase = phaseWatering
	entry.startedAt = now
	s.state.RecordScheduler(now, "zone "+zone.ZoneID+" watering started")
	return true
}

func (s *Scheduler) evaluateWatering(zone domain.ZoneConfig, entry *zoneEntry, now time.Time) {
	elapsed := now.Sub(entry.startedAt)
	if elapsed < time.Duration(zone.PulseSec)*time.Second {
		return
	}
	if err := s.publisher.Publish(bus.ValveSetTopic(zone.ZoneID), false, "OFF"); err != nil {
		log.Printf("scheduler: publish OFF failed for zone %s, leaving to watchdog: %v", zone.ZoneID, err)
		return
	}
	entry.phase = phaseSoaking
	entry.until = now.Add(time.Duration(zone.SoakMin) * time.Minute)
	s.state.RecordScheduler(now, "zone "+zone.ZoneID+" soaking")
}

func (s *Scheduler) evaluateSoaking(zone domain.ZoneConfig, entry *zoneEntry, now time.Time) {
	if now.Before(entry.until) {
		return
	}
	// Whatever the read outcome, soaking always ends in Idle — either the
	// cycle is complete, or the zone re-evaluates next tick under full
	// guards.
	entry.phase = phaseIdle
	avg, ok, err := s.store.AvgZoneMoistureLastN(zone.ZoneID, AvgWindow)
	if err != nil || !ok {
		s.state.RecordScheduler(now, "zone "+zone.ZoneID+" soak ended, reading unavailable")
		return
	}
	if avg >= zone.TargetMoisture {
		s.state.RecordScheduler(now, "zone "+zone.ZoneID+" cycle complete")
	} else {
		s.state.RecordScheduler(now, "zone "+zone.ZoneID+" soak ended below target, re-evaluating")
	}
}
