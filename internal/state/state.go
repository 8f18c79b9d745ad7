// Package state holds the hub's in-memory snapshot of the world: the last
// known reading per sensor, each zone's valve state, node online/offline
// status, and a bounded ring of recent events for the dashboard. Every
// reader sees a defensive copy; nothing here blocks on I/O.
package state

import (
	"sync"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// NodeStatus is the last-seen status of a sensor/relay node.
type NodeStatus struct {
	NodeID   string    `json:"node_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// ZoneState is the current actuation state of one zone as observed by the
// runtime, independent of the scheduler's own internal state machine.
// OpenedAt mirrors ZoneRuntimeState's invariant: it is non-nil iff
// ValveOpen is true, and is the single source of truth every caller
// (ingest, watchdog, the daemon's bus-loss shutoff) uses to compute an
// open-duration on close.
type ZoneState struct {
	ZoneID        string                `json:"zone_id"`
	ValveOpen     bool                  `json:"valve_open"`
	OpenedAt      *time.Time            `json:"opened_at,omitempty"`
	OpenReason    domain.WateringReason `json:"open_reason,omitempty"`
	LastMoisture  float64               `json:"last_moisture"`
	LastReadingAt time.Time             `json:"last_reading_at,omitempty"`
}

// Status is the defensive-copy snapshot returned to callers — the API
// layer and CLI both render this directly.
type Status struct {
	Zones    map[string]ZoneState  `json:"zones"`
	Nodes    map[string]NodeStatus `json:"nodes"`
	Events   []domain.Event        `json:"events"`
	CPUPct   float64                `json:"cpu_pct"`
	MemPct   float64                `json:"mem_pct"`
	Uptime   time.Duration          `json:"uptime"`
	AsOf     time.Time              `json:"as_of"`
}

// State is the mutex-guarded shared runtime snapshot. One instance lives
// for the process lifetime and is shared by every component that needs to
// read or update current world state.
type State struct {
	mu            sync.RWMutex
	zones         map[string]ZoneState
	nodes         map[string]NodeStatus
	events        []domain.Event // ring buffer, oldest first
	pendingReason map[string]domain.WateringReason
	cpuPct        float64
	memPct        float64
	startedAt     time.Time
}

// New returns an empty State, ready for use.
func New() *State {
	return &State{
		zones:         make(map[string]ZoneState),
		nodes:         make(map[string]NodeStatus),
		pendingReason: make(map[string]domain.WateringReason),
		startedAt:     time.Now(),
	}
}

// RecordReading updates the zone's last-known moisture and appends a
// reading event to the ring.
func (s *State) RecordReading(zoneID string, moisture float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zones[zoneID]
	z.ZoneID = zoneID
	z.LastMoisture = moisture
	z.LastReadingAt = at
	s.zones[zoneID] = z
	s.appendEventLocked(domain.Event{
		TS:     at,
		Kind:   domain.EventReading,
		Detail: zoneID,
	})
}

// RecordNodeStatus updates a node's online/offline status. An online
// announcement bumps last_seen; an offline one leaves last_seen at its
// prior value, since it marks when the node was last actually heard from.
func (s *State) RecordNodeStatus(nodeID string, online bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodes[nodeID]
	n.NodeID = nodeID
	n.Online = online
	if online {
		n.LastSeen = at
	}
	s.nodes[nodeID] = n
}

// RecordValve updates a zone's observed valve state and appends a valve
// event to the ring, without touching OpenedAt bookkeeping. Use OpenValve/
// CloseValve instead when the caller needs the opened_at invariant
// maintained (manual commands, scheduler, watchdog all do).
func (s *State) RecordValve(zoneID string, open bool, at time.Time, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zones[zoneID]
	z.ZoneID = zoneID
	z.ValveOpen = open
	s.zones[zoneID] = z
	s.appendEventLocked(domain.Event{
		TS:     at,
		Kind:   domain.EventValve,
		Detail: detail,
	})
}

// OpenValve marks zoneID on, stamps opened_at, and records the reason
// this open episode started (scheduler vs manual_command) so the
// matching close can attribute its WateringEvent correctly. Returns
// false if the zone was already open (callers should treat this as a
// no-op, not an error — the safety gate is what prevents double-open,
// not this call).
func (s *State) OpenValve(zoneID string, at time.Time, reason domain.WateringReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zones[zoneID]
	if z.ValveOpen {
		return false
	}
	z.ZoneID = zoneID
	z.ValveOpen = true
	openedAt := at
	z.OpenedAt = &openedAt
	z.OpenReason = reason
	s.zones[zoneID] = z
	return true
}

// CloseValve marks zoneID off and returns the elapsed open duration and
// the reason its open episode was attributed to. ok is false if the zone
// was already closed, in which case elapsed is zero and no duration
// should be accumulated by the caller.
func (s *State) CloseValve(zoneID string, at time.Time) (elapsed time.Duration, reason domain.WateringReason, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zones[zoneID]
	if !z.ValveOpen || z.OpenedAt == nil {
		return 0, "", false
	}
	elapsed = at.Sub(*z.OpenedAt)
	reason = z.OpenReason
	z.ValveOpen = false
	z.OpenedAt = nil
	z.OpenReason = ""
	s.zones[zoneID] = z
	return elapsed, reason, true
}

// SetPendingReason records that the next grant for zoneID should be
// attributed to reason, consumed once by TakePendingReason. The
// scheduler uses this to mark its own loopback ON publish (which
// re-enters the ingest handler exactly like a dashboard command) as
// scheduler-initiated before the message round-trips back in.
func (s *State) SetPendingReason(zoneID string, reason domain.WateringReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReason[zoneID] = reason
}

// TakePendingReason returns and clears zoneID's pending reason, defaulting
// to manual_command if none was set — any valve/<zone>/set ON that did not
// come from the scheduler is, by elimination, a manual command.
func (s *State) TakePendingReason(zoneID string) domain.WateringReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.pendingReason[zoneID]
	if !ok {
		return domain.ReasonManualCommand
	}
	delete(s.pendingReason, zoneID)
	return reason
}

// IsZoneOpen reports whether zoneID's valve is currently open. known is
// false if the zone has never been observed.
func (s *State) IsZoneOpen(zoneID string) (open bool, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[zoneID]
	if !ok {
		return false, false
	}
	return z.ValveOpen, true
}

// OpenedSince returns the opened_at stamp for zoneID, if currently open.
func (s *State) OpenedSince(zoneID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[zoneID]
	if !ok || z.OpenedAt == nil {
		return time.Time{}, false
	}
	return *z.OpenedAt, true
}

// CountOpenZones returns how many zones other than excludeZoneID are
// currently marked open — the concurrency snapshot the safety gate and
// scheduler reason about.
func (s *State) CountOpenZones(excludeZoneID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id, z := range s.zones {
		if id == excludeZoneID {
			continue
		}
		if z.ValveOpen {
			n++
		}
	}
	return n
}

// RecordScheduler appends a scheduler-transition event to the ring.
func (s *State) RecordScheduler(at time.Time, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(domain.Event{TS: at, Kind: domain.EventScheduler, Detail: detail})
}

// RecordSystem appends a system-lifecycle event to the ring.
func (s *State) RecordSystem(at time.Time, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(domain.Event{TS: at, Kind: domain.EventSystem, Detail: detail})
}

// RecordError appends an error event to the ring.
func (s *State) RecordError(at time.Time, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(domain.Event{TS: at, Kind: domain.EventError, Detail: detail})
}

// appendEventLocked adds an event to the ring, evicting the oldest entry
// once the ring is at capacity. Caller must hold s.mu.
func (s *State) appendEventLocked(e domain.Event) {
	s.events = append(s.events, e)
	if len(s.events) > domain.MaxEventRing {
		s.events = s.events[len(s.events)-domain.MaxEventRing:]
	}
}

// SetAllZonesOff marks every known zone's valve closed, without emitting
// per-zone events — used once, alongside a single system event, during
// emergency shutdown.
func (s *State) SetAllZonesOff(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, z := range s.zones {
		z.ValveOpen = false
		z.OpenedAt = nil
		s.zones[id] = z
	}
	s.appendEventLocked(domain.Event{TS: at, Kind: domain.EventSystem, Detail: "all valves forced off"})
}

// UpdateSystemMetrics records the latest CPU/memory utilization samples.
func (s *State) UpdateSystemMetrics(cpuPct, memPct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpuPct = cpuPct
	s.memPct = memPct
}

// ZoneState returns a copy of one zone's current state, or false if the
// zone has never been observed.
func (s *State) ZoneState(zoneID string) (ZoneState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[zoneID]
	return z, ok
}

// IsNodeOnline reports the last-known online status for a node. Unknown
// nodes are reported offline.
func (s *State) IsNodeOnline(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeID].Online
}

// ToStatus returns a defensive-copy snapshot of the whole runtime state.
func (s *State) ToStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := make(map[string]ZoneState, len(s.zones))
	for k, v := range s.zones {
		zones[k] = v
	}
	nodes := make(map[string]NodeStatus, len(s.nodes))
	for k, v := range s.nodes {
		nodes[k] = v
	}
	events := make([]domain.Event, len(s.events))
	copy(events, s.events)

	return Status{
		Zones:  zones,
		Nodes:  nodes,
		Events: events,
		CPUPct: s.cpuPct,
		MemPct: s.memPct,
		Uptime: time.Since(s.startedAt),
		AsOf:   time.Now(),
	}
}
