// Package ingest turns inbound bus messages into persistence writes,
// shared-state updates, and (for valve commands) safety-gated hardware
// actuation. One Handlers instance is wired to every subscribed topic
// filter by the Supervisor.
package ingest

import (
	"log"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
	"github.com/fieldwatch/irrigation-hub/internal/safety"
)

// Store is the persistence surface the ingest handlers need.
type Store interface {
	GetSensor(sensorID string) (*domain.SensorConfig, error)
	InsertReading(r domain.Reading) error
	GetDailyCounters(day, zoneID string) (domain.DailyCounter, error)
	AddOpenSeconds(day, zoneID string, delta int) error
	AddPulse(day, zoneID string, delta int) error
	InsertWateringEvent(e domain.WateringEvent) (int64, error)
}

// State is the shared-runtime-state surface the ingest handlers need.
type State interface {
	RecordReading(zoneID string, moisture float64, at time.Time)
	RecordNodeStatus(nodeID string, online bool, at time.Time)
	RecordError(at time.Time, detail string)
	RecordValve(zoneID string, open bool, at time.Time, detail string)
	OpenValve(zoneID string, at time.Time, reason domain.WateringReason) bool
	CloseValve(zoneID string, at time.Time) (elapsed time.Duration, reason domain.WateringReason, ok bool)
	TakePendingReason(zoneID string) domain.WateringReason
	CountOpenZones(excludeZoneID string) int
	IsZoneOpen(zoneID string) (open bool, known bool)
}

// Board is the valve-actuation surface the ingest handlers need.
type Board interface {
	Set(zoneID string, on bool)
}

// Gate evaluates whether a zone may be opened. safety.Gate satisfies
// this directly.
type Gate interface {
	Grant(zone domain.ZoneConfig, alreadyOn bool, openZonesExcluding int, maxConcurrentValves int, now time.Time) safety.Decision
}

// Handlers wires C1 (board), C2 (store), C3 (state), and C6 (gate)
// together to process every inbound message the bus adapter delivers.
type Handlers struct {
	store               Store
	state               State
	board               Board
	gate                Gate
	zones               map[string]domain.ZoneConfig
	mode                func() domain.OperationMode
	maxConcurrentValves func() int
}

// New constructs a Handlers instance. zones is the live zone config set;
// mode and maxConcurrentValves are read on every call so a config reload
// takes effect immediately.
func New(store Store, state State, board Board, gate Gate, zones map[string]domain.ZoneConfig, mode func() domain.OperationMode, maxConcurrentValves func() int) *Handlers {
	return &Handlers{
		store:               store,
		state:               state,
		board:               board,
		gate:                gate,
		zones:               zones,
		mode:                mode,
		maxConcurrentValves: maxConcurrentValves,
	}
}

// Dispatch routes one inbound bus message to the matching handler. Topics
// that match no known grammar are logged and dropped — the adapter only
// subscribes to the three filters these handlers understand, so this
// only fires on a broker misconfiguration.
func (h *Handlers) Dispatch(topic string, payload []byte) {
	now := time.Now()
	if nodeID, ok := bus.NodeIDOfReading(topic); ok {
		h.HandleTelemetry(nodeID, payload, now)
		return
	}
	if zoneID, ok := bus.ZoneIDOfSet(topic); ok {
		h.HandleValveCommand(zoneID, payload, now)
		return
	}
	if nodeID, ok := bus.NodeIDOfStatus(topic); ok {
		h.HandleNodeStatus(nodeID, payload, now)
		return
	}
	log.Printf("ingest: received message on unrecognised topic %q", topic)
}
