package ingest

import (
	"testing"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/safety"
)

func TestHandleTelemetryPersistsReadingAndUpdatesState(t *testing.T) {
	store := newFakeStore()
	store.sensors["node-1/a"] = &domain.SensorConfig{SensorID: "node-1/a", ZoneID: "z1", RawDry: 3000, RawWet: 1000}
	state := newFakeState()
	h := newHandlers(store, state, newFakeBoard(), &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	payload := []byte(`{"ts":1700000000,"readings":[{"sensor_id":"a","raw":2000}]}`)
	h.HandleTelemetry("node-1", payload, time.Now())

	if len(store.readings) != 1 {
		t.Fatalf("expected 1 reading persisted, got %d", len(store.readings))
	}
	if store.readings[0].TSUnixSeconds != 1700000000 {
		t.Fatalf("expected node-reported timestamp used, got %d", store.readings[0].TSUnixSeconds)
	}
	if got := state.readings["z1"]; got <= 0 {
		t.Fatalf("expected zone moisture recorded, got %v", got)
	}
}

func TestHandleTelemetryRejectsImplausibleReading(t *testing.T) {
	store := newFakeStore()
	store.sensors["node-1/a"] = &domain.SensorConfig{SensorID: "node-1/a", ZoneID: "z1", RawDry: 3000, RawWet: 1000}
	state := newFakeState()
	h := newHandlers(store, state, newFakeBoard(), &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	payload := []byte(`{"ts":1700000000,"readings":[{"sensor_id":"a","raw":999999}]}`)
	h.HandleTelemetry("node-1", payload, time.Now())

	if len(store.readings) != 0 {
		t.Fatalf("expected implausible reading rejected, got %d persisted", len(store.readings))
	}
	if len(state.errors) != 1 {
		t.Fatalf("expected one error event recorded, got %+v", state.errors)
	}
}

func TestHandleTelemetryUnknownSensorIsSkipped(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	h := newHandlers(store, state, newFakeBoard(), &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	payload := []byte(`{"ts":1700000000,"readings":[{"sensor_id":"ghost","raw":2000}]}`)
	h.HandleTelemetry("node-1", payload, time.Now())

	if len(store.readings) != 0 {
		t.Fatalf("expected unknown sensor reading dropped, got %d persisted", len(store.readings))
	}
	if state.nodeOnline["node-1"] {
		t.Fatalf("expected node not marked online when no reading was accepted")
	}
}

func TestHandleTelemetryMalformedPayloadRecordsError(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	h := newHandlers(store, state, newFakeBoard(), &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	h.HandleTelemetry("node-1", []byte("not json"), time.Now())

	if len(state.errors) != 1 {
		t.Fatalf("expected one malformed-payload error recorded, got %+v", state.errors)
	}
}

func TestHandleTelemetryOversizePayloadRejected(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	h := newHandlers(store, state, newFakeBoard(), &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	huge := make([]byte, 5000)
	for i := range huge {
		huge[i] = 'x'
	}
	h.HandleTelemetry("node-1", huge, time.Now())

	if len(state.errors) != 1 {
		t.Fatalf("expected oversize payload rejected with one error event, got %+v", state.errors)
	}
}
