package ingest

import (
	"testing"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/safety"
)

func TestHandleValveCommandOpenGrantedActuatesAndRecordsPulse(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	h.HandleValveCommand("z1", []byte("ON"), time.Now())

	if !board.on["z1"] {
		t.Fatalf("expected board to be actuated on")
	}
	if !state.open["z1"] {
		t.Fatalf("expected state to record zone open")
	}
	if len(store.pulses) != 1 {
		t.Fatalf("expected one pulse counted, got %d", len(store.pulses))
	}
}

func TestHandleValveCommandOpenRefusedDoesNotActuate(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: false, Reason: domain.ErrConcurrentCeiling}}, domain.ModeAuto, 2)

	h.HandleValveCommand("z1", []byte("ON"), time.Now())

	if board.on["z1"] {
		t.Fatalf("expected board to stay off when the gate refuses")
	}
	if len(state.errors) != 1 {
		t.Fatalf("expected one refusal event recorded, got %+v", state.errors)
	}
}

func TestHandleValveCommandClosePersistsSchedulerReason(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	state.SetPendingReason("z1", domain.ReasonScheduler)
	start := time.Now()
	h.HandleValveCommand("z1", []byte("ON"), start)

	h.HandleValveCommand("z1", []byte("OFF"), start.Add(30*time.Second))

	if board.on["z1"] {
		t.Fatalf("expected board to be actuated off")
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one watering event recorded, got %d", len(store.events))
	}
	if store.events[0].Reason != domain.ReasonScheduler {
		t.Fatalf("expected watering event reason scheduler, got %v", store.events[0].Reason)
	}
	if len(store.openSeconds) != 1 {
		t.Fatalf("expected open-seconds counter bumped once, got %d", len(store.openSeconds))
	}
}

func TestHandleValveCommandCloseOnAlreadyClosedZoneIsNoop(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	h.HandleValveCommand("z1", []byte("OFF"), time.Now())

	if len(store.events) != 0 {
		t.Fatalf("expected no watering event for an already-closed zone, got %d", len(store.events))
	}
}

func TestHandleValveCommandMonitorModeIsDropped(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeMonitor, 2)

	h.HandleValveCommand("z1", []byte("ON"), time.Now())

	if board.on["z1"] {
		t.Fatalf("expected monitor mode to drop the command before it reaches the board")
	}
	if len(state.errors) != 1 {
		t.Fatalf("expected one dropped-command event recorded, got %+v", state.errors)
	}
}

func TestHandleValveCommandUnknownZoneRecordsError(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	h.HandleValveCommand("ghost-zone", []byte("ON"), time.Now())

	if len(state.errors) != 1 {
		t.Fatalf("expected one unknown-zone event recorded, got %+v", state.errors)
	}
}

func TestHandleValveCommandMalformedPayloadRecordsError(t *testing.T) {
	store := newFakeStore()
	state := newFakeState()
	board := newFakeBoard()
	h := newHandlers(store, state, board, &fakeGate{decision: safety.Decision{Granted: true}}, domain.ModeAuto, 2)

	h.HandleValveCommand("z1", []byte("TOGGLE"), time.Now())

	if len(state.errors) != 1 {
		t.Fatalf("expected one malformed-command event recorded, got %+v", state.errors)
	}
}
