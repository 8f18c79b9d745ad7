package safety

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

type fakeCounters struct {
	counters domain.DailyCounter
	err      error
}

func (f *fakeCounters) GetDailyCounters(day, zoneID string) (domain.DailyCounter, error) {
	return f.counters, f.err
}

func testZone() domain.ZoneConfig {
	return domain.ZoneConfig{
		ZoneID:           "z1",
		MaxPulsesPerDay:  6,
		MaxOpenSecPerDay: 180,
	}
}

func TestGrantAllowsFreshZone(t *testing.T) {
	g := NewGate(&fakeCounters{})
	d := g.Grant(testZone(), false, 0, 2, time.Now())
	if !d.Granted {
		t.Fatalf("expected grant, got refusal: %v", d.Reason)
	}
}

func TestGrantRefusesAlreadyOn(t *testing.T) {
	g := NewGate(&fakeCounters{})
	d := g.Grant(testZone(), true, 0, 2, time.Now())
	if d.Granted || !errors.Is(d.Reason, domain.ErrZoneAlreadyOn) {
		t.Fatalf("expected ErrZoneAlreadyOn, got %+v", d)
	}
}

func TestGrantRefusesAtConcurrencyCeiling(t *testing.T) {
	g := NewGate(&fakeCounters{})
	d := g.Grant(testZone(), false, 2, 2, time.Now())
	if d.Granted || !errors.Is(d.Reason, domain.ErrConcurrentCeiling) {
		t.Fatalf("expected ErrConcurrentCeiling, got %+v", d)
	}
}

func TestGrantRefusesPulseCapReached(t *testing.T) {
	g := NewGate(&fakeCounters{counters: domain.DailyCounter{Pulses: 6}})
	d := g.Grant(testZone(), false, 0, 2, time.Now())
	if d.Granted || !errors.Is(d.Reason, domain.ErrDailyPulseCapReached) {
		t.Fatalf("expected ErrDailyPulseCapReached, got %+v", d)
	}
}

func TestGrantRefusesOpenSecCapReached(t *testing.T) {
	g := NewGate(&fakeCounters{counters: domain.DailyCounter{OpenSec: 180}})
	d := g.Grant(testZone(), false, 0, 2, time.Now())
	if d.Granted || !errors.Is(d.Reason, domain.ErrDailyOpenSecCapReached) {
		t.Fatalf("expected ErrDailyOpenSecCapReached, got %+v", d)
	}
}

func TestGrantFailsOpenOnCounterError(t *testing.T) {
	g := NewGate(&fakeCounters{err: errors.New("disk gone")})
	d := g.Grant(testZone(), false, 0, 2, time.Now())
	if !d.Granted {
		t.Fatalf("expected fail-open grant on counter-read error, got refusal: %v", d.Reason)
	}
}
