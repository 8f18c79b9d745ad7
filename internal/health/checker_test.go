package health

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldwatch/irrigation-hub/internal/infra/valve"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

type fakeConnChecker struct{ connected bool }

func (f fakeConnChecker) IsConnected() bool { return f.connected }

func newTestBoard(t *testing.T) *valve.Board {
	t.Helper()
	driver := valve.NewMockDriver()
	board, err := valve.NewBoard(driver, map[string]int{"z1": 4}, false)
	if err != nil {
		t.Fatalf("NewBoard() error: %v", err)
	}
	t.Cleanup(func() { board.AllOff(); board.Close() })
	return board
}

func TestNewChecker(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, board)
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, board)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
}

func TestChecker_IsHealthy_AllPass(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, board)
	c.runAll(context.Background())

	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, board)

	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_SQLiteCheckFails(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{err: errors.New("database is locked")}, fakeConnChecker{connected: true}, board)
	c.runAll(context.Background())

	statuses := c.Statuses()
	for _, s := range statuses {
		if s.Name == "sqlite" && s.Healthy {
			t.Error("sqlite check should report unhealthy")
		}
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when sqlite check fails")
	}
}

func TestChecker_MQTTCheckFailsWhenDisconnected(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: false}, board)
	c.runAll(context.Background())

	statuses := c.Statuses()
	for _, s := range statuses {
		if s.Name == "mqtt" && s.Healthy {
			t.Error("mqtt check should report unhealthy when not connected")
		}
	}
}

func TestChecker_ValveBoardCheckFailsWhenNil(t *testing.T) {
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, nil)
	c.runAll(context.Background())

	statuses := c.Statuses()
	for _, s := range statuses {
		if s.Name == "valve_board" && s.Healthy {
			t.Error("valve_board check should report unhealthy when board is nil")
		}
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	board := newTestBoard(t)
	c := NewChecker(fakePinger{}, fakeConnChecker{connected: true}, board)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
