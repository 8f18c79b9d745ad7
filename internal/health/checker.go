// Package health runs periodic liveness checks against the hub's own
// dependencies — the database, the MQTT broker, and the GPIO board — so the
// dashboard can show a single healthy/unhealthy verdict without callers
// polling each subsystem themselves.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/infra/valve"
)

// Pinger reports database reachability. *sqlite.DB satisfies this.
type Pinger interface {
	Ping() error
}

// ConnChecker reports broker connection state. *bus.Adapter satisfies this.
type ConnChecker interface {
	IsConnected() bool
}

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker builds a checker covering the three dependencies the daemon
// cannot run without: the SQLite handle, the MQTT adapter's connection
// state, and the valve board's claimed relay lines.
func NewChecker(db Pinger, adapter ConnChecker, board *valve.Board) *Checker {
	return &Checker{
		interval: 60 * time.Second,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
			},
			{
				Name: "mqtt",
				CheckFn: func(ctx context.Context) error {
					if !adapter.IsConnected() {
						return fmt.Errorf("broker not connected")
					}
					return nil
				},
			},
			{
				Name: "valve_board",
				CheckFn: func(ctx context.Context) error {
					if board == nil {
						return fmt.Errorf("board not initialized")
					}
					return nil
				},
			},
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass. Vacuously true before the
// first run.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
