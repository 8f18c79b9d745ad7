// Package api provides the hub's dashboard HTTP server: zone/sensor CRUD,
// read-only access to readings/watering-events/daily-counters, a liveness
// probe, and the Prometheus scrape endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/health"
	"github.com/fieldwatch/irrigation-hub/internal/state"
)

// Store is the persistence surface the dashboard API reads and writes.
type Store interface {
	UpsertZone(z domain.ZoneConfig) error
	GetZone(zoneID string) (*domain.ZoneConfig, error)
	ListZones() ([]domain.ZoneConfig, error)
	DeleteZone(zoneID string) error

	UpsertSensor(s domain.SensorConfig) error
	GetSensor(sensorID string) (*domain.SensorConfig, error)
	ListSensors(zoneID string) ([]domain.SensorConfig, error)
	DeleteSensor(sensorID string) error

	ListReadings(sensorID, zoneID string, limit, offset int) ([]domain.Reading, error)
	ListWateringEvents(zoneID string, limit, offset int) ([]domain.WateringEvent, error)
	GetDailyCounters(day, zoneID string) (domain.DailyCounter, error)

	Ping() error
}

// Server is the hub's dashboard HTTP server.
type Server struct {
	store   Store
	state   StatusSource
	checker HealthChecker
}

// StatusSource returns the current runtime snapshot. state.State satisfies
// this directly; tests supply a fake.
type StatusSource interface {
	ToStatus() state.Status
}

// HealthChecker reports the result of the background dependency checks.
// *health.Checker satisfies this; it is optional — with a nil checker,
// /api/health/detail reports {"enabled": false} and /health still does
// its plain database ping.
type HealthChecker interface {
	IsHealthy() bool
	Statuses() []health.Status
}

// NewServer constructs a Server. Zone and sensor writes persist to store
// immediately but do not reach the already-running scheduler/watchdog/
// board, which keep the zone set they were built with at startup — see
// DESIGN.md for why this is a deliberate simplification rather than an
// oversight. checker may be nil.
func NewServer(store Store, state StatusSource, checker HealthChecker) *Server {
	return &Server{store: store, state: state, checker: checker}
}

// Handler returns the chi router with every dashboard route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/health/detail", s.handleHealthDetail)

	r.Route("/api/zones", func(r chi.Router) {
		r.Get("/", s.handleListZones)
		r.Post("/", s.handleCreateZone)
		r.Get("/{zoneID}", s.handleGetZone)
		r.Put("/{zoneID}", s.handleUpdateZone)
		r.Delete("/{zoneID}", s.handleDeleteZone)
	})

	r.Route("/api/sensors", func(r chi.Router) {
		r.Get("/", s.handleListSensors)
		r.Post("/", s.handleCreateSensor)
		r.Get("/{sensorID}", s.handleGetSensor)
		r.Delete("/{sensorID}", s.handleDeleteSensor)
	})

	r.Get("/api/readings", s.handleListReadings)
	r.Get("/api/watering-events", s.handleListWateringEvents)
	r.Get("/api/counters/{zoneID}", s.handleGetCounters)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.ToStatus())
}

// handleHealthDetail reports the per-dependency breakdown (sqlite, mqtt,
// valve_board) behind the plain /health probe. Returns 200 with the
// checker disabled when no checker was wired.
func (s *Server) handleHealthDetail(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"enabled": true, "checks": s.checker.Statuses()})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
