// Package metrics provides Prometheus metrics for the irrigation hub:
// counters, gauges, and histograms for ingest, valve actuation, the safety
// gate, the watchdog, and the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ingest ─────────────────────────────────────────────────────────────────

// ReadingsIngested tracks accepted sensor readings per zone.
var ReadingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "readings_ingested_total",
	Help:      "Total sensor readings accepted, by zone.",
}, []string{"zone"})

// ReadingsRejected tracks readings dropped by ingest, by reason.
var ReadingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "readings_rejected_total",
	Help:      "Total sensor readings rejected, by reason.",
}, []string{"reason"})

// ─── Valves ─────────────────────────────────────────────────────────────────

// ValveOpens tracks valve-open events by zone and trigger reason.
var ValveOpens = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "valve_opens_total",
	Help:      "Total valve open events, by zone and reason.",
}, []string{"zone", "reason"})

// ValveOpenSeconds tracks cumulative open duration per zone.
var ValveOpenSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "valve_open_seconds_total",
	Help:      "Cumulative valve-open duration in seconds, by zone.",
}, []string{"zone"})

// ValveOpenCurrent reports whether a zone's valve is currently open (0/1).
var ValveOpenCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "valve_open_current",
	Help:      "Whether a zone's valve is open right now (1) or closed (0).",
}, []string{"zone"})

// ─── Safety gate ────────────────────────────────────────────────────────────

// SafetyRefusals tracks valve-open refusals by zone and the rule that fired.
var SafetyRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "safety_refusals_total",
	Help:      "Total valve-open requests refused by the safety gate, by zone and reason.",
}, []string{"zone", "reason"})

// DailyOpenSeconds is the gauge for the per-zone daily open-seconds
// counter. No code path in the hub sets it; it stays at zero.
var DailyOpenSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "daily_open_seconds",
	Help:      "Cumulative open-seconds for the current UTC day, by zone.",
}, []string{"zone"})

// DailyPulses mirrors the persisted per-zone daily pulse counter.
var DailyPulses = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "daily_pulses",
	Help:      "Cumulative pulse count for the current UTC day, by zone.",
}, []string{"zone"})

// ─── Watchdog ───────────────────────────────────────────────────────────────

// WatchdogForceCloses tracks stuck-valve force-closes by zone.
var WatchdogForceCloses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "watchdog_force_closes_total",
	Help:      "Total valves force-closed by the watchdog, by zone.",
}, []string{"zone"})

// ─── Scheduler ──────────────────────────────────────────────────────────────

// SchedulerCyclesStarted tracks watering cycles the scheduler initiated.
var SchedulerCyclesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "scheduler_cycles_started_total",
	Help:      "Total watering cycles started by the scheduler, by zone.",
}, []string{"zone"})

// SchedulerTickDuration tracks how long one Tick() call took to evaluate
// every configured zone.
var SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "irrigation",
	Name:      "scheduler_tick_duration_seconds",
	Help:      "Duration of one scheduler tick across all configured zones.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// ─── Bus / nodes ────────────────────────────────────────────────────────────

// BusConnected reports whether the bus adapter is currently connected to
// the broker (1) or not (0).
var BusConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "bus_connected",
	Help:      "Whether the bus adapter is connected to the broker (1) or not (0).",
})

// NodesOnline tracks the count of sensor/relay nodes currently online.
var NodesOnline = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "nodes_online",
	Help:      "Number of sensor/relay nodes currently reporting online.",
})

// ─── System ─────────────────────────────────────────────────────────────────

// CPUUsage tracks host CPU usage percentage.
var CPUUsage = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "cpu_usage_percent",
	Help:      "Current host CPU usage percentage.",
})

// MemoryUsage tracks host memory usage percentage.
var MemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "irrigation",
	Name:      "memory_usage_percent",
	Help:      "Current host memory usage percentage.",
})

// ─── Database ───────────────────────────────────────────────────────────────

// BackupsCompleted tracks successful database backups.
var BackupsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "backups_completed_total",
	Help:      "Total successful database backups.",
})

// ReadingsPruned tracks rows removed by the retention pruner.
var ReadingsPruned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "irrigation",
	Name:      "readings_pruned_total",
	Help:      "Total reading rows removed by the retention pruner.",
})
