// Package daemon wires the irrigation hub's components together and
// manages its configuration and process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fieldwatch/irrigation-hub/internal/api"
	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/health"
	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
	"github.com/fieldwatch/irrigation-hub/internal/infra/metrics"
	"github.com/fieldwatch/irrigation-hub/internal/infra/sqlite"
	"github.com/fieldwatch/irrigation-hub/internal/infra/valve"
	"github.com/fieldwatch/irrigation-hub/internal/ingest"
	"github.com/fieldwatch/irrigation-hub/internal/safety"
	"github.com/fieldwatch/irrigation-hub/internal/scheduler"
	"github.com/fieldwatch/irrigation-hub/internal/state"
	"github.com/fieldwatch/irrigation-hub/internal/watchdog"
)

const (
	mqttGracePeriod     = 60 * time.Second
	sysSampleInterval   = 15 * time.Second
	pruneInterval       = 24 * time.Hour
	readingRetention    = 90 * 24 * time.Hour
	shutdownGraceMillis = 1000
)

// Daemon is the running hub: every component wired together plus the
// background goroutines that drive them.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	State  *state.State
	Board  *valve.Board
	Bus    *bus.Adapter

	scheduler *scheduler.Scheduler
	watchdog  *watchdog.Watchdog
	handlers  *ingest.Handlers
	server    *api.Server
	sampler   state.Sampler
	checker   *health.Checker

	zones map[string]domain.ZoneConfig

	mode                domain.OperationMode
	maxConcurrentValves int

	// taskDeath receives the name of a safety-critical task (scheduler,
	// watchdog) the instant it returns or panics. Either is a fatal
	// condition: a valve could be open with nothing left watching it.
	taskDeath chan string

	cancel context.CancelFunc
}

// New loads configuration from the default location and builds a Daemon.
func New() (*Daemon, error) {
	cfg, err := LoadConfig("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds a Daemon from an already-loaded configuration:
// opens the database (restoring from backup first if the working file is
// missing or empty), claims the GPIO lines, connects to the broker, and
// wires every component together. Any failure here is a hardware-init or
// startup failure and should be treated as fatal by the caller, before any
// background task has started.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("configuration failed validation: %w", joinErrors(errs))
	}

	if err := sqlite.RestoreFromBackup(cfg.DB.URL, cfg.DB.BackupPath); err != nil {
		log.Printf("daemon: backup restore check failed, continuing with working database: %v", err)
	}

	db, err := sqlite.Open(cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	zones := make(map[string]domain.ZoneConfig, len(cfg.Zones))
	pins := make(map[string]int, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zones[z.ZoneID] = z
		pins[z.ZoneID] = z.ValveGPIOPin
		if err := db.UpsertZone(z); err != nil {
			db.Close()
			return nil, fmt.Errorf("persist zone %s: %w", z.ZoneID, err)
		}
	}
	for _, s := range cfg.Sensors {
		if err := db.UpsertSensor(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("persist sensor %s: %w", s.SensorID, err)
		}
	}

	driver, err := valve.NewGpiocdevDriver("gpiochip0")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrHardwareInit, err)
	}
	board, err := valve.NewBoard(driver, pins, cfg.Node.RelayActiveLow)
	if err != nil {
		db.Close()
		return nil, err
	}

	st := state.New()
	gate := safety.NewGate(db)

	d := &Daemon{
		Config:              cfg,
		DB:                  db,
		State:               st,
		Board:               board,
		zones:               zones,
		mode:                cfg.Mode,
		maxConcurrentValves: cfg.MaxConcurrentValves,
		sampler:             state.NewSampler(),
	}

	d.handlers = ingest.New(db, st, board, gate, zones, d.currentMode, d.currentMaxConcurrent)
	d.watchdog = watchdog.New(board, db, st, zones)

	busCfg := bus.Config{
		BrokerURL: fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
		ClientID:  "irrigation-hub",
		Username:  cfg.MQTT.User,
		Password:  cfg.MQTT.Pass,
	}
	adapter, err := bus.New(busCfg, d.handlers.Dispatch, d.onConnLost, d.onConnRestored)
	if err != nil {
		board.AllOff()
		board.Close()
		db.Close()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	d.Bus = adapter
	d.scheduler = scheduler.New(zones, db, st, adapter, d.currentMode, d.currentMaxConcurrent)
	d.checker = health.NewChecker(db, adapter, board)
	d.server = api.NewServer(db, st, d.checker)

	metrics.BusConnected.Set(1)
	return d, nil
}

// currentMode and currentMaxConcurrent are read by the scheduler and
// ingest handlers on every decision so a future config reload (API-driven
// zone edits take effect on the next restart; mode/concurrency could in
// principle be live-reloaded, but nothing currently mutates them after
// startup) is observed without any extra plumbing.
func (d *Daemon) currentMode() domain.OperationMode { return d.mode }
func (d *Daemon) currentMaxConcurrent() int          { return d.maxConcurrentValves }

func (d *Daemon) onConnLost(err error) {
	metrics.BusConnected.Set(0)
	d.State.RecordError(time.Now(), "bus connection lost: "+err.Error())
}

func (d *Daemon) onConnRestored() {
	metrics.BusConnected.Set(1)
	d.State.RecordSystem(time.Now(), "bus connection restored")
}

// Serve starts every background task and the dashboard HTTP server, and
// blocks until ctx is cancelled or a termination signal arrives. On exit
// it forces every valve off, takes a final backup, and announces the hub
// offline before releasing the GPIO lines.
//
// The scheduler and watchdog are safety-critical: nothing else in the
// process is watching an open valve. If either one returns or panics
// while ctx is still live, that is a fatal fault, not a clean shutdown —
// d.taskDeath carries the name to the goroutine below, which forces
// every valve off and exits the process rather than run on with a
// scheduler or watchdog missing.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.taskDeath = make(chan string, 2)

	d.runSupervised(ctx, "scheduler", d.scheduler.Run)
	d.runSupervised(ctx, "watchdog", d.watchdog.Run)
	go d.checker.Run(ctx)
	go d.runSystemSampler(ctx)
	go d.runBackupTicker(ctx)
	go d.runPruneTicker(ctx)
	go d.runNodeStaleSweep(ctx)
	go d.runMQTTGraceMonitor(ctx)

	addr := fmt.Sprintf(":%d", d.Config.Web.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		fatal := false
		select {
		case <-sigCh:
		case <-ctx.Done():
		case name := <-d.taskDeath:
			log.Printf("daemon: safety-critical task %q died, forcing emergency shutdown", name)
			d.State.RecordError(time.Now(), fmt.Sprintf("safety-critical task %q died, all zones forced off", name))
			fatal = true
		}

		cancel()
		d.shutdown(httpServer)
		if fatal {
			os.Exit(0)
		}
	}()

	log.Printf("daemon: irrigation hub serving dashboard on http://0.0.0.0%s", addr)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// runSupervised launches a safety-critical background task and watches it
// for the rest of ctx's life. A panic is recovered and reported the same
// as an early return: both signal on d.taskDeath exactly once, which the
// Serve goroutine treats as fatal. A return caused by ctx itself being
// cancelled is the normal shutdown path and is not reported.
func (d *Daemon) runSupervised(ctx context.Context, name string, run func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("daemon: safety-critical task %q panicked: %v", name, r)
				d.taskDeath <- name
				return
			}
			if ctx.Err() == nil {
				log.Printf("daemon: safety-critical task %q exited unexpectedly", name)
				d.taskDeath <- name
			}
		}()
		run(ctx)
	}()
}

// shutdown is the single emergency-stop path: every exit from Serve, clean,
// signalled, or triggered by a dead safety-critical task, funnels through
// here so a valve is never left open because one particular shutdown
// trigger forgot to force it closed.
func (d *Daemon) shutdown(httpServer *http.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	d.Board.AllOff()
	d.State.SetAllZonesOff(time.Now())

	if d.Config.DB.BackupPath != "" {
		d.runBackup("shutdown")
	}

	if err := d.Bus.PublishHubOffline(); err != nil {
		log.Printf("daemon: offline announcement failed: %v", err)
	}
	d.Bus.Close(shutdownGraceMillis)

	_ = httpServer.Shutdown(shutdownCtx)
	d.Board.Close()
	d.DB.Close()
}

// runBackup takes one database backup, tagging the attempt with a
// correlation ID that is written into the success or failure log line and,
// on failure, into the recorded error event alongside the backup error.
func (d *Daemon) runBackup(trigger string) {
	id := uuid.NewString()
	if err := d.DB.Backup(d.Config.DB.BackupPath); err != nil {
		log.Printf("daemon: %s backup failed correlation_id=%s: %v", trigger, id, err)
		d.State.RecordError(time.Now(), fmt.Sprintf("%s backup failed correlation_id=%s: %v", trigger, id, err))
		return
	}
	metrics.BackupsCompleted.Inc()
	log.Printf("daemon: %s backup completed correlation_id=%s", trigger, id)
}

// Close tears the daemon down outside of Serve's own signal handling —
// used by callers (tests, the CLI on an early error path) that never
// entered Serve's blocking loop.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Board != nil {
		d.Board.AllOff()
		d.Board.Close()
	}
	if d.Bus != nil {
		_ = d.Bus.PublishHubOffline()
		d.Bus.Close(shutdownGraceMillis)
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// runSystemSampler refreshes CPU/memory gauges and the shared-state
// snapshot every sysSampleInterval.
func (d *Daemon) runSystemSampler(ctx context.Context) {
	ticker := time.NewTicker(sysSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpuPct, memPct := d.sampler.Sample()
			d.State.UpdateSystemMetrics(cpuPct, memPct)
			metrics.CPUUsage.Set(cpuPct)
			metrics.MemoryUsage.Set(memPct)
		}
	}
}

// runBackupTicker takes a database backup every configured interval, if
// backups are configured at all.
func (d *Daemon) runBackupTicker(ctx context.Context) {
	if d.Config.DB.BackupPath == "" {
		return
	}
	interval := time.Duration(d.Config.DB.BackupIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runBackup("periodic")
		}
	}
}

// runPruneTicker removes readings older than the retention window once a
// day, reclaiming space via the incremental vacuum PruneOldReadings runs.
func (d *Daemon) runPruneTicker(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-readingRetention).Unix()
			n, err := d.DB.PruneOldReadings(cutoff)
			if err != nil {
				log.Printf("daemon: prune failed: %v", err)
				continue
			}
			if n > 0 {
				metrics.ReadingsPruned.Add(float64(n))
			}
		}
	}
}

// runNodeStaleSweep refreshes the node-online gauge every 30 s by counting
// the nodes whose last status announcement in shared state was "online".
// It does not compare last_seen against the node stale timeout, and it
// neither logs nor records stale or recovered nodes.
func (d *Daemon) runNodeStaleSweep(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := d.State.ToStatus()
			online := 0
			nodeIDs := make([]string, 0, len(status.Nodes))
			for id := range status.Nodes {
				nodeIDs = append(nodeIDs, id)
			}
			sort.Strings(nodeIDs)
			for _, id := range nodeIDs {
				if status.Nodes[id].Online {
					online++
				}
			}
			metrics.NodesOnline.Set(float64(online))
		}
	}
}

// runMQTTGraceMonitor forces every zone off if the bus has been
// disconnected continuously for longer than the grace period — auto mode
// cannot safely keep watering zones it can no longer receive commands or
// stuck-valve reports for.
func (d *Daemon) runMQTTGraceMonitor(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var disconnectedSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.Bus.IsConnected() {
				disconnectedSince = time.Time{}
				continue
			}
			if disconnectedSince.IsZero() {
				disconnectedSince = time.Now()
				continue
			}
			if time.Since(disconnectedSince) < mqttGracePeriod {
				continue
			}
			d.forceAllZonesOffForLostBus()
			disconnectedSince = time.Time{}
		}
	}
}

func (d *Daemon) forceAllZonesOffForLostBus() {
	now := time.Now()
	for zoneID := range d.zones {
		if elapsed, _, ok := d.State.CloseValve(zoneID, now); ok {
			d.Board.Set(zoneID, false)
			day := domain.DayString(now)
			if err := d.DB.AddOpenSeconds(day, zoneID, int(elapsed.Seconds())); err != nil {
				log.Printf("daemon: failed to record open seconds for zone %s during bus-loss shutoff: %v", zoneID, err)
			}
			if _, err := d.DB.InsertWateringEvent(domain.WateringEvent{
				TSStart: now.Add(-elapsed).Unix(),
				TSEnd:   now.Unix(),
				ZoneID:  zoneID,
				Reason:  domain.ReasonWatchdogClose,
				Result:  domain.ResultForceClosed,
			}); err != nil {
				log.Printf("daemon: failed to record watering event for zone %s during bus-loss shutoff: %v", zoneID, err)
			}
		}
	}
	detail := fmt.Sprintf("bus disconnected for over %s, forced all zones off", mqttGracePeriod)
	d.State.RecordError(now, detail)
	log.Printf("daemon: %s", detail)
}
