// Package sqlite provides the hub's embedded persistent storage.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates or opens the SQLite database at the given file path.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer: cap at one open connection and serialize
	// through busy_timeout rather than risk SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(2)

	d := &DB{db: db, path: path}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations and converts the database to
// incremental-vacuum mode on first run (a one-time full rewrite if the
// file pre-exists in legacy rollback-journal/full-vacuum mode).
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			zone_id              TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			min_moisture         REAL NOT NULL,
			target_moisture      REAL NOT NULL,
			pulse_sec            INTEGER NOT NULL,
			soak_min             INTEGER NOT NULL,
			stale_timeout_min    INTEGER NOT NULL,
			max_open_sec_per_day INTEGER NOT NULL,
			max_pulses_per_day   INTEGER NOT NULL,
			valve_gpio_pin       INTEGER NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS sensors (
			sensor_id TEXT PRIMARY KEY,
			node_id   TEXT NOT NULL,
			zone_id   TEXT NOT NULL REFERENCES zones(zone_id),
			raw_dry   INTEGER NOT NULL,
			raw_wet   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensors_zone ON sensors(zone_id)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_unix_seconds   INTEGER NOT NULL,
			sensor_id         TEXT NOT NULL,
			raw_adc           INTEGER NOT NULL,
			moisture_fraction REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_sensor_ts ON readings(sensor_id, ts_unix_seconds DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts_unix_seconds)`,
		`CREATE TABLE IF NOT EXISTS watering_events (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			correlation_id TEXT NOT NULL DEFAULT '',
			ts_start       INTEGER NOT NULL,
			ts_end         INTEGER NOT NULL,
			zone_id        TEXT NOT NULL,
			reason         TEXT NOT NULL,
			result         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watering_events_zone_ts ON watering_events(zone_id, ts_start DESC)`,
		`CREATE TABLE IF NOT EXISTS daily_counters (
			day      TEXT NOT NULL,
			zone_id  TEXT NOT NULL,
			open_sec INTEGER NOT NULL DEFAULT 0,
			pulses   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (day, zone_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return d.ensureIncrementalVacuum()
}

// ensureIncrementalVacuum converts the database file to auto_vacuum =
// INCREMENTAL if it isn't already. Switching auto_vacuum modes requires a
// full VACUUM, so this only runs once per database file's lifetime.
func (d *DB) ensureIncrementalVacuum() error {
	var mode int
	if err := d.db.QueryRow(`PRAGMA auto_vacuum`).Scan(&mode); err != nil {
		return fmt.Errorf("read auto_vacuum mode: %w", err)
	}
	const incremental = 2
	if mode == incremental {
		return nil
	}
	if _, err := d.db.Exec(`PRAGMA auto_vacuum = INCREMENTAL`); err != nil {
		return fmt.Errorf("set auto_vacuum mode: %w", err)
	}
	if _, err := d.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum after auto_vacuum change: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
