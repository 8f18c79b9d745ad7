package sqlite

import (
	"database/sql"
	"errors"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// GetDailyCounters returns the counter row for (day, zone), or zeros if
// no mutation has happened yet for that key.
func (d *DB) GetDailyCounters(day, zoneID string) (domain.DailyCounter, error) {
	c := domain.DailyCounter{Day: day, ZoneID: zoneID}
	row := d.db.QueryRow(
		`SELECT open_sec, pulses FROM daily_counters WHERE day = ? AND zone_id = ?`,
		day, zoneID,
	)
	err := row.Scan(&c.OpenSec, &c.Pulses)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.DailyCounter{}, err
	}
	return c, nil
}

// AddOpenSeconds ensures the (day, zone) row exists and adds delta seconds
// to its open_sec counter.
func (d *DB) AddOpenSeconds(day, zoneID string, delta int) error {
	_, err := d.db.Exec(
		`INSERT INTO daily_counters (day, zone_id, open_sec, pulses) VALUES (?, ?, ?, 0)
		 ON CONFLICT(day, zone_id) DO UPDATE SET open_sec = open_sec + excluded.open_sec`,
		day, zoneID, delta,
	)
	return err
}

// AddPulse ensures the (day, zone) row exists and adds delta to its
// pulses counter.
func (d *DB) AddPulse(day, zoneID string, delta int) error {
	_, err := d.db.Exec(
		`INSERT INTO daily_counters (day, zone_id, open_sec, pulses) VALUES (?, ?, 0, ?)
		 ON CONFLICT(day, zone_id) DO UPDATE SET pulses = pulses + excluded.pulses`,
		day, zoneID, delta,
	)
	return err
}
