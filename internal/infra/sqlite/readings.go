package sqlite

import (
	"database/sql"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// InsertReading appends one reading to the time series.
func (d *DB) InsertReading(r domain.Reading) error {
	_, err := d.db.Exec(
		`INSERT INTO readings (ts_unix_seconds, sensor_id, raw_adc, moisture_fraction)
		 VALUES (?, ?, ?, ?)`,
		r.TSUnixSeconds, r.SensorID, r.RawADC, r.MoistureFraction,
	)
	return err
}

// LatestZoneMoisture returns the newest reading across all sensors owning
// zoneID, or nil if the zone has no readings yet.
func (d *DB) LatestZoneMoisture(zoneID string) (*domain.Reading, error) {
	row := d.db.QueryRow(
		`SELECT r.ts_unix_seconds, r.sensor_id, r.raw_adc, r.moisture_fraction
		 FROM readings r JOIN sensors s ON s.sensor_id = r.sensor_id
		 WHERE s.zone_id = ?
		 ORDER BY r.ts_unix_seconds DESC LIMIT 1`, zoneID,
	)
	var rd domain.Reading
	err := row.Scan(&rd.TSUnixSeconds, &rd.SensorID, &rd.RawADC, &rd.MoistureFraction)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

// AvgZoneMoistureLastN returns the mean moisture fraction of the N newest
// readings across all sensors owning zoneID, regardless of which sensor
// produced each one (the plain-mean behaviour the spec explicitly calls
// for — see DESIGN.md's Open Question resolution). ok is false if there
// are no readings at all for the zone.
func (d *DB) AvgZoneMoistureLastN(zoneID string, n int) (avg float64, ok bool, err error) {
	rows, err := d.db.Query(
		`SELECT r.moisture_fraction
		 FROM readings r JOIN sensors s ON s.sensor_id = r.sensor_id
		 WHERE s.zone_id = ?
		 ORDER BY r.ts_unix_seconds DESC LIMIT ?`, zoneID, n,
	)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	var sum float64
	var count int
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return 0, false, err
		}
		sum += m
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float64(count), true, nil
}

// ListReadings returns readings filtered by sensor and/or zone, newest
// first. Either filter may be empty to mean "no filter".
func (d *DB) ListReadings(sensorID, zoneID string, limit, offset int) ([]domain.Reading, error) {
	query := `SELECT r.ts_unix_seconds, r.sensor_id, r.raw_adc, r.moisture_fraction
		FROM readings r`
	var args []any
	var where []string
	if zoneID != "" {
		query += ` JOIN sensors s ON s.sensor_id = r.sensor_id`
		where = append(where, `s.zone_id = ?`)
		args = append(args, zoneID)
	}
	if sensorID != "" {
		where = append(where, `r.sensor_id = ?`)
		args = append(args, sensorID)
	}
	if len(where) > 0 {
		query += ` WHERE `
		for i, w := range where {
			if i > 0 {
				query += ` AND `
			}
			query += w
		}
	}
	query += ` ORDER BY r.ts_unix_seconds DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		var r domain.Reading
		if err := rows.Scan(&r.TSUnixSeconds, &r.SensorID, &r.RawADC, &r.MoistureFraction); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// PruneOldReadings deletes readings timestamped before olderThanUnix (Unix
// seconds) and reclaims space with a bounded incremental vacuum pass.
func (d *DB) PruneOldReadings(olderThanUnix int64) (rowsDeleted int64, err error) {
	result, err := d.db.Exec(`DELETE FROM readings WHERE ts_unix_seconds < ?`, olderThanUnix)
	if err != nil {
		return 0, err
	}
	rowsDeleted, err = result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rowsDeleted > 0 {
		// PRAGMA arguments cannot be bound parameters; the page bound (100)
		// is part of the statement text.
		if _, err := d.db.Exec(`PRAGMA incremental_vacuum(100)`); err != nil {
			return rowsDeleted, err
		}
	}
	return rowsDeleted, nil
}
