package sqlite

import (
	"database/sql"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// UpsertZone inserts or updates a zone record.
func (d *DB) UpsertZone(z domain.ZoneConfig) error {
	_, err := d.db.Exec(
		`INSERT INTO zones (zone_id, name, min_moisture, target_moisture, pulse_sec, soak_min,
			stale_timeout_min, max_open_sec_per_day, max_pulses_per_day, valve_gpio_pin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(zone_id) DO UPDATE SET
			name=excluded.name,
			min_moisture=excluded.min_moisture,
			target_moisture=excluded.target_moisture,
			pulse_sec=excluded.pulse_sec,
			soak_min=excluded.soak_min,
			stale_timeout_min=excluded.stale_timeout_min,
			max_open_sec_per_day=excluded.max_open_sec_per_day,
			max_pulses_per_day=excluded.max_pulses_per_day,
			valve_gpio_pin=excluded.valve_gpio_pin`,
		z.ZoneID, z.Name, z.MinMoisture, z.TargetMoisture, z.PulseSec, z.SoakMin,
		z.StaleTimeoutMin, z.MaxOpenSecPerDay, z.MaxPulsesPerDay, z.ValveGPIOPin,
	)
	return err
}

// GetZone retrieves a zone by ID.
func (d *DB) GetZone(zoneID string) (*domain.ZoneConfig, error) {
	row := d.db.QueryRow(
		`SELECT zone_id, name, min_moisture, target_moisture, pulse_sec, soak_min,
			stale_timeout_min, max_open_sec_per_day, max_pulses_per_day, valve_gpio_pin
		 FROM zones WHERE zone_id = ?`, zoneID,
	)
	return scanZone(row)
}

// ListZones returns every configured zone ordered by zone_id.
func (d *DB) ListZones() ([]domain.ZoneConfig, error) {
	rows, err := d.db.Query(
		`SELECT zone_id, name, min_moisture, target_moisture, pulse_sec, soak_min,
			stale_timeout_min, max_open_sec_per_day, max_pulses_per_day, valve_gpio_pin
		 FROM zones ORDER BY zone_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []domain.ZoneConfig
	for rows.Next() {
		z, err := scanZoneRows(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	return zones, rows.Err()
}

// DeleteZone removes a zone record. Fails with ErrZoneHasSensors if any
// sensor still references it (the foreign key constraint trips first).
func (d *DB) DeleteZone(zoneID string) error {
	result, err := d.db.Exec(`DELETE FROM zones WHERE zone_id = ?`, zoneID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrZoneHasSensors
		}
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrZoneNotFound
	}
	return nil
}

func scanZone(s scanner) (*domain.ZoneConfig, error) {
	var z domain.ZoneConfig
	err := s.Scan(&z.ZoneID, &z.Name, &z.MinMoisture, &z.TargetMoisture,
		&z.PulseSec, &z.SoakMin, &z.StaleTimeoutMin, &z.MaxOpenSecPerDay,
		&z.MaxPulsesPerDay, &z.ValveGPIOPin)
	if err == sql.ErrNoRows {
		return nil, domain.ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

func scanZoneRows(rows *sql.Rows) (*domain.ZoneConfig, error) {
	return scanZone(rows)
}
