package sqlite

import (
	"database/sql"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// UpsertSensor inserts or updates a sensor record.
func (d *DB) UpsertSensor(s domain.SensorConfig) error {
	_, err := d.db.Exec(
		`INSERT INTO sensors (sensor_id, node_id, zone_id, raw_dry, raw_wet)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(sensor_id) DO UPDATE SET
			node_id=excluded.node_id,
			zone_id=excluded.zone_id,
			raw_dry=excluded.raw_dry,
			raw_wet=excluded.raw_wet`,
		s.SensorID, s.NodeID, s.ZoneID, s.RawDry, s.RawWet,
	)
	return err
}

// GetSensor retrieves a sensor by ID.
func (d *DB) GetSensor(sensorID string) (*domain.SensorConfig, error) {
	row := d.db.QueryRow(
		`SELECT sensor_id, node_id, zone_id, raw_dry, raw_wet FROM sensors WHERE sensor_id = ?`,
		sensorID,
	)
	return scanSensor(row)
}

// ListSensors returns every configured sensor, optionally filtered by zone.
func (d *DB) ListSensors(zoneID string) ([]domain.SensorConfig, error) {
	var rows *sql.Rows
	var err error
	if zoneID == "" {
		rows, err = d.db.Query(`SELECT sensor_id, node_id, zone_id, raw_dry, raw_wet FROM sensors ORDER BY sensor_id`)
	} else {
		rows, err = d.db.Query(`SELECT sensor_id, node_id, zone_id, raw_dry, raw_wet FROM sensors WHERE zone_id = ? ORDER BY sensor_id`, zoneID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []domain.SensorConfig
	for rows.Next() {
		s, err := scanSensorRows(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *s)
	}
	return sensors, rows.Err()
}

// DeleteSensor removes a sensor record.
func (d *DB) DeleteSensor(sensorID string) error {
	result, err := d.db.Exec(`DELETE FROM sensors WHERE sensor_id = ?`, sensorID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrSensorNotFound
	}
	return nil
}

func scanSensor(s scanner) (*domain.SensorConfig, error) {
	var c domain.SensorConfig
	err := s.Scan(&c.SensorID, &c.NodeID, &c.ZoneID, &c.RawDry, &c.RawWet)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSensorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSensorRows(rows *sql.Rows) (*domain.SensorConfig, error) {
	return scanSensor(rows)
}
