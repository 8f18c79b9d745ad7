package sqlite

import (
	"github.com/google/uuid"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

// InsertWateringEvent appends one watering-cycle record. A blank
// CorrelationID is assigned a fresh UUID so every stored event carries a
// unique one.
func (d *DB) InsertWateringEvent(e domain.WateringEvent) (int64, error) {
	if e.CorrelationID == "" {
		e.CorrelationID = uuid.NewString()
	}
	result, err := d.db.Exec(
		`INSERT INTO watering_events (correlation_id, ts_start, ts_end, zone_id, reason, result)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.CorrelationID, e.TSStart, e.TSEnd, e.ZoneID, string(e.Reason), string(e.Result),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListWateringEvents returns watering events, optionally filtered by
// zone, newest first.
func (d *DB) ListWateringEvents(zoneID string, limit, offset int) ([]domain.WateringEvent, error) {
	query := `SELECT id, correlation_id, ts_start, ts_end, zone_id, reason, result FROM watering_events`
	var args []any
	if zoneID != "" {
		query += ` WHERE zone_id = ?`
		args = append(args, zoneID)
	}
	query += ` ORDER BY ts_start DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.WateringEvent
	for rows.Next() {
		var e domain.WateringEvent
		var reason, result string
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.TSStart, &e.TSEnd, &e.ZoneID, &reason, &result); err != nil {
			return nil, err
		}
		e.Reason = domain.WateringReason(reason)
		e.Result = domain.WateringResult(result)
		events = append(events, e)
	}
	return events, rows.Err()
}
