package ingest

import (
	"encoding/json"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
)

// HandleTelemetry processes one tele/<node_id>/reading message: one
// payload may carry readings from several sensors on the node.
func (h *Handlers) HandleTelemetry(nodeID string, payload []byte, now time.Time) {
	if len(payload) > bus.MaxTelemetryPayloadBytes {
		h.state.RecordError(now, "telemetry payload from node "+nodeID+" exceeds size cap")
		return
	}

	var msg bus.TelemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.state.RecordError(now, "malformed telemetry payload from node "+nodeID)
		return
	}
	if len(msg.Readings) > bus.MaxReadingsPerMessage {
		h.state.RecordError(now, "telemetry payload from node "+nodeID+" exceeds readings-per-message cap")
		return
	}

	sawAny := false
	for _, r := range msg.Readings {
		if h.ingestOneReading(nodeID, r, msg.TS, now) {
			sawAny = true
		}
	}
	if sawAny {
		h.state.RecordNodeStatus(nodeID, true, now)
	}
}

// ingestOneReading handles a single sensor's reading within a telemetry
// batch. tsUnixSeconds is the node-reported sample time; now is used only
// for event bookkeeping. Returns true if the reading was accepted.
func (h *Handlers) ingestOneReading(nodeID string, r bus.TelemetryReading, tsUnixSeconds int64, now time.Time) bool {
	sensorID := nodeID + "/" + r.SensorID
	sensor, err := h.store.GetSensor(sensorID)
	if err != nil || sensor == nil {
		return false
	}

	low, high := sensor.PlausibleRange()
	if int(r.Raw) < low || int(r.Raw) > high {
		h.state.RecordError(now, "implausible raw ADC value from sensor "+sensorID)
		return false
	}

	moisture := domain.ComputeMoisture(sensor.RawDry, sensor.RawWet, int(r.Raw))
	reading := domain.Reading{
		TSUnixSeconds:    tsUnixSeconds,
		SensorID:         sensorID,
		RawADC:           int(r.Raw),
		MoistureFraction: moisture,
	}
	if err := h.store.InsertReading(reading); err != nil {
		h.state.RecordError(now, "failed to persist reading from sensor "+sensorID)
		return false
	}

	h.state.RecordReading(sensor.ZoneID, moisture, now)
	return true
}
