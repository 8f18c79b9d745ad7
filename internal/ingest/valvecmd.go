package ingest

import (
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
	"github.com/fieldwatch/irrigation-hub/internal/infra/bus"
)

// HandleValveCommand processes one valve/<zone_id>/set message. Commands
// are only honored in Auto mode — Monitor mode drops them, recording why.
func (h *Handlers) HandleValveCommand(zoneID string, payload []byte, now time.Time) {
	if h.mode() != domain.ModeAuto {
		h.state.RecordError(now, "valve command for zone "+zoneID+" dropped: not in auto mode")
		return
	}

	zone, ok := h.zones[zoneID]
	if !ok {
		h.state.RecordError(now, "valve command for unknown zone "+zoneID)
		return
	}

	on, ok := bus.ParseValveCommand(payload)
	if !ok {
		h.state.RecordError(now, "malformed valve command for zone "+zoneID)
		return
	}

	if on {
		h.handleOpen(zone, now)
	} else {
		h.handleClose(zone, now)
	}
}

func (h *Handlers) handleOpen(zone domain.ZoneConfig, now time.Time) {
	alreadyOn, _ := h.state.IsZoneOpen(zone.ZoneID)
	openExcluding := h.state.CountOpenZones(zone.ZoneID)
	decision := h.gate.Grant(zone, alreadyOn, openExcluding, h.maxConcurrentValves(), now)
	if !decision.Granted {
		h.state.RecordError(now, "valve open refused for zone "+zone.ZoneID+": "+decision.Reason.Error())
		return
	}

	reason := h.state.TakePendingReason(zone.ZoneID)
	h.board.Set(zone.ZoneID, true)
	h.state.OpenValve(zone.ZoneID, now, reason)
	h.state.RecordValve(zone.ZoneID, true, now, "zone "+zone.ZoneID+" opened")

	day := domain.DayString(now)
	if err := h.store.AddPulse(day, zone.ZoneID, 1); err != nil {
		h.state.RecordError(now, "failed to record pulse for zone "+zone.ZoneID)
	}
}

func (h *Handlers) handleClose(zone domain.ZoneConfig, now time.Time) {
	h.board.Set(zone.ZoneID, false)
	elapsed, reason, hadOpenedAt := h.state.CloseValve(zone.ZoneID, now)
	h.state.RecordValve(zone.ZoneID, false, now, "zone "+zone.ZoneID+" closed")

	if !hadOpenedAt {
		return
	}

	day := domain.DayString(now)
	openSec := int(elapsed.Seconds())
	if err := h.store.AddOpenSeconds(day, zone.ZoneID, openSec); err != nil {
		h.state.RecordError(now, "failed to record open seconds for zone "+zone.ZoneID)
	}
	if _, err := h.store.InsertWateringEvent(domain.WateringEvent{
		TSStart: now.Add(-elapsed).Unix(),
		TSEnd:   now.Unix(),
		ZoneID:  zone.ZoneID,
		Reason:  reason,
		Result:  domain.ResultOK,
	}); err != nil {
		h.state.RecordError(now, "failed to record watering event for zone "+zone.ZoneID)
	}
}
