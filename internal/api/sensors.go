package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	sensors, err := s.store.ListSensors(zoneID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	sensor, err := s.store.GetSensor(sensorID)
	if errors.Is(err, domain.ErrSensorNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var sensor domain.SensorConfig
	if err := json.NewDecoder(r.Body).Decode(&sensor); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	knownZones, err := s.knownZoneIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if errs := sensor.Validate(knownZones); len(errs) > 0 {
		writeError(w, http.StatusUnprocessableEntity, joinValidationErrors(errs))
		return
	}
	if err := s.store.UpsertSensor(sensor); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sensor)
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	err := s.store.DeleteSensor(sensorID)
	switch {
	case errors.Is(err, domain.ErrSensorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// knownZoneIDs consults persistence rather than the server's startup-time
// zones map, since a zone created through the API moments earlier in the
// same request burst is valid for a sensor to reference immediately.
func (s *Server) knownZoneIDs() (map[string]bool, error) {
	zones, err := s.store.ListZones()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(zones))
	for _, z := range zones {
		known[z.ZoneID] = true
	}
	return known, nil
}
