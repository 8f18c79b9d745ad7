package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.ListZones()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	z, err := s.store.GetZone(zoneID)
	if errors.Is(err, domain.ErrZoneNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, z)
}

// handleCreateZone persists a new zone. The running scheduler/watchdog/
// board keep their startup-time zone set until the hub restarts — see
// DESIGN.md.
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var z domain.ZoneConfig
	if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if errs := z.Validate(); len(errs) > 0 {
		writeError(w, http.StatusUnprocessableEntity, joinValidationErrors(errs))
		return
	}
	if err := s.store.UpsertZone(z); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	var z domain.ZoneConfig
	if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	z.ZoneID = zoneID
	if errs := z.Validate(); len(errs) > 0 {
		writeError(w, http.StatusUnprocessableEntity, joinValidationErrors(errs))
		return
	}
	if err := s.store.UpsertZone(z); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	err := s.store.DeleteZone(zoneID)
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrZoneHasSensors):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func joinValidationErrors(errs []error) string {
	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return msg
}
