package api

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sensorID := q.Get("sensor_id")
	zoneID := q.Get("zone_id")
	limit, offset := parsePaging(q)

	readings, err := s.store.ListReadings(sensorID, zoneID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleListWateringEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoneID := q.Get("zone_id")
	limit, offset := parsePaging(q)

	events, err := s.store.ListWateringEvents(zoneID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func parsePaging(q map[string][]string) (limit, offset int) {
	limit = defaultLimit
	offset = 0
	if v, ok := q["limit"]; ok && len(v) > 0 {
		if n, err := strconv.Atoi(v[0]); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, ok := q["offset"]; ok && len(v) > 0 {
		if n, err := strconv.Atoi(v[0]); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
