package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

func (s *Server) handleGetCounters(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	day := r.URL.Query().Get("day")
	if day == "" {
		day = domain.DayString(time.Now())
	}

	counters, err := s.store.GetDailyCounters(day, zoneID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counters)
}
