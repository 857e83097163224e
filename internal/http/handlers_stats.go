package http

import (
	"net/http"

	applog "expenses/internal/log"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.storeError(w, r, "Failed to compute stats", err, applog.OpStats, nil)
		return
	}
	NewResponse().JSON(stats).Write(w)
}
