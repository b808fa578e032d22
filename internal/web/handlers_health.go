package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

type healthResponse struct {
	Status   string                   `json:"status"`
	Store    string                   `json:"store,omitempty"`
	Imports  core.ImportLimiterStatus `json:"imports"`
	Sessions int                      `json:"sessions"`
}

// handleHealth reports liveness, the record store and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Imports:  s.deps.Limiter.Status(),
		Sessions: s.registry.Len(),
	}
	status := http.StatusOK

	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Store = "ok"
		if err := s.deps.Store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = core.FormatUserError(err)
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
