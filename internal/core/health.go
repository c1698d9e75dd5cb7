package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database ping inside the health probe.
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// HandleHealth reports service liveness and database reachability. Returns
// 200 when the database answers a ping within the timeout, 503 otherwise.
// Mounted outside /v1 so load balancers can probe without the API key.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.ErrorContext(r.Context(), "health check database ping failed", "error", err)
		JSON(w, r, http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Database: "ok"})
}
