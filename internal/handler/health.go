package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports liveness and the database check.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

const healthProbeTimeout = 2 * time.Second

// GetHealth handles GET /healthz.
// It returns 200 {"status":"ok","database":"ok"} while the plan box store
// answers, and 503 with status "degraded" when it does not.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	if err := s.boxes.Health(ctx); err != nil {
		s.log.WarnContext(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	if len(s.openAPI) == 0 {
		writeJSON(w, http.StatusNotFound, notFoundBody("api document not bundled"))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.openAPI)
}
