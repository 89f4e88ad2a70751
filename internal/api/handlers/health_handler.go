// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"net/http"
	"time"

	"github.com/nanaya/osu-server-spectator/internal/services/system"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// HealthHandler handles HTTP requests related to system health.
type HealthHandler struct {
	logger    *utils.Logger
	healthSvc *system.HealthService
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(logger *utils.Logger, healthSvc *system.HealthService) *HealthHandler {
	return &HealthHandler{
		logger:    logger.Named("health_handler"),
		healthSvc: healthSvc,
		startTime: time.Now(),
	}
}

// Check handles requests to check the health of the system.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	response := map[string]any{
		"status":     health.Status,
		"version":    health.Version,
		"uptime":     time.Since(h.startTime).String(),
		"memory":     health.MemStats,
		"components": health.Components,
		"goroutines": health.GoRoutines,
		"startTime":  health.StartTime,
	}

	statusCode := http.StatusOK
	if health.Status != system.StatusUp {
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, statusCode, response)
}

// Ready handles readiness probes. It reports ready only while every backing
// component is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	if health.Status == system.StatusDown {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"ready": true})
}
