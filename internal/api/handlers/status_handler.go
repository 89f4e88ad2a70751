package handlers

import (
	"net/http"
	"time"

	"github.com/nanaya/osu-server-spectator/internal/db/redis/managers"
	"github.com/nanaya/osu-server-spectator/internal/services/multiplayer"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// ConnectionCounter reports the number of open transport connections.
type ConnectionCounter interface {
	ClientCount() int
}

// StatusHandler reports live server-side state for operators.
type StatusHandler struct {
	logger      *utils.Logger
	coordinator *multiplayer.Coordinator
	connections ConnectionCounter
	presenceMgr *managers.PresenceManager
	startTime   time.Time
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(
	logger *utils.Logger,
	coordinator *multiplayer.Coordinator,
	connections ConnectionCounter,
	presenceMgr *managers.PresenceManager,
) *StatusHandler {
	return &StatusHandler{
		logger:      logger.Named("status_handler"),
		coordinator: coordinator,
		connections: connections,
		presenceMgr: presenceMgr,
		startTime:   time.Now(),
	}
}

// Status handles requests for the server's live counters.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	online, err := h.presenceMgr.OnlineCount(r.Context())
	if err != nil {
		h.logger.Error("Failed to read online count", err)
		online = -1
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"uptime":      time.Since(h.startTime).String(),
		"rooms":       h.coordinator.RoomCount(),
		"sessions":    h.coordinator.SessionCount(),
		"connections": h.connections.ClientCount(),
		"online":      online,
	})
}
