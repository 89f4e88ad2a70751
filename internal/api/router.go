// Package api provides the HTTP surface for the multiplayer server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nanaya/osu-server-spectator/internal/api/handlers"
	appMiddleware "github.com/nanaya/osu-server-spectator/internal/api/middleware"
	"github.com/nanaya/osu-server-spectator/internal/config"
	"github.com/nanaya/osu-server-spectator/internal/db/redis/managers"
	"github.com/nanaya/osu-server-spectator/internal/rpc"
	"github.com/nanaya/osu-server-spectator/internal/services/multiplayer"
	"github.com/nanaya/osu-server-spectator/internal/services/system"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Router is the main HTTP router for the server.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// NewRouter creates a new API router. Game clients speak JSON-RPC over the
// /ws endpoint; everything else here exists for operators and probes.
func NewRouter(
	cfg *config.Config,
	coordinator *multiplayer.Coordinator,
	rpcServer *rpc.Server,
	healthService *system.HealthService,
	metricsService *system.MetricsService,
	presenceMgr *managers.PresenceManager,
	logger *utils.Logger,
) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger)
	metricsMiddleware := appMiddleware.NewMetricsMiddleware(metricsService)

	healthHandler := handlers.NewHealthHandler(apiLogger, healthService)
	statusHandler := handlers.NewStatusHandler(apiLogger, coordinator, rpcServer, presenceMgr)

	r.Use(recoveryMiddleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/ping"))

	// Operator routes. These get the full logging and metrics treatment.
	r.Group(func(r chi.Router) {
		r.Use(loggerMiddleware.Logger)
		r.Use(metricsMiddleware.Metrics)

		r.Get("/healthz", healthHandler.Check)
		r.Get("/readyz", healthHandler.Ready)
		r.Get("/api/status", statusHandler.Status)
	})

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", metricsService.Handler())
	}

	// The WebSocket route must not pass through middleware that wraps the
	// ResponseWriter, or the upgrade loses http.Hijacker.
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		metricsService.WSConnectionOpened()
		rpcServer.HandleWebSocket(w, req)
	})

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}
