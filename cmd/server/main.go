package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/nanaya/osu-server-spectator/internal/api"
	"github.com/nanaya/osu-server-spectator/internal/auth"
	"github.com/nanaya/osu-server-spectator/internal/config"
	"github.com/nanaya/osu-server-spectator/internal/db/mongo"
	"github.com/nanaya/osu-server-spectator/internal/db/mongo/repositories"
	"github.com/nanaya/osu-server-spectator/internal/db/redis"
	"github.com/nanaya/osu-server-spectator/internal/db/redis/managers"
	"github.com/nanaya/osu-server-spectator/internal/rpc"
	"github.com/nanaya/osu-server-spectator/internal/rpc/methods"
	"github.com/nanaya/osu-server-spectator/internal/services/multiplayer"
	"github.com/nanaya/osu-server-spectator/internal/services/system"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

const serverVersion = "1.0.0"

// logLevel converts a configured level name to a zapcore.Level.
func logLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Received shutdown signal")
		cancel()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerOptions := utils.LoggerOptions{
		Development:      cfg.Environment == "development",
		Level:            logLevel(cfg.Logging.Level),
		OutputPaths:      cfg.Logging.OutputPaths,
		ErrorOutputPaths: cfg.Logging.ErrorOutputPaths,
	}
	logger := utils.NewLogger(loggerOptions)
	logger.Info("Starting multiplayer server", "environment", cfg.Environment, "version", serverVersion)

	for _, warning := range config.ValidateAndFixConfig(cfg) {
		logger.Warn("Configuration adjusted", "warning", warning)
	}

	// Initialize MongoDB client
	mongoClient, err := mongo.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", err)
		}
	}()

	if err := mongo.EnsureIndexes(ctx, mongoClient.Database(), logger); err != nil {
		logger.Fatal("Failed to ensure MongoDB indexes", err)
	}

	// Initialize Redis client
	redisClient, err := redis.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	// Initialize MongoDB repositories
	db := repositories.NewDatabase(
		mongoClient.Client(),
		mongoClient.Database(),
		cfg.Database.MongoDB.Timeout,
		logger,
	)

	// Initialize Redis managers
	sessionMgr := managers.NewSessionManager(redisClient, managers.DefaultSessionExpiry)
	presenceMgr := managers.NewPresenceManager(redisClient)

	// Initialize authentication provider
	jwtConfig := auth.JWTConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}
	authProvider := auth.NewJWTProvider(jwtConfig, logger)

	// Initialize system services
	metricsService := system.NewMetricsService(logger)
	healthConfig := system.HealthServiceConfig{
		Version:     serverVersion,
		Environment: cfg.Environment,
	}
	healthService := system.NewHealthService(mongoClient, redisClient, logger, healthConfig)

	maintenanceService := system.NewMaintenanceService(
		system.DefaultMaintenanceConfig(),
		sessionMgr,
		presenceMgr,
		logger,
	)

	// Discard everything a previous process left behind before accepting
	// any connection.
	if err := maintenanceService.RunStartupCleanup(ctx); err != nil {
		logger.Fatal("Failed to run startup cleanup", err)
	}

	// Initialize the multiplayer coordinator and its transport
	hub := rpc.NewHub(logger)
	rpcRouter := rpc.NewRouter(logger)
	coordinator := multiplayer.NewCoordinator(db, hub, sessionMgr, metricsService, logger)
	rpcServer := rpc.NewServer(cfg, hub, rpcRouter, authProvider, presenceMgr, coordinator, logger)

	methods.RegisterAllMethods(rpcRouter, coordinator, logger)

	metricsService.RegisterSessionGauges(coordinator.SessionCount, rpcServer.ClientCount)

	// Start background services
	healthService.Start(ctx)
	maintenanceService.Start(ctx)

	// Initialize API router
	router := api.NewRouter(
		cfg,
		coordinator,
		rpcServer,
		healthService,
		metricsService,
		presenceMgr,
		logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", err)
	}

	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("RPC server shutdown error", err)
	}

	maintenanceService.Stop()

	logger.Info("Server shutdown complete")
}
