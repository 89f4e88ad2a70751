package methods

import (
	"context"

	"github.com/nanaya/osu-server-spectator/internal/rpc"
	"github.com/nanaya/osu-server-spectator/internal/services/multiplayer"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// RegisterAllMethods initializes all RPC method handlers and registers them
// with the router.
func RegisterAllMethods(
	router *rpc.Router,
	coordinator *multiplayer.Coordinator,
	logger *utils.Logger,
) {
	multiplayerHandler := NewMultiplayerHandler(coordinator, logger)

	hr := router.Wrap(rpc.RecoveryMiddleware(logger)).Wrap(rpc.LoggingMiddleware(logger))

	rpc.RegisterNoParams(hr, rpc.MethodPing, handlePing)
	multiplayerHandler.RegisterMethods(hr)

	logger.Info("Registered all RPC methods")
}

func handlePing(ctx context.Context, client *rpc.Client) (any, error) {
	return "pong", nil
}
