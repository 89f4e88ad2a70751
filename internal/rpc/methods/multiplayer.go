// Package methods contains the RPC method handlers for multiplayer rooms.
package methods

import (
	"context"

	"github.com/nanaya/osu-server-spectator/internal/models"
	"github.com/nanaya/osu-server-spectator/internal/rpc"
	"github.com/nanaya/osu-server-spectator/internal/services/multiplayer"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// MultiplayerHandler handles room-related RPC methods.
type MultiplayerHandler struct {
	coordinator *multiplayer.Coordinator
	logger      *utils.Logger
}

// NewMultiplayerHandler creates a new MultiplayerHandler.
func NewMultiplayerHandler(coordinator *multiplayer.Coordinator, logger *utils.Logger) *MultiplayerHandler {
	return &MultiplayerHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// RegisterMethods registers all room-related RPC methods.
func (h *MultiplayerHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	rpc.Register(hr, rpc.MethodRoomJoin, h.JoinRoom)
	rpc.RegisterNoParams(hr, rpc.MethodRoomLeave, h.LeaveRoom)
	rpc.Register(hr, rpc.MethodRoomTransferHost, h.TransferHost)
	rpc.Register(hr, rpc.MethodRoomChangeState, h.ChangeState)
	rpc.RegisterNoParams(hr, rpc.MethodRoomStartMatch, h.StartMatch)
	rpc.Register(hr, rpc.MethodRoomChangeSettings, h.ChangeSettings)
	rpc.Register(hr, rpc.MethodRoomAddPlaylistItem, h.AddPlaylistItem)
	rpc.Register(hr, rpc.MethodRoomSendMatchRequest, h.SendMatchRequest)
	rpc.Register(hr, rpc.MethodRoomChangeBeatmapAvailability, h.ChangeBeatmapAvailability)
}

// JoinRoomParams represents the parameters for the JoinRoom method.
type JoinRoomParams struct {
	RoomID int64 `json:"roomId"`
}

// JoinRoom adds the caller to a room and returns the room state.
func (h *MultiplayerHandler) JoinRoom(ctx context.Context, client *rpc.Client, p *JoinRoomParams) (any, error) {
	if p.RoomID <= 0 {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "roomId is required", nil)
	}
	room, err := h.coordinator.JoinRoom(ctx, client.UserID, client.ConnectionID, p.RoomID)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// LeaveRoom removes the caller from their current room.
func (h *MultiplayerHandler) LeaveRoom(ctx context.Context, client *rpc.Client) (any, error) {
	if err := h.coordinator.LeaveRoom(ctx, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// TransferHostParams represents the parameters for the TransferHost method.
type TransferHostParams struct {
	UserID int32 `json:"userId"`
}

// TransferHost hands host privileges to another room member.
func (h *MultiplayerHandler) TransferHost(ctx context.Context, client *rpc.Client, p *TransferHostParams) (any, error) {
	if err := h.coordinator.TransferHost(ctx, client.UserID, p.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// ChangeStateParams represents the parameters for the ChangeState method.
type ChangeStateParams struct {
	State models.UserState `json:"state"`
}

// ChangeState requests a user state transition.
func (h *MultiplayerHandler) ChangeState(ctx context.Context, client *rpc.Client, p *ChangeStateParams) (any, error) {
	if err := h.coordinator.ChangeState(ctx, client.UserID, p.State); err != nil {
		return nil, err
	}
	return true, nil
}

// StartMatch begins gameplay on the current playlist item.
func (h *MultiplayerHandler) StartMatch(ctx context.Context, client *rpc.Client) (any, error) {
	if err := h.coordinator.StartMatch(ctx, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// ChangeSettings replaces the room settings.
func (h *MultiplayerHandler) ChangeSettings(ctx context.Context, client *rpc.Client, p *models.RoomSettings) (any, error) {
	if err := utils.Validate(p); err != nil {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "Invalid settings", utils.FormatValidationErrors(err))
	}
	if err := h.coordinator.ChangeSettings(ctx, client.UserID, *p); err != nil {
		return nil, err
	}
	return true, nil
}

// AddPlaylistItem enqueues (or, in host-only mode, rewrites) a playlist
// item.
func (h *MultiplayerHandler) AddPlaylistItem(ctx context.Context, client *rpc.Client, p *models.PlaylistItem) (any, error) {
	if err := utils.Validate(p); err != nil {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "Invalid playlist item", utils.FormatValidationErrors(err))
	}
	if err := h.coordinator.AddPlaylistItem(ctx, client.UserID, p); err != nil {
		return nil, err
	}
	return true, nil
}

// SendMatchRequest dispatches a request to the room's active match type.
func (h *MultiplayerHandler) SendMatchRequest(ctx context.Context, client *rpc.Client, p *models.MatchRequest) (any, error) {
	if err := utils.Validate(p); err != nil {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "Invalid match request", utils.FormatValidationErrors(err))
	}
	if err := h.coordinator.SendMatchRequest(ctx, client.UserID, *p); err != nil {
		return nil, err
	}
	return true, nil
}

// ChangeBeatmapAvailability reports the caller's beatmap download state.
func (h *MultiplayerHandler) ChangeBeatmapAvailability(ctx context.Context, client *rpc.Client, p *models.BeatmapAvailability) (any, error) {
	if err := h.coordinator.ChangeBeatmapAvailability(ctx, client.UserID, *p); err != nil {
		return nil, err
	}
	return true, nil
}
