package rpc

// RPC method constants.
const (
	// Room methods
	MethodRoomJoin                     = "room.join"
	MethodRoomLeave                    = "room.leave"
	MethodRoomTransferHost             = "room.transferHost"
	MethodRoomChangeState              = "room.changeState"
	MethodRoomStartMatch               = "room.startMatch"
	MethodRoomChangeSettings           = "room.changeSettings"
	MethodRoomAddPlaylistItem          = "room.addPlaylistItem"
	MethodRoomSendMatchRequest         = "room.sendMatchRequest"
	MethodRoomChangeBeatmapAvailability = "room.changeBeatmapAvailability"

	// Connection methods
	MethodPing = "ping"
)
