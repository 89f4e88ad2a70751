package models

// Event payloads fanned out to room broadcast groups. Every payload names the
// room it concerns so clients can route it without extra context.

// UserJoinedEvent announces a new member to the control group.
type UserJoinedEvent struct {
	RoomID int64     `json:"roomId"`
	User   *RoomUser `json:"user"`
}

// UserLeftEvent announces a member's departure to the control group.
type UserLeftEvent struct {
	RoomID int64 `json:"roomId"`
	UserID int32 `json:"userId"`
}

// UserStateChangedEvent announces an accepted user state transition.
type UserStateChangedEvent struct {
	RoomID int64     `json:"roomId"`
	UserID int32     `json:"userId"`
	State  UserState `json:"state"`
}

// HostChangedEvent announces a host transfer or promotion.
type HostChangedEvent struct {
	RoomID int64 `json:"roomId"`
	UserID int32 `json:"userId"`
}

// RoomStateChangedEvent announces a room lifecycle transition.
type RoomStateChangedEvent struct {
	RoomID int64     `json:"roomId"`
	State  RoomState `json:"state"`
}

// SettingsChangedEvent carries the room's full settings after any change,
// including current playlist item advances.
type SettingsChangedEvent struct {
	RoomID   int64        `json:"roomId"`
	Settings RoomSettings `json:"settings"`
}

// PlaylistItemAddedEvent announces a newly enqueued item.
type PlaylistItemAddedEvent struct {
	RoomID int64         `json:"roomId"`
	Item   *PlaylistItem `json:"item"`
}

// PlaylistItemChangedEvent announces an in-place item edit or expiry.
type PlaylistItemChangedEvent struct {
	RoomID int64         `json:"roomId"`
	Item   *PlaylistItem `json:"item"`
}

// MatchStartedEvent tells the control group gameplay has begun.
type MatchStartedEvent struct {
	RoomID int64 `json:"roomId"`
}

// ResultsReadyEvent tells the control group the round concluded.
type ResultsReadyEvent struct {
	RoomID         int64 `json:"roomId"`
	PlaylistItemID int64 `json:"playlistItemId"`
}

// LoadRequestedEvent tells the gameplay group to begin loading.
type LoadRequestedEvent struct {
	RoomID int64 `json:"roomId"`
}

// MatchRoomStateChangedEvent carries rebuilt per-room match type state.
type MatchRoomStateChangedEvent struct {
	RoomID int64          `json:"roomId"`
	State  MatchRoomState `json:"state"`
}

// MatchUserStateChangedEvent carries a member's per-user match type state.
type MatchUserStateChangedEvent struct {
	RoomID int64          `json:"roomId"`
	UserID int32          `json:"userId"`
	State  MatchUserState `json:"state"`
}

// UserBeatmapAvailabilityChangedEvent carries a member's download progress.
type UserBeatmapAvailabilityChangedEvent struct {
	RoomID       int64               `json:"roomId"`
	UserID       int32               `json:"userId"`
	Availability BeatmapAvailability `json:"availability"`
}
