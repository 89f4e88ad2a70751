// Package models contains the data structures used throughout the application.
package models

import (
	"time"
)

// RoomState represents the lifecycle state of a multiplayer room.
type RoomState int

const (
	// RoomStateOpen is the lobby state: users ready up, the host may change
	// settings and start a match.
	RoomStateOpen RoomState = iota

	// RoomStateWaitingForLoad is entered when a match has been started and
	// gameplay clients are loading.
	RoomStateWaitingForLoad

	// RoomStatePlaying is the state while a match round is in progress.
	RoomStatePlaying
)

// String returns a human-readable name for the room state.
func (s RoomState) String() string {
	switch s {
	case RoomStateOpen:
		return "open"
	case RoomStateWaitingForLoad:
		return "waiting_for_load"
	case RoomStatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// QueueMode determines how the playlist queue selects the current item and
// who is allowed to enqueue.
type QueueMode int

const (
	// QueueModeHostOnly restricts enqueueing to the host, who edits the
	// current item in place.
	QueueModeHostOnly QueueMode = iota

	// QueueModeAllPlayers lets any member enqueue; items play in insertion
	// order.
	QueueModeAllPlayers

	// QueueModeAllPlayersRoundRobin lets any member enqueue; items are
	// picked fairly across owners, fewest played first.
	QueueModeAllPlayersRoundRobin
)

// String returns a human-readable name for the queue mode.
func (m QueueMode) String() string {
	switch m {
	case QueueModeHostOnly:
		return "host_only"
	case QueueModeAllPlayers:
		return "all_players"
	case QueueModeAllPlayersRoundRobin:
		return "all_players_round_robin"
	default:
		return "unknown"
	}
}

// Valid reports whether the queue mode is one of the defined modes.
func (m QueueMode) Valid() bool {
	return m >= QueueModeHostOnly && m <= QueueModeAllPlayersRoundRobin
}

// RoomSettings is the mutable, value-comparable configuration of a room.
type RoomSettings struct {
	// Name is the display name of the room.
	Name string `json:"name" validate:"required,max=100"`

	// BeatmapID identifies the beatmap of the current playlist item.
	BeatmapID int32 `json:"beatmapId" validate:"required"`

	// BeatmapChecksum is the MD5 checksum the client believes the beatmap
	// has. It must match the checksum known to the database.
	BeatmapChecksum string `json:"beatmapChecksum" validate:"required,md5"`

	// RulesetID selects the ruleset the current item is played with.
	RulesetID RulesetID `json:"rulesetId"`

	// RequiredMods are applied to every player.
	RequiredMods []Mod `json:"requiredMods"`

	// AllowedMods may be freely picked by each player.
	AllowedMods []Mod `json:"allowedMods"`

	// QueueMode governs playlist behaviour.
	QueueMode QueueMode `json:"queueMode"`

	// MatchType selects the ruleset-independent match structure.
	MatchType MatchType `json:"matchType"`

	// PlaylistItemID is the id of the current playlist item. It is owned by
	// the server; values sent by clients are ignored.
	PlaylistItemID int64 `json:"playlistItemId"`
}

// Equal reports whether two settings records are equal by value. Mod sets
// compare order-insensitively.
func (s RoomSettings) Equal(other RoomSettings) bool {
	return s.Name == other.Name &&
		s.BeatmapID == other.BeatmapID &&
		s.BeatmapChecksum == other.BeatmapChecksum &&
		s.RulesetID == other.RulesetID &&
		s.QueueMode == other.QueueMode &&
		s.MatchType == other.MatchType &&
		s.PlaylistItemID == other.PlaylistItemID &&
		ModsEqual(s.RequiredMods, other.RequiredMods) &&
		ModsEqual(s.AllowedMods, other.AllowedMods)
}

// Room is the authoritative in-memory state of a live multiplayer room. It is
// pure data: all mutation happens under the room's exclusive-use handle, and
// all side effects (persistence, broadcasts) belong to the coordinator.
type Room struct {
	// ID is the room id assigned by the database.
	ID int64 `json:"id"`

	// State is the lifecycle state of the room.
	State RoomState `json:"state"`

	// Settings is the room's current configuration.
	Settings RoomSettings `json:"settings"`

	// Users are the current members, in join order.
	Users []*RoomUser `json:"users"`

	// Host is the member with privileged operations. It is nil only
	// transiently while the last user is leaving.
	Host *RoomUser `json:"host,omitempty"`

	// MatchState carries per-room state owned by the active match type.
	MatchState MatchRoomState `json:"matchState"`

	// Playlist holds every playlist item of the room, expired ones included,
	// in insertion order.
	Playlist []*PlaylistItem `json:"playlist"`

	// CurrentIndex is the playlist queue cursor. Server-side only.
	CurrentIndex int `json:"-"`
}

// CurrentItem returns the playlist item the queue cursor points at, or nil
// when the playlist is empty.
func (r *Room) CurrentItem() *PlaylistItem {
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Playlist) {
		return nil
	}
	return r.Playlist[r.CurrentIndex]
}

// FindUser returns the member with the given user id, or nil.
func (r *Room) FindUser(userID int32) *RoomUser {
	for _, u := range r.Users {
		if u.UserID == userID {
			return u
		}
	}
	return nil
}

// AddUser appends a member. The first member becomes host.
func (r *Room) AddUser(user *RoomUser) {
	r.Users = append(r.Users, user)
	if len(r.Users) == 1 {
		r.Host = user
	}
}

// RemoveUser removes the member with the given user id, preserving join
// order, and reports whether a member was removed.
func (r *Room) RemoveUser(userID int32) bool {
	for i, u := range r.Users {
		if u.UserID == userID {
			r.Users = append(r.Users[:i], r.Users[i+1:]...)
			return true
		}
	}
	return false
}

// UsersInState returns the members currently in the given state, in join
// order.
func (r *Room) UsersInState(state UserState) []*RoomUser {
	var users []*RoomUser
	for _, u := range r.Users {
		if u.State == state {
			users = append(users, u)
		}
	}
	return users
}

// CountUsersInState returns how many members are in the given state.
func (r *Room) CountUsersInState(state UserState) int {
	n := 0
	for _, u := range r.Users {
		if u.State == state {
			n++
		}
	}
	return n
}

// Snapshot returns a deep copy of the room, safe to serialize after the room
// handle has been released.
func (r *Room) Snapshot() *Room {
	copied := &Room{
		ID:           r.ID,
		State:        r.State,
		Settings:     r.Settings.clone(),
		MatchState:   r.MatchState.clone(),
		CurrentIndex: r.CurrentIndex,
	}
	copied.Users = make([]*RoomUser, len(r.Users))
	for i, u := range r.Users {
		uc := u.clone()
		copied.Users[i] = uc
		if r.Host != nil && r.Host.UserID == u.UserID {
			copied.Host = uc
		}
	}
	copied.Playlist = make([]*PlaylistItem, len(r.Playlist))
	for i, item := range r.Playlist {
		copied.Playlist[i] = item.Clone()
	}
	return copied
}

func (s RoomSettings) clone() RoomSettings {
	c := s
	c.RequiredMods = append([]Mod(nil), s.RequiredMods...)
	c.AllowedMods = append([]Mod(nil), s.AllowedMods...)
	return c
}

// RoomRecord is the persisted form of a room, created externally (room
// listings live outside this server) and read on first join.
type RoomRecord struct {
	// ID is the room id.
	ID int64 `json:"id" bson:"_id"`

	// Name is the display name of the room.
	Name string `json:"name" bson:"name"`

	// Category distinguishes realtime rooms from playlists. Only "realtime"
	// rooms may be joined through this server.
	Category string `json:"category" bson:"category"`

	// OwnerID is the user designated as the room's first host. Nobody else
	// may perform the first join.
	OwnerID int32 `json:"ownerId" bson:"ownerId"`

	// QueueMode is the room's initial queue mode.
	QueueMode QueueMode `json:"queueMode" bson:"queueMode"`

	// MatchType is the room's initial match type.
	MatchType MatchType `json:"matchType" bson:"matchType"`

	// EndsAt is the time the room ended. A room is active iff this is nil.
	EndsAt *time.Time `json:"endsAt,omitempty" bson:"endsAt,omitempty"`

	// ParticipantCount mirrors the size of the participant set for listings.
	ParticipantCount int `json:"participantCount" bson:"participantCount"`

	// ObjectTimes contains timestamps for this record.
	ObjectTimes `bson:",inline"`
}

// RoomCategoryRealtime is the category of rooms served by this process.
const RoomCategoryRealtime = "realtime"

// Active reports whether the room has not ended.
func (r *RoomRecord) Active() bool {
	return r.EndsAt == nil
}
