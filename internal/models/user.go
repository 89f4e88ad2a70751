package models

// UserState represents a member's position in the match lifecycle.
type UserState int

const (
	// UserStateIdle is the default state: present in the lobby, not ready.
	UserStateIdle UserState = iota

	// UserStateReady marks a user who has readied up for the next match.
	UserStateReady

	// UserStateWaitingForLoad marks a user whose client is loading gameplay.
	UserStateWaitingForLoad

	// UserStateLoaded marks a user whose client finished loading and is
	// waiting for everyone else.
	UserStateLoaded

	// UserStatePlaying marks a user in active gameplay.
	UserStatePlaying

	// UserStateFinishedPlay marks a user who completed the round and is
	// waiting for the remaining players.
	UserStateFinishedPlay

	// UserStateResults marks a user viewing the results screen.
	UserStateResults
)

// String returns a human-readable name for the user state.
func (s UserState) String() string {
	switch s {
	case UserStateIdle:
		return "idle"
	case UserStateReady:
		return "ready"
	case UserStateWaitingForLoad:
		return "waiting_for_load"
	case UserStateLoaded:
		return "loaded"
	case UserStatePlaying:
		return "playing"
	case UserStateFinishedPlay:
		return "finished_play"
	case UserStateResults:
		return "results"
	default:
		return "unknown"
	}
}

// Valid reports whether the state is one of the defined states.
func (s UserState) Valid() bool {
	return s >= UserStateIdle && s <= UserStateResults
}

// IsGameplay reports whether a user in this state belongs to the room's
// gameplay broadcast group.
func (s UserState) IsGameplay() bool {
	switch s {
	case UserStateReady, UserStateWaitingForLoad, UserStateLoaded, UserStatePlaying:
		return true
	default:
		return false
	}
}

// RoomUser is a room member.
type RoomUser struct {
	// UserID is the member's immutable user id.
	UserID int32 `json:"userId"`

	// State is the member's match lifecycle state.
	State UserState `json:"state"`

	// MatchState carries per-user state owned by the room's match type.
	MatchState MatchUserState `json:"matchState"`

	// BeatmapAvailability is the member's last reported download state for
	// the current beatmap.
	BeatmapAvailability BeatmapAvailability `json:"beatmapAvailability"`

	// ConnectionID is the transport connection the member joined with.
	// Server-side only; used for broadcast group membership.
	ConnectionID string `json:"-"`
}

func (u *RoomUser) clone() *RoomUser {
	c := *u
	c.MatchState = u.MatchState.clone()
	return &c
}

// UserSession binds a connected user to at most one room. There is at most
// one session per user id, process-wide.
type UserSession struct {
	// UserID is the authenticated user.
	UserID int32 `json:"userId"`

	// ConnectionID is the opaque transport token for the user's connection.
	ConnectionID string `json:"connectionId"`

	// RoomID is the joined room, nil while not in a room.
	RoomID *int64 `json:"roomId,omitempty"`
}

// AvailabilityState enumerates beatmap download states reported by clients.
type AvailabilityState int

const (
	// AvailabilityUnknown means the client has not reported yet.
	AvailabilityUnknown AvailabilityState = iota

	// AvailabilityNotDownloaded means the client does not have the beatmap.
	AvailabilityNotDownloaded

	// AvailabilityDownloading means a download is in progress.
	AvailabilityDownloading

	// AvailabilityImporting means the download finished and is being
	// imported.
	AvailabilityImporting

	// AvailabilityLocallyAvailable means the beatmap is ready to play.
	AvailabilityLocallyAvailable
)

// String returns a human-readable name for the availability state.
func (s AvailabilityState) String() string {
	switch s {
	case AvailabilityUnknown:
		return "unknown"
	case AvailabilityNotDownloaded:
		return "not_downloaded"
	case AvailabilityDownloading:
		return "downloading"
	case AvailabilityImporting:
		return "importing"
	case AvailabilityLocallyAvailable:
		return "locally_available"
	default:
		return "invalid"
	}
}

// Valid reports whether the state is one of the defined states.
func (s AvailabilityState) Valid() bool {
	return s >= AvailabilityUnknown && s <= AvailabilityLocallyAvailable
}

// BeatmapAvailability describes how far a client has progressed towards
// having the current beatmap locally.
type BeatmapAvailability struct {
	// State is the download state.
	State AvailabilityState `json:"state"`

	// DownloadProgress is the 0..1 progress, meaningful while downloading.
	DownloadProgress float64 `json:"downloadProgress,omitempty" validate:"gte=0,lte=1"`
}

// Equal reports whether two availability reports carry the same information.
func (b BeatmapAvailability) Equal(other BeatmapAvailability) bool {
	return b.State == other.State && b.DownloadProgress == other.DownloadProgress
}
