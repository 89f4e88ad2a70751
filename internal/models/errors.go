package models

import (
	"errors"
	"fmt"
)

// Domain errors surfaced to clients. Each maps to a distinct wire-level code
// in the rpc package; everything a handler rejects wraps one of these so the
// transport can classify it with errors.Is / errors.As.
var (
	// ErrInvalidState rejects an operation whose precondition does not hold:
	// restricted user, already in a room, settings change during play,
	// modified beatmap, per-user queue limit reached.
	ErrInvalidState = errors.New("operation not valid in the current state")

	// ErrNotHost rejects an operation reserved for the room host.
	ErrNotHost = errors.New("operation restricted to the room host")

	// ErrNotJoinedRoom rejects an operation that requires an active room
	// session.
	ErrNotJoinedRoom = errors.New("user is not joined to a room")

	// ErrInvalidOperation reports an internal consistency failure, such as a
	// session pointing at a room that no longer exists.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Repository errors. These stay internal; handlers translate them into one
// of the domain errors above before they reach the wire.
var (
	// ErrRoomNotFound is returned when no room record exists for an id.
	ErrRoomNotFound = errors.New("room not found")

	// ErrBeatmapNotFound is returned when no checksum is known for a beatmap.
	ErrBeatmapNotFound = errors.New("beatmap not found")

	// ErrUserNotFound is returned when no user record exists for an id.
	ErrUserNotFound = errors.New("user not found")

	// ErrPlaylistItemNotFound is returned when an item update matches
	// nothing.
	ErrPlaylistItemNotFound = errors.New("playlist item not found")
)

// InvalidStateChangeError rejects a user state transition that clients are
// not allowed to request.
type InvalidStateChangeError struct {
	// From is the user's current state.
	From UserState

	// To is the requested state.
	To UserState
}

// Error implements the error interface.
func (e InvalidStateChangeError) Error() string {
	return fmt.Sprintf("cannot change state from %s to %s", e.From, e.To)
}

// NewInvalidStateChangeError builds the error for an illegal transition.
func NewInvalidStateChangeError(from, to UserState) error {
	return InvalidStateChangeError{From: from, To: to}
}
