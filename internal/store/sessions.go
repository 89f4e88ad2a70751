package store

import (
	"context"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// SessionTable tracks the single live session of each connected user, keyed
// by user id. It specializes the generic store; the lock discipline is the
// same, and a session handle must always be acquired before any room handle.
type SessionTable struct {
	*Store[int32, models.UserSession]
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{Store: NewStore[int32, models.UserSession]("user_session")}
}

// GetOrCreate returns a handle on the user's session slot, creating an empty
// slot when none exists. The caller populates it on successful join.
func (t *SessionTable) GetOrCreate(ctx context.Context, userID int32) (*Handle[int32, models.UserSession], error) {
	return t.GetForUse(ctx, userID, true)
}
