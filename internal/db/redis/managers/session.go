// Package managers provides Redis-backed state managers.
package managers

import (
	"context"
	"strconv"
	"time"

	r "github.com/go-redis/redis/v8"

	"github.com/nanaya/osu-server-spectator/internal/db/redis"
	"github.com/nanaya/osu-server-spectator/internal/models"
)

const (
	// sessionKeyPrefix is the prefix for session snapshot keys.
	sessionKeyPrefix = "multiplayer:session"

	// DefaultSessionExpiry bounds how long a snapshot can outlive its last
	// update. Live sessions are refreshed on every room change, so anything
	// older belongs to a connection that is long gone.
	DefaultSessionExpiry = 24 * time.Hour
)

// SessionManager mirrors each live user session into Redis. The in-memory
// session table is authoritative; these snapshots exist so an operator (or a
// sibling service) can see who is connected where, and so a restarted server
// can prove no stale state survives it.
type SessionManager struct {
	client *redis.Client
	expiry time.Duration
}

// SessionSnapshot is the persisted form of a user session.
type SessionSnapshot struct {
	// UserID is the session's user.
	UserID int32 `json:"userId"`

	// ConnectionID is the transport connection the session is bound to.
	ConnectionID string `json:"connectionId"`

	// RoomID is the joined room, nil while not in a room.
	RoomID *int64 `json:"roomId,omitempty"`

	// UpdatedAt is when the snapshot was last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSessionManager creates a new session manager.
func NewSessionManager(client *redis.Client, expiry time.Duration) *SessionManager {
	if expiry <= 0 {
		expiry = DefaultSessionExpiry
	}
	return &SessionManager{
		client: client,
		expiry: expiry,
	}
}

func sessionKey(userID int32) string {
	return redis.FormatKey(sessionKeyPrefix, strconv.FormatInt(int64(userID), 10))
}

// SaveSession writes the snapshot for a session, replacing any previous one.
func (m *SessionManager) SaveSession(ctx context.Context, session *models.UserSession) error {
	snapshot := SessionSnapshot{
		UserID:       session.UserID,
		ConnectionID: session.ConnectionID,
		RoomID:       session.RoomID,
		UpdatedAt:    time.Now(),
	}
	err := m.client.SetObject(ctx, sessionKey(session.UserID), snapshot, m.expiry)
	if err != nil {
		m.client.Logger().Error("Failed to save session snapshot", err, "userId", session.UserID)
	}
	return err
}

// GetSession returns the snapshot for a user, or nil when none exists.
func (m *SessionManager) GetSession(ctx context.Context, userID int32) (*SessionSnapshot, error) {
	var snapshot SessionSnapshot
	err := m.client.GetObject(ctx, sessionKey(userID), &snapshot)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// RemoveSession deletes a user's snapshot.
func (m *SessionManager) RemoveSession(ctx context.Context, userID int32) error {
	err := m.client.Del(ctx, sessionKey(userID))
	if err != nil {
		m.client.Logger().Error("Failed to remove session snapshot", err, "userId", userID)
	}
	return err
}

// PruneAll wipes every session snapshot. Run at startup: a freshly started
// process has no live connections, so surviving snapshots are stale by
// definition and must not shadow the sessions about to be created.
func (m *SessionManager) PruneAll(ctx context.Context) (int, error) {
	keys, err := m.client.ScanKeys(ctx, redis.FormatKey(sessionKeyPrefix, "*"))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := m.client.Del(ctx, keys...); err != nil {
		return 0, err
	}
	m.client.Logger().Info("Pruned stale session snapshots", "count", len(keys))
	return len(keys), nil
}

// Count returns the number of live snapshots.
func (m *SessionManager) Count(ctx context.Context) (int, error) {
	keys, err := m.client.ScanKeys(ctx, redis.FormatKey(sessionKeyPrefix, "*"))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
