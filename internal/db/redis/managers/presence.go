package managers

import (
	"context"
	"strconv"
	"time"

	"github.com/nanaya/osu-server-spectator/internal/db/redis"
)

const (
	// onlineSetKey holds the set of user ids with an open connection.
	onlineSetKey = "multiplayer:online"

	// onlineSetTTL bounds staleness if the server dies without cleanup. The
	// set is re-expired on every connect, so it only lapses when nobody is
	// connecting at all.
	onlineSetTTL = 5 * time.Minute
)

// PresenceManager maintains the online-user set. It feeds the status
// endpoint and metrics; nothing in the room lifecycle depends on it.
type PresenceManager struct {
	client *redis.Client
}

// NewPresenceManager creates a new presence manager.
func NewPresenceManager(client *redis.Client) *PresenceManager {
	return &PresenceManager{client: client}
}

// SetOnline records a user as connected.
func (m *PresenceManager) SetOnline(ctx context.Context, userID int32) error {
	member := strconv.FormatInt(int64(userID), 10)
	if err := m.client.SAdd(ctx, onlineSetKey, member); err != nil {
		return err
	}
	return m.client.Expire(ctx, onlineSetKey, onlineSetTTL)
}

// SetOffline records a user as disconnected.
func (m *PresenceManager) SetOffline(ctx context.Context, userID int32) error {
	member := strconv.FormatInt(int64(userID), 10)
	return m.client.SRem(ctx, onlineSetKey, member)
}

// OnlineCount returns the number of connected users.
func (m *PresenceManager) OnlineCount(ctx context.Context) (int64, error) {
	return m.client.SCard(ctx, onlineSetKey)
}

// OnlineUsers returns the ids of connected users.
func (m *PresenceManager) OnlineUsers(ctx context.Context) ([]int32, error) {
	members, err := m.client.SMembers(ctx, onlineSetKey)
	if err != nil {
		return nil, err
	}
	users := make([]int32, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 32)
		if err != nil {
			// Skip junk; it will lapse with the TTL.
			continue
		}
		users = append(users, int32(id))
	}
	return users, nil
}

// Clear empties the online set.
func (m *PresenceManager) Clear(ctx context.Context) error {
	return m.client.Del(ctx, onlineSetKey)
}
