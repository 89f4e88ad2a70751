// Package multiplayer implements the authoritative state of realtime
// multiplayer rooms: membership, the match state machine and the playlist
// queue. All room mutation happens under an exclusive room handle from the
// entity store; the fixed acquisition order is user session first, then
// room.
package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nanaya/osu-server-spectator/internal/db/mongo/repositories"
	"github.com/nanaya/osu-server-spectator/internal/models"
	"github.com/nanaya/osu-server-spectator/internal/store"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Broadcaster is the narrow transport surface the coordinator publishes
// through. Group operations must be synchronous: they are invoked while a
// room handle is held, and the per-room event order is exactly the call
// order. Delivery failures are the transport's problem; they are logged
// there and never surface here.
type Broadcaster interface {
	// SendToGroup fans an event out to every connection in the group.
	SendToGroup(group, event string, payload any)

	// AddToGroup registers a connection in a group.
	AddToGroup(connectionID, group string)

	// RemoveFromGroup removes a connection from a group.
	RemoveFromGroup(connectionID, group string)
}

// SessionStore mirrors live user sessions into the distributed cache so
// operators and sibling services can see who is connected where. The
// in-memory session table stays authoritative; mirror failures are logged
// and swallowed.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.UserSession) error
	RemoveSession(ctx context.Context, userID int32) error
}

// Metrics receives multiplayer activity counters.
type Metrics interface {
	RoomOpened()
	RoomClosed()
	UserJoined()
	UserLeft()
	MatchStarted()
	MatchCompleted()
	PlaylistItemQueued()
}

type noopSessionStore struct{}

func (noopSessionStore) SaveSession(context.Context, *models.UserSession) error { return nil }
func (noopSessionStore) RemoveSession(context.Context, int32) error             { return nil }

type noopMetrics struct{}

func (noopMetrics) RoomOpened()         {}
func (noopMetrics) RoomClosed()         {}
func (noopMetrics) UserJoined()         {}
func (noopMetrics) UserLeft()           {}
func (noopMetrics) MatchStarted()       {}
func (noopMetrics) MatchCompleted()     {}
func (noopMetrics) PlaylistItemQueued() {}

// GroupName returns the transport group for a room. gameplay=false is the
// control group every member belongs to; gameplay=true holds only the
// members currently readied, loading or playing.
func GroupName(roomID int64, gameplay bool) string {
	return "room:" + strconv.FormatInt(roomID, 10) + ":" + strconv.FormatBool(gameplay)
}

// Coordinator owns the room and session registries and implements every
// client-facing multiplayer operation.
type Coordinator struct {
	rooms        *store.Store[int64, models.Room]
	sessions     *store.SessionTable
	db           *repositories.Database
	broadcaster  Broadcaster
	sessionStore SessionStore
	metrics      Metrics
	logger       *utils.Logger
}

// NewCoordinator wires the coordinator. sessionStore and metrics may be nil.
func NewCoordinator(
	db *repositories.Database,
	broadcaster Broadcaster,
	sessionStore SessionStore,
	metrics Metrics,
	logger *utils.Logger,
) *Coordinator {
	if sessionStore == nil {
		sessionStore = noopSessionStore{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Coordinator{
		rooms:        store.NewStore[int64, models.Room]("room"),
		sessions:     store.NewSessionTable(),
		db:           db,
		broadcaster:  broadcaster,
		sessionStore: sessionStore,
		metrics:      metrics,
		logger:       logger.Named("multiplayer"),
	}
}

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	return c.rooms.Count()
}

// SessionCount returns the number of live user sessions.
func (c *Coordinator) SessionCount() int {
	return c.sessions.Count()
}

// Clear drops every room and session. Test fixtures only.
func (c *Coordinator) Clear() {
	c.rooms.Clear()
	c.sessions.Clear()
}

// publish fans an event out to one of the room's groups.
func (c *Coordinator) publish(roomID int64, gameplay bool, event string, payload any) {
	c.broadcaster.SendToGroup(GroupName(roomID, gameplay), event, payload)
}

// withSessionRoom acquires the caller's session handle then their room
// handle, and runs fn with both held.
func (c *Coordinator) withSessionRoom(ctx context.Context, userID int32, fn func(sess *models.UserSession, room *models.Room) error) error {
	sh, err := c.sessions.GetForUse(ctx, userID, false)
	if err != nil {
		return err
	}
	defer sh.Release()

	sess := sh.Item()
	if sess == nil || sess.RoomID == nil {
		return models.ErrNotJoinedRoom
	}

	rh, err := c.rooms.GetForUse(ctx, *sess.RoomID, false)
	if err != nil {
		return err
	}
	defer rh.Release()

	room := rh.Item()
	if room == nil {
		// The session points at a room that no longer exists.
		return fmt.Errorf("%w: room %d is gone", models.ErrInvalidOperation, *sess.RoomID)
	}
	return fn(sess, room)
}

// JoinRoom adds the user to a room, creating the in-memory room from its
// database record on first join, and returns a snapshot of the room state.
func (c *Coordinator) JoinRoom(ctx context.Context, userID int32, connectionID string, roomID int64) (*models.Room, error) {
	// Restriction is checked before any handle is taken; it needs no room
	// state and keeps the critical section short.
	restricted, err := c.db.IsUserRestricted(ctx, userID)
	if err != nil {
		return nil, err
	}
	if restricted {
		return nil, fmt.Errorf("%w: account is restricted", models.ErrInvalidState)
	}

	sh, err := c.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sh.Release()

	// A session left behind by LeaveRoom has no room id and is reused;
	// only a session that is still in a room blocks the join.
	if existing := sh.Item(); existing != nil && existing.RoomID != nil {
		return nil, fmt.Errorf("%w: user %d is already in a room", models.ErrInvalidState, userID)
	}

	rh, err := c.rooms.GetForUse(ctx, roomID, true)
	if err != nil {
		return nil, err
	}
	defer rh.Release()

	room := rh.Item()
	created := false
	if room == nil {
		room, err = c.loadRoom(ctx, roomID, userID)
		if err != nil {
			return nil, err
		}
		if err := rh.SetItem(room); err != nil {
			return nil, err
		}
		created = true
	}

	if room.FindUser(userID) != nil {
		return nil, fmt.Errorf("%w: user %d is already in room %d", models.ErrInvalidOperation, userID, roomID)
	}

	user := &models.RoomUser{
		UserID:       userID,
		State:        models.UserStateIdle,
		ConnectionID: connectionID,
	}
	user.MatchState = matchUserStateFor(room)
	room.AddUser(user)

	c.broadcaster.AddToGroup(connectionID, GroupName(roomID, false))

	if err := c.db.ReplaceParticipants(ctx, roomID, memberIDs(room)); err != nil {
		// Roll back the in-memory join; the database still shows the old
		// roster.
		room.RemoveUser(userID)
		c.broadcaster.RemoveFromGroup(connectionID, GroupName(roomID, false))
		if created {
			if endErr := c.db.MarkRoomEnded(ctx, roomID); endErr != nil {
				c.logger.Error("Failed to mark aborted room ended", endErr, "roomId", roomID)
			}
			rh.Destroy()
		}
		return nil, err
	}

	sess := &models.UserSession{
		UserID:       userID,
		ConnectionID: connectionID,
		RoomID:       &roomID,
	}
	if err := sh.SetItem(sess); err != nil {
		return nil, err
	}

	c.publish(roomID, false, EventUserJoined, models.UserJoinedEvent{RoomID: roomID, User: user})
	c.snapshotSession(ctx, sess)
	c.metrics.UserJoined()
	c.logger.Info("User joined room", "userId", userID, "roomId", roomID)

	if created {
		c.metrics.RoomOpened()
	}
	return room.Snapshot(), nil
}

// loadRoom builds the in-memory room from its database record. Only the
// designated owner may perform the first join.
func (c *Coordinator) loadRoom(ctx context.Context, roomID int64, userID int32) (*models.Room, error) {
	record, err := c.db.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: room %d does not exist", models.ErrInvalidState, roomID)
		}
		return nil, err
	}
	if record.Category != models.RoomCategoryRealtime {
		return nil, fmt.Errorf("%w: room %d is not a realtime room", models.ErrInvalidState, roomID)
	}
	if !record.Active() {
		return nil, fmt.Errorf("%w: room %d has ended", models.ErrInvalidState, roomID)
	}
	if record.OwnerID != userID {
		return nil, fmt.Errorf("%w: room %d must first be joined by its owner", models.ErrInvalidState, roomID)
	}

	room := &models.Room{
		ID:    roomID,
		State: models.RoomStateOpen,
		Settings: models.RoomSettings{
			Name:      record.Name,
			QueueMode: record.QueueMode,
			MatchType: record.MatchType,
		},
		MatchState: matchRoomStateFor(record.MatchType),
	}

	if err := c.initialiseQueue(ctx, room); err != nil {
		return nil, err
	}
	if len(room.Playlist) == 0 {
		return nil, fmt.Errorf("%w: room %d has no playlist items", models.ErrInvalidOperation, roomID)
	}

	if err := c.db.MarkRoomActive(ctx, roomID); err != nil {
		return nil, err
	}
	return room, nil
}

// LeaveRoom removes the user from their current room. The connection stays
// up; the session remains so the user can join another room.
func (c *Coordinator) LeaveRoom(ctx context.Context, userID int32) error {
	sh, err := c.sessions.GetForUse(ctx, userID, false)
	if err != nil {
		return err
	}
	defer sh.Release()

	sess := sh.Item()
	if sess == nil || sess.RoomID == nil {
		return models.ErrNotJoinedRoom
	}
	if err := c.leaveCurrentRoom(ctx, sess); err != nil {
		return err
	}
	sess.RoomID = nil
	c.snapshotSession(ctx, sess)
	return nil
}

// HandleDisconnect runs LeaveRoom semantics for a torn-down connection and
// destroys the session. Called by the transport after the socket closes.
func (c *Coordinator) HandleDisconnect(ctx context.Context, userID int32, connectionID string) {
	sh, err := c.sessions.GetForUse(ctx, userID, false)
	if err != nil {
		c.logger.Error("Failed to acquire session during disconnect cleanup", err, "userId", userID)
		return
	}

	sess := sh.Item()
	if sess == nil {
		sh.Release()
		return
	}
	if sess.ConnectionID != connectionID {
		// A newer connection owns this session; leave it alone.
		sh.Release()
		return
	}

	if sess.RoomID != nil {
		if err := c.leaveCurrentRoom(ctx, sess); err != nil {
			c.logger.Error("Failed to leave room during disconnect cleanup", err, "userId", userID)
		}
	}
	if err := c.sessionStore.RemoveSession(ctx, userID); err != nil {
		c.logger.Warn("Failed to drop session snapshot", "userId", userID)
	}
	sh.Destroy()
	c.logger.Info("Session cleaned up after disconnect", "userId", userID)
}

// leaveCurrentRoom removes the session's user from their room, reassigning
// the host or destroying the room as needed. The session handle is held by
// the caller; the room handle is acquired here.
func (c *Coordinator) leaveCurrentRoom(ctx context.Context, sess *models.UserSession) error {
	roomID := *sess.RoomID
	rh, err := c.rooms.GetForUse(ctx, roomID, false)
	if err != nil {
		return err
	}
	defer rh.Release()

	room := rh.Item()
	if room == nil {
		return nil
	}
	if room.FindUser(sess.UserID) == nil {
		return nil
	}

	wasHost := room.Host != nil && room.Host.UserID == sess.UserID
	room.RemoveUser(sess.UserID)
	c.broadcaster.RemoveFromGroup(sess.ConnectionID, GroupName(roomID, true))
	c.broadcaster.RemoveFromGroup(sess.ConnectionID, GroupName(roomID, false))
	c.metrics.UserLeft()

	if len(room.Users) == 0 {
		room.Host = nil
		// Last one out turns off the lights. Persistence failures are
		// logged only: the room is gone from memory either way, and the
		// database can be reconciled offline.
		if err := c.db.MarkRoomEnded(ctx, roomID); err != nil {
			c.logger.Error("Failed to mark room ended", err, "roomId", roomID)
		}
		if err := c.db.ReplaceParticipants(ctx, roomID, nil); err != nil {
			c.logger.Error("Failed to clear participants", err, "roomId", roomID)
		}
		rh.Destroy()
		c.metrics.RoomClosed()
		c.logger.Info("Room closed", "roomId", roomID)
		return nil
	}

	if err := c.db.ReplaceParticipants(ctx, roomID, memberIDs(room)); err != nil {
		c.logger.Error("Failed to persist participants", err, "roomId", roomID)
	}

	if wasHost {
		newHost := room.Users[0]
		room.Host = newHost
		if err := c.db.UpdateRoomHost(ctx, roomID, newHost.UserID); err != nil {
			c.logger.Error("Failed to persist host change", err, "roomId", roomID)
		}
		c.publish(roomID, false, EventHostChanged, models.HostChangedEvent{RoomID: roomID, UserID: newHost.UserID})
	}

	c.publish(roomID, false, EventUserLeft, models.UserLeftEvent{RoomID: roomID, UserID: sess.UserID})

	// A departing player can be the one the state machine was waiting on.
	c.updateRoomStateIfRequired(ctx, room)
	return nil
}

// TransferHost hands host privileges to another member.
func (c *Coordinator) TransferHost(ctx context.Context, userID, targetID int32) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		if room.Host == nil || room.Host.UserID != userID {
			return models.ErrNotHost
		}
		target := room.FindUser(targetID)
		if target == nil {
			return fmt.Errorf("%w: user %d is not in the room", models.ErrInvalidState, targetID)
		}
		if targetID == userID {
			return nil
		}
		if err := c.db.UpdateRoomHost(ctx, room.ID, targetID); err != nil {
			return err
		}
		room.Host = target
		c.publish(room.ID, false, EventHostChanged, models.HostChangedEvent{RoomID: room.ID, UserID: targetID})
		c.logger.Info("Host transferred", "roomId", room.ID, "from", userID, "to", targetID)
		return nil
	})
}

// ChangeSettings replaces the room settings. The settings describe the
// current playlist item, so an accepted change also rewrites that item in
// place (id and owner preserved) and validates like an enqueue.
func (c *Coordinator) ChangeSettings(ctx context.Context, userID int32, settings models.RoomSettings) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		if room.Host == nil || room.Host.UserID != userID {
			return models.ErrNotHost
		}
		if room.State != models.RoomStateOpen {
			return fmt.Errorf("%w: settings cannot change while a match is in progress", models.ErrInvalidState)
		}
		if !settings.QueueMode.Valid() {
			return fmt.Errorf("%w: unknown queue mode %d", models.ErrInvalidState, settings.QueueMode)
		}
		if !settings.MatchType.Valid() {
			return fmt.Errorf("%w: unknown match type %d", models.ErrInvalidState, settings.MatchType)
		}

		// The current item id is server-owned; whatever the client sent is
		// discarded before comparing.
		settings.PlaylistItemID = room.Settings.PlaylistItemID
		if settings.Equal(room.Settings) {
			return nil
		}

		if err := c.validateItemContent(ctx, settings.BeatmapID, settings.BeatmapChecksum, settings.RulesetID, settings.RequiredMods, settings.AllowedMods); err != nil {
			return err
		}

		item := room.CurrentItem()
		prevSettings := room.Settings
		prevItem := item.Clone()
		queueModeChanged := settings.QueueMode != prevSettings.QueueMode
		matchTypeChanged := settings.MatchType != prevSettings.MatchType

		room.Settings = settings
		item.BeatmapID = settings.BeatmapID
		item.BeatmapChecksum = settings.BeatmapChecksum
		item.RulesetID = settings.RulesetID
		item.RequiredMods = append([]models.Mod(nil), settings.RequiredMods...)
		item.AllowedMods = append([]models.Mod(nil), settings.AllowedMods...)

		rollback := func() {
			room.Settings = prevSettings
			*item = *prevItem
		}
		if err := c.db.UpdatePlaylistItem(ctx, item); err != nil {
			rollback()
			return err
		}
		if err := c.db.UpdateRoomName(ctx, room.ID, settings.Name); err != nil {
			rollback()
			return err
		}

		// Changed settings void everyone's readiness.
		for _, u := range room.UsersInState(models.UserStateReady) {
			c.setUserState(ctx, room, u, models.UserStateIdle)
		}

		c.publish(room.ID, false, EventSettingsChanged, models.SettingsChangedEvent{RoomID: room.ID, Settings: room.Settings})
		c.publish(room.ID, false, EventPlaylistItemChanged, models.PlaylistItemChangedEvent{RoomID: room.ID, Item: item})

		if matchTypeChanged {
			c.rebuildMatchStates(room)
		}
		if queueModeChanged {
			if err := c.updateFromQueueModeChange(ctx, room); err != nil {
				c.logger.Error("Failed to requeue after queue mode change", err, "roomId", room.ID)
			}
		}
		return nil
	})
}

// snapshotSession mirrors the session into the distributed cache.
func (c *Coordinator) snapshotSession(ctx context.Context, sess *models.UserSession) {
	if err := c.sessionStore.SaveSession(ctx, sess); err != nil {
		c.logger.Warn("Failed to mirror session to cache", "userId", sess.UserID)
	}
}

// memberIDs returns the room's user ids in join order.
func memberIDs(room *models.Room) []int32 {
	ids := make([]int32, len(room.Users))
	for i, u := range room.Users {
		ids[i] = u.UserID
	}
	return ids
}
