package multiplayer

import (
	"context"
	"fmt"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// ChangeState applies a client-requested user state transition. Requesting
// the state the user is already in is a no-op; transitions the server owns
// (WaitingForLoad, Playing, Results) are rejected.
func (c *Coordinator) ChangeState(ctx context.Context, userID int32, newState models.UserState) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		user := room.FindUser(userID)
		if user == nil {
			return fmt.Errorf("%w: user %d has a session for room %d but is not a member", models.ErrInvalidOperation, userID, room.ID)
		}
		if user.State == newState {
			return nil
		}
		if !newState.Valid() || !clientTransitionAllowed(user.State, newState) {
			return models.NewInvalidStateChangeError(user.State, newState)
		}
		c.setUserState(ctx, room, user, newState)
		c.updateRoomStateIfRequired(ctx, room)
		return nil
	})
}

// clientTransitionAllowed is the transition table for client-requested
// state changes. Idle is always reachable (backing out, aborting gameplay);
// everything else requires the matching predecessor.
func clientTransitionAllowed(from, to models.UserState) bool {
	switch to {
	case models.UserStateIdle:
		return true
	case models.UserStateReady:
		return from == models.UserStateIdle
	case models.UserStateLoaded:
		return from == models.UserStateWaitingForLoad
	case models.UserStateFinishedPlay:
		return from == models.UserStatePlaying
	default:
		return false
	}
}

// setUserState applies a user state transition, broadcasts it and keeps the
// gameplay group in sync. Joining the gameplay group happens before the
// broadcast and leaving after it, so no event is ever sent past a removal.
func (c *Coordinator) setUserState(ctx context.Context, room *models.Room, user *models.RoomUser, newState models.UserState) {
	wasGameplay := user.State.IsGameplay()
	user.State = newState
	isGameplay := newState.IsGameplay()

	if isGameplay && !wasGameplay {
		c.broadcaster.AddToGroup(user.ConnectionID, GroupName(room.ID, true))
	}
	c.publish(room.ID, false, EventUserStateChanged, models.UserStateChangedEvent{
		RoomID: room.ID,
		UserID: user.UserID,
		State:  newState,
	})
	if !isGameplay && wasGameplay {
		c.broadcaster.RemoveFromGroup(user.ConnectionID, GroupName(room.ID, true))
	}
}

// StartMatch begins gameplay on the current playlist item. Host only; the
// room must be open, at least one user ready, and the host among them.
func (c *Coordinator) StartMatch(ctx context.Context, userID int32) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		if room.Host == nil || room.Host.UserID != userID {
			return models.ErrNotHost
		}
		if room.State != models.RoomStateOpen {
			return fmt.Errorf("%w: a match is already in progress", models.ErrInvalidState)
		}
		ready := room.UsersInState(models.UserStateReady)
		if len(ready) == 0 {
			return fmt.Errorf("%w: no users are ready", models.ErrInvalidState)
		}
		if room.Host.State != models.UserStateReady {
			return fmt.Errorf("%w: the host is not ready", models.ErrInvalidState)
		}

		item := room.CurrentItem()
		if err := c.db.ClearScores(ctx, item.ID); err != nil {
			return err
		}

		for _, u := range ready {
			c.setUserState(ctx, room, u, models.UserStateWaitingForLoad)
		}
		c.setRoomState(room, models.RoomStateWaitingForLoad)
		c.publish(room.ID, true, EventLoadRequested, models.LoadRequestedEvent{RoomID: room.ID})
		c.metrics.MatchStarted()
		c.logger.Info("Match started", "roomId", room.ID, "playlistItemId", item.ID, "players", len(ready))
		return nil
	})
}

// updateRoomStateIfRequired advances the room state machine after anything
// that changed user states or membership. Two edges matter: every loader
// finished (or bailed), and every player finished (or left).
func (c *Coordinator) updateRoomStateIfRequired(ctx context.Context, room *models.Room) {
	switch room.State {
	case models.RoomStateWaitingForLoad:
		if room.CountUsersInState(models.UserStateWaitingForLoad) > 0 {
			return
		}
		loaded := room.UsersInState(models.UserStateLoaded)
		if len(loaded) == 0 {
			// Everyone bailed before loading finished; back to the lobby.
			c.setRoomState(room, models.RoomStateOpen)
			return
		}
		for _, u := range loaded {
			c.setUserState(ctx, room, u, models.UserStatePlaying)
		}
		c.publish(room.ID, false, EventMatchStarted, models.MatchStartedEvent{RoomID: room.ID})
		c.setRoomState(room, models.RoomStatePlaying)

	case models.RoomStatePlaying:
		if room.CountUsersInState(models.UserStatePlaying) > 0 {
			return
		}
		for _, u := range room.UsersInState(models.UserStateFinishedPlay) {
			c.setUserState(ctx, room, u, models.UserStateResults)
		}
		item := room.CurrentItem()
		c.publish(room.ID, false, EventResultsReady, models.ResultsReadyEvent{
			RoomID:         room.ID,
			PlaylistItemID: item.ID,
		})
		if err := c.finishCurrentItem(ctx, room); err != nil {
			c.logger.Error("Failed to finalise playlist item", err, "roomId", room.ID, "playlistItemId", item.ID)
		}
		c.setRoomState(room, models.RoomStateOpen)
		c.metrics.MatchCompleted()
		c.logger.Info("Match completed", "roomId", room.ID, "playlistItemId", item.ID)
	}
}

func (c *Coordinator) setRoomState(room *models.Room, state models.RoomState) {
	room.State = state
	c.publish(room.ID, false, EventRoomStateChanged, models.RoomStateChangedEvent{RoomID: room.ID, State: state})
}
