package multiplayer

import (
	"context"
	"fmt"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// Team ids of the team-versus match type. Fixed at two teams.
const (
	teamRedID  int32 = 0
	teamBlueID int32 = 1
)

// matchRoomStateFor builds the per-room state owned by a match type.
func matchRoomStateFor(matchType models.MatchType) models.MatchRoomState {
	state := models.MatchRoomState{Type: matchType}
	if matchType == models.MatchTypeTeamVersus {
		state.TeamVersus = &models.TeamVersusRoomState{
			Teams: []models.Team{
				{ID: teamRedID, Name: "Red"},
				{ID: teamBlueID, Name: "Blue"},
			},
		}
	}
	return state
}

// matchUserStateFor places a joining (or reassigned) user under the room's
// active match type. Team-versus fills the team with fewer members, lowest
// team id on ties.
func matchUserStateFor(room *models.Room) models.MatchUserState {
	state := models.MatchUserState{Type: room.Settings.MatchType}
	if room.Settings.MatchType == models.MatchTypeTeamVersus && room.MatchState.TeamVersus != nil {
		state.TeamVersus = &models.TeamVersusUserState{TeamID: pickTeam(room)}
	}
	return state
}

func pickTeam(room *models.Room) int32 {
	counts := make(map[int32]int, len(room.MatchState.TeamVersus.Teams))
	for _, team := range room.MatchState.TeamVersus.Teams {
		counts[team.ID] = 0
	}
	for _, u := range room.Users {
		if u.MatchState.TeamVersus != nil {
			counts[u.MatchState.TeamVersus.TeamID]++
		}
	}

	// Teams are ordered by ascending id, so strict less-than favours the
	// lowest id on ties.
	best := room.MatchState.TeamVersus.Teams[0].ID
	for _, team := range room.MatchState.TeamVersus.Teams[1:] {
		if counts[team.ID] < counts[best] {
			best = team.ID
		}
	}
	return best
}

func teamExists(room *models.Room, teamID int32) bool {
	if room.MatchState.TeamVersus == nil {
		return false
	}
	for _, team := range room.MatchState.TeamVersus.Teams {
		if team.ID == teamID {
			return true
		}
	}
	return false
}

// SendMatchRequest dispatches a client request to the room's active match
// type. Head-to-head accepts no requests at all.
func (c *Coordinator) SendMatchRequest(ctx context.Context, userID int32, req models.MatchRequest) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		user := room.FindUser(userID)
		if user == nil {
			return fmt.Errorf("%w: user %d has a session for room %d but is not a member", models.ErrInvalidOperation, userID, room.ID)
		}
		switch room.Settings.MatchType {
		case models.MatchTypeTeamVersus:
			return c.handleTeamVersusRequest(room, user, req)
		default:
			return fmt.Errorf("%w: match type %s accepts no requests", models.ErrInvalidOperation, room.Settings.MatchType)
		}
	})
}

func (c *Coordinator) handleTeamVersusRequest(room *models.Room, user *models.RoomUser, req models.MatchRequest) error {
	if req.Type != models.MatchRequestChangeTeam || req.TeamID == nil {
		return fmt.Errorf("%w: unsupported match request %q", models.ErrInvalidState, req.Type)
	}
	target := *req.TeamID
	if !teamExists(room, target) {
		return fmt.Errorf("%w: no team with id %d", models.ErrInvalidState, target)
	}
	if user.MatchState.TeamVersus != nil && user.MatchState.TeamVersus.TeamID == target {
		return nil
	}

	user.MatchState = models.MatchUserState{
		Type:       models.MatchTypeTeamVersus,
		TeamVersus: &models.TeamVersusUserState{TeamID: target},
	}
	c.publish(room.ID, false, EventMatchUserStateChanged, models.MatchUserStateChangedEvent{
		RoomID: room.ID,
		UserID: user.UserID,
		State:  user.MatchState,
	})
	return nil
}

// rebuildMatchStates reinitialises room and per-user match type state after
// the host changed the match type. Users are reassigned in join order, so
// team-versus ends up balanced.
func (c *Coordinator) rebuildMatchStates(room *models.Room) {
	room.MatchState = matchRoomStateFor(room.Settings.MatchType)
	c.publish(room.ID, false, EventMatchRoomStateChanged, models.MatchRoomStateChangedEvent{
		RoomID: room.ID,
		State:  room.MatchState,
	})

	for _, u := range room.Users {
		u.MatchState = matchUserStateFor(room)
		c.publish(room.ID, false, EventMatchUserStateChanged, models.MatchUserStateChangedEvent{
			RoomID: room.ID,
			UserID: u.UserID,
			State:  u.MatchState,
		})
	}
}
