package multiplayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

func teamOf(t *testing.T, snapshot *models.Room, userID int32) int32 {
	t.Helper()
	user := snapshot.FindUser(userID)
	require.NotNil(t, user)
	require.NotNil(t, user.MatchState.TeamVersus)
	return user.MatchState.TeamVersus.TeamID
}

func newTeamVersusRoom(t *testing.T, h *harness, roomID int64, users ...int32) {
	t.Helper()
	h.addRoomRecord(roomID, users[0], models.QueueModeAllPlayers, models.MatchTypeTeamVersus)
	h.seedItem(roomID, users[0], testBeatmapID)
	for _, userID := range users {
		h.join(t, userID, roomID)
	}
}

func TestTeamVersusBalancesJoins(t *testing.T) {
	h := newHarness()
	newTeamVersusRoom(t, h, 1, 10, 11, 12, 13)

	snapshot := h.join(t, 14, 1)

	require.NotNil(t, snapshot.MatchState.TeamVersus)
	assert.Len(t, snapshot.MatchState.TeamVersus.Teams, 2)

	// Joins alternate between the two teams, lowest id first.
	assert.Equal(t, int32(0), teamOf(t, snapshot, 10))
	assert.Equal(t, int32(1), teamOf(t, snapshot, 11))
	assert.Equal(t, int32(0), teamOf(t, snapshot, 12))
	assert.Equal(t, int32(1), teamOf(t, snapshot, 13))
	assert.Equal(t, int32(0), teamOf(t, snapshot, 14))
}

func TestTeamVersusJoinFillsSmallerTeam(t *testing.T) {
	h := newHarness()
	newTeamVersusRoom(t, h, 1, 10, 11)

	// Move user 11 onto team 0; the next joiner must land on team 1.
	team := int32(0)
	require.NoError(t, h.coord.SendMatchRequest(context.Background(), 11, models.MatchRequest{
		Type:   models.MatchRequestChangeTeam,
		TeamID: &team,
	}))

	snapshot := h.join(t, 12, 1)
	assert.Equal(t, int32(1), teamOf(t, snapshot, 12))
}

func TestChangeTeam(t *testing.T) {
	h := newHarness()
	newTeamVersusRoom(t, h, 1, 10, 11)
	h.bc.reset()

	team := int32(0)
	require.NoError(t, h.coord.SendMatchRequest(context.Background(), 11, models.MatchRequest{
		Type:   models.MatchRequestChangeTeam,
		TeamID: &team,
	}))

	events := h.bc.eventsNamed(EventMatchUserStateChanged)
	require.Len(t, events, 1)
	payload := events[0].Payload.(models.MatchUserStateChangedEvent)
	assert.Equal(t, int32(11), payload.UserID)
	require.NotNil(t, payload.State.TeamVersus)
	assert.Equal(t, int32(0), payload.State.TeamVersus.TeamID)

	// Requesting the current team again changes nothing.
	h.bc.reset()
	require.NoError(t, h.coord.SendMatchRequest(context.Background(), 11, models.MatchRequest{
		Type:   models.MatchRequestChangeTeam,
		TeamID: &team,
	}))
	assert.Empty(t, h.bc.eventNames())
}

func TestChangeTeamValidation(t *testing.T) {
	h := newHarness()
	newTeamVersusRoom(t, h, 1, 10)

	unknown := int32(7)
	err := h.coord.SendMatchRequest(context.Background(), 10, models.MatchRequest{
		Type:   models.MatchRequestChangeTeam,
		TeamID: &unknown,
	})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	err = h.coord.SendMatchRequest(context.Background(), 10, models.MatchRequest{Type: "bogus"})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestHeadToHeadRejectsMatchRequests(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	team := int32(0)
	err := h.coord.SendMatchRequest(context.Background(), 10, models.MatchRequest{
		Type:   models.MatchRequestChangeTeam,
		TeamID: &team,
	})
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestChangeBeatmapAvailability(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	h.bc.reset()

	report := models.BeatmapAvailability{State: models.AvailabilityDownloading, DownloadProgress: 0.4}
	require.NoError(t, h.coord.ChangeBeatmapAvailability(context.Background(), 11, report))

	events := h.bc.eventsNamed(EventUserBeatmapAvailabilityChanged)
	require.Len(t, events, 1)
	payload := events[0].Payload.(models.UserBeatmapAvailabilityChangedEvent)
	assert.Equal(t, int32(11), payload.UserID)
	assert.Equal(t, report, payload.Availability)

	// Progress updates keep flowing, identical reports do not.
	report.DownloadProgress = 0.8
	require.NoError(t, h.coord.ChangeBeatmapAvailability(context.Background(), 11, report))
	require.NoError(t, h.coord.ChangeBeatmapAvailability(context.Background(), 11, report))
	assert.Len(t, h.bc.eventsNamed(EventUserBeatmapAvailabilityChanged), 2)
}

func TestChangeBeatmapAvailabilityValidation(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	err := h.coord.ChangeBeatmapAvailability(context.Background(), 10, models.BeatmapAvailability{
		State: models.AvailabilityState(42),
	})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	err = h.coord.ChangeBeatmapAvailability(context.Background(), 11, models.BeatmapAvailability{})
	assert.ErrorIs(t, err, models.ErrNotJoinedRoom)
}
