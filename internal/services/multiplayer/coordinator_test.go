package multiplayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

func TestJoinRoomCreatesRoomFromRecord(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	itemID := h.seedItem(1, 10, testBeatmapID)

	room := h.join(t, 10, 1)

	assert.Equal(t, int64(1), room.ID)
	assert.Equal(t, models.RoomStateOpen, room.State)
	require.NotNil(t, room.Host)
	assert.Equal(t, int32(10), room.Host.UserID)
	assert.Equal(t, itemID, room.Settings.PlaylistItemID)
	assert.Equal(t, testBeatmapID, room.Settings.BeatmapID)
	assert.Equal(t, "room 1", room.Settings.Name)

	assert.Equal(t, []int32{10}, h.db.participants[1])
	assert.True(t, h.bc.inGroup(connID(10), GroupName(1, false)))
	assert.False(t, h.bc.inGroup(connID(10), GroupName(1, true)))

	joined := h.bc.eventsNamed(EventUserJoined)
	require.Len(t, joined, 1)
	payload := joined[0].Payload.(models.UserJoinedEvent)
	assert.Equal(t, int32(10), payload.User.UserID)

	assert.Equal(t, 1, h.coord.RoomCount())
	assert.Equal(t, 1, h.coord.SessionCount())
}

func TestJoinRoomReturnsSnapshot(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	room := h.join(t, 11, 1)

	// Mutating the snapshot must not touch live state.
	room.Users[0].State = models.UserStatePlaying
	room.Settings.Name = "tampered"

	snapshot := h.join(t, 12, 1)
	assert.Equal(t, models.UserStateIdle, snapshot.Users[0].State)
	assert.Equal(t, "room 1", snapshot.Settings.Name)
}

func TestJoinRoomFirstJoinMustBeOwner(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(1, 10, testBeatmapID)

	_, err := h.coord.JoinRoom(context.Background(), 11, connID(11), 1)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 0, h.coord.RoomCount())
}

func TestJoinRoomValidation(t *testing.T) {
	h := newHarness()

	// Unknown room.
	_, err := h.coord.JoinRoom(context.Background(), 10, connID(10), 99)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Wrong category.
	h.addRoomRecord(2, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.db.records[2].Category = "playlists"
	h.seedItem(2, 10, testBeatmapID)
	_, err = h.coord.JoinRoom(context.Background(), 10, connID(10), 2)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Ended room.
	h.addRoomRecord(3, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(3, 10, testBeatmapID)
	require.NoError(t, h.db.MarkRoomEnded(context.Background(), 3))
	_, err = h.coord.JoinRoom(context.Background(), 10, connID(10), 3)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Empty playlist.
	h.addRoomRecord(4, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	_, err = h.coord.JoinRoom(context.Background(), 10, connID(10), 4)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestJoinRoomRestrictedUser(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	h.db.restricted[11] = true

	_, err := h.coord.JoinRoom(context.Background(), 11, connID(11), 1)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestJoinRoomWhileAlreadyJoined(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	h.addRoomRecord(2, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(2, 10, testBeatmapID)

	_, err := h.coord.JoinRoom(context.Background(), 10, connID(10), 2)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestJoinRoomPersistFailureRollsBack(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(1, 10, testBeatmapID)
	h.db.failReplaceParticipants = true

	_, err := h.coord.JoinRoom(context.Background(), 10, connID(10), 1)
	require.Error(t, err)

	assert.Equal(t, 0, h.coord.RoomCount())
	assert.Equal(t, 0, h.coord.SessionCount())
	assert.False(t, h.bc.inGroup(connID(10), GroupName(1, false)))
	assert.True(t, h.db.ended[1])

	// The room is joinable again once the database recovers.
	h.db.failReplaceParticipants = false
	h.db.records[1].EndsAt = nil
	h.join(t, 10, 1)
	assert.Equal(t, 1, h.coord.RoomCount())
}

func TestLeaveRoomPromotesNextHost(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11, 12)
	h.bc.reset()

	require.NoError(t, h.coord.LeaveRoom(context.Background(), 10))

	hostChanged := h.bc.eventsNamed(EventHostChanged)
	require.Len(t, hostChanged, 1)
	assert.Equal(t, int32(11), hostChanged[0].Payload.(models.HostChangedEvent).UserID)
	assert.Equal(t, int32(11), h.db.hosts[1])

	left := h.bc.eventsNamed(EventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, int32(10), left[0].Payload.(models.UserLeftEvent).UserID)

	assert.Equal(t, []int32{11, 12}, h.db.participants[1])
	assert.False(t, h.bc.inGroup(connID(10), GroupName(1, false)))

	// The session survives; the user can join another room.
	assert.Equal(t, 3, h.coord.SessionCount())
}

func TestLeaveRoomLastUserClosesRoom(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	require.NoError(t, h.coord.LeaveRoom(context.Background(), 10))

	assert.Equal(t, 0, h.coord.RoomCount())
	assert.True(t, h.db.ended[1])
	assert.Empty(t, h.db.participants[1])
}

func TestLeaveRoomNotJoined(t *testing.T) {
	h := newHarness()
	err := h.coord.LeaveRoom(context.Background(), 10)
	assert.ErrorIs(t, err, models.ErrNotJoinedRoom)
}

func TestRejoinAfterLeave(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	h.addRoomRecord(2, 11, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(2, 11, testBeatmapID)

	// The session survives LeaveRoom with no room id and must not block
	// the next join.
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 11))
	room := h.join(t, 11, 2)
	assert.Equal(t, int64(2), room.ID)
	assert.NotNil(t, room.FindUser(11))
	assert.True(t, h.bc.inGroup(connID(11), GroupName(2, false)))

	// The same room can be rejoined too.
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 11))
	room = h.join(t, 11, 1)
	assert.Equal(t, int64(1), room.ID)
}

func TestTransferHost(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	h.bc.reset()

	require.NoError(t, h.coord.TransferHost(context.Background(), 10, 11))

	events := h.bc.eventsNamed(EventHostChanged)
	require.Len(t, events, 1)
	assert.Equal(t, int32(11), events[0].Payload.(models.HostChangedEvent).UserID)
	assert.Equal(t, int32(11), h.db.hosts[1])

	// The old host may no longer transfer.
	err := h.coord.TransferHost(context.Background(), 10, 10)
	assert.ErrorIs(t, err, models.ErrNotHost)
}

func TestTransferHostValidation(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)

	err := h.coord.TransferHost(context.Background(), 11, 10)
	assert.ErrorIs(t, err, models.ErrNotHost)

	err = h.coord.TransferHost(context.Background(), 10, 99)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Transferring to oneself is a no-op.
	h.bc.reset()
	require.NoError(t, h.coord.TransferHost(context.Background(), 10, 10))
	assert.Empty(t, h.bc.eventsNamed(EventHostChanged))
}

func TestHandleDisconnectCleansUp(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)

	h.coord.HandleDisconnect(context.Background(), 11, connID(11))

	assert.Equal(t, 1, h.coord.SessionCount())
	assert.Equal(t, []int32{10}, h.db.participants[1])

	h.coord.HandleDisconnect(context.Background(), 10, connID(10))
	assert.Equal(t, 0, h.coord.SessionCount())
	assert.Equal(t, 0, h.coord.RoomCount())
	assert.True(t, h.db.ended[1])
}

func TestHandleDisconnectStaleConnection(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	// Cleanup for a connection that no longer owns the session must not
	// tear anything down.
	h.coord.HandleDisconnect(context.Background(), 10, "stale-conn")

	assert.Equal(t, 1, h.coord.SessionCount())
	assert.Equal(t, 1, h.coord.RoomCount())
}

func TestHandleDisconnectWithoutSession(t *testing.T) {
	h := newHarness()
	h.coord.HandleDisconnect(context.Background(), 10, connID(10))
	assert.Equal(t, 0, h.coord.SessionCount())
}

func TestChangeSettingsRoundTrip(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	h.changeState(t, 11, models.UserStateReady)
	h.bc.reset()

	settings := models.RoomSettings{
		Name:            "new name",
		BeatmapID:       altBeatmapID,
		BeatmapChecksum: altBeatmapChecksum,
		RulesetID:       models.RulesetTaiko,
		RequiredMods:    []models.Mod{{Acronym: "HD"}},
		AllowedMods:     []models.Mod{{Acronym: "DT"}},
		QueueMode:       models.QueueModeAllPlayers,
		MatchType:       models.MatchTypeHeadToHead,
		PlaylistItemID:  999, // client-sent ids are ignored
	}
	require.NoError(t, h.coord.ChangeSettings(context.Background(), 10, settings))

	changed := h.bc.eventsNamed(EventSettingsChanged)
	require.Len(t, changed, 1)
	got := changed[0].Payload.(models.SettingsChangedEvent).Settings
	settings.PlaylistItemID = got.PlaylistItemID
	assert.True(t, got.Equal(settings))

	// The current item mirrors the settings, id and owner preserved.
	itemChanged := h.bc.eventsNamed(EventPlaylistItemChanged)
	require.Len(t, itemChanged, 1)
	item := itemChanged[0].Payload.(models.PlaylistItemChangedEvent).Item
	assert.Equal(t, got.PlaylistItemID, item.ID)
	assert.Equal(t, int32(10), item.OwnerID)
	assert.Equal(t, altBeatmapID, item.BeatmapID)
	assert.Equal(t, h.db.items[item.ID].BeatmapID, altBeatmapID)
	assert.Equal(t, "new name", h.db.names[1])

	// Ready users were demoted back to idle.
	states := h.bc.eventsNamed(EventUserStateChanged)
	require.Len(t, states, 1)
	payload := states[0].Payload.(models.UserStateChangedEvent)
	assert.Equal(t, int32(11), payload.UserID)
	assert.Equal(t, models.UserStateIdle, payload.State)
}

func TestChangeSettingsNoOp(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	room := h.join(t, 11, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 11))
	h.bc.reset()

	require.NoError(t, h.coord.ChangeSettings(context.Background(), 10, room.Settings))
	assert.Empty(t, h.bc.eventNames())
}

func TestChangeSettingsValidation(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	room := h.join(t, 12, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 12))

	valid := room.Settings

	// Non-host.
	err := h.coord.ChangeSettings(context.Background(), 11, valid)
	assert.ErrorIs(t, err, models.ErrNotHost)

	// Checksum mismatch.
	bad := valid
	bad.BeatmapChecksum = altBeatmapChecksum
	err = h.coord.ChangeSettings(context.Background(), 10, bad)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Unknown beatmap.
	bad = valid
	bad.BeatmapID = 999
	err = h.coord.ChangeSettings(context.Background(), 10, bad)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Mod not valid for the ruleset.
	bad = valid
	bad.RequiredMods = []models.Mod{{Acronym: "XX"}}
	err = h.coord.ChangeSettings(context.Background(), 10, bad)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Not while a match is running.
	h.changeState(t, 10, models.UserStateReady)
	h.changeState(t, 11, models.UserStateReady)
	require.NoError(t, h.coord.StartMatch(context.Background(), 10))
	err = h.coord.ChangeSettings(context.Background(), 10, valid)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestChangeSettingsPersistFailureRollsBack(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	before := h.join(t, 11, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 11))
	h.db.failUpdateItem = true
	h.bc.reset()

	settings := before.Settings
	settings.Name = "changed"
	settings.RequiredMods = []models.Mod{{Acronym: "HD"}}
	err := h.coord.ChangeSettings(context.Background(), 10, settings)
	require.Error(t, err)

	after := h.join(t, 12, 1)
	assert.True(t, after.Settings.Equal(before.Settings))
	item := after.Playlist[0]
	assert.Empty(t, item.RequiredMods)
	assert.Empty(t, h.bc.eventsNamed(EventSettingsChanged))
}

func TestChangeSettingsMatchTypeRebuildsStates(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11, 12)
	room := h.join(t, 13, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 13))
	h.bc.reset()

	settings := room.Settings
	settings.MatchType = models.MatchTypeTeamVersus
	require.NoError(t, h.coord.ChangeSettings(context.Background(), 10, settings))

	roomStates := h.bc.eventsNamed(EventMatchRoomStateChanged)
	require.Len(t, roomStates, 1)
	state := roomStates[0].Payload.(models.MatchRoomStateChangedEvent).State
	require.NotNil(t, state.TeamVersus)
	assert.Len(t, state.TeamVersus.Teams, 2)

	// Users are reassigned in join order, alternating teams.
	userStates := h.bc.eventsNamed(EventMatchUserStateChanged)
	require.Len(t, userStates, 3)
	teams := make([]int32, 3)
	for i, e := range userStates {
		payload := e.Payload.(models.MatchUserStateChangedEvent)
		require.NotNil(t, payload.State.TeamVersus)
		teams[i] = payload.State.TeamVersus.TeamID
	}
	assert.Equal(t, []int32{0, 1, 0}, teams)
}
