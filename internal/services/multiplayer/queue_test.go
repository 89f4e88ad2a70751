package multiplayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

func newItem(beatmapID int32) *models.PlaylistItem {
	return &models.PlaylistItem{
		BeatmapID:       beatmapID,
		BeatmapChecksum: map[int32]string{testBeatmapID: testBeatmapChecksum, altBeatmapID: altBeatmapChecksum}[beatmapID],
	}
}

func playMatch(h *harness, t *testing.T, players ...int32) {
	t.Helper()
	for _, p := range players {
		h.changeState(t, p, models.UserStateReady)
	}
	require.NoError(t, h.coord.StartMatch(context.Background(), players[0]))
	for _, p := range players {
		h.changeState(t, p, models.UserStateLoaded)
	}
	for _, p := range players {
		h.changeState(t, p, models.UserStateFinishedPlay)
	}
	for _, p := range players {
		h.changeState(t, p, models.UserStateIdle)
	}
}

func TestAddItemAllPlayers(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)
	h.bc.reset()

	require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 11, newItem(altBeatmapID)))

	added := h.bc.eventsNamed(EventPlaylistItemAdded)
	require.Len(t, added, 1)
	item := added[0].Payload.(models.PlaylistItemAddedEvent).Item
	assert.Equal(t, int32(11), item.OwnerID)
	assert.Equal(t, int64(1), item.RoomID)
	assert.Equal(t, altBeatmapID, item.BeatmapID)
	require.NotZero(t, item.ID)
	assert.Equal(t, altBeatmapID, h.db.items[item.ID].BeatmapID)

	// The first item is still current; no settings change yet.
	assert.Empty(t, h.bc.eventsNamed(EventSettingsChanged))
}

func TestAddItemPerUserLimit(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10, 11)

	for i := 0; i < PerUserItemLimit; i++ {
		require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 11, newItem(altBeatmapID)))
	}
	err := h.coord.AddPlaylistItem(context.Background(), 11, newItem(altBeatmapID))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// Other users have their own allowance. The host's seeded item counts
	// against theirs.
	for i := 0; i < PerUserItemLimit-1; i++ {
		require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 10, newItem(altBeatmapID)))
	}
	err = h.coord.AddPlaylistItem(context.Background(), 10, newItem(altBeatmapID))
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestAddItemValidation(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)

	item := newItem(altBeatmapID)
	item.BeatmapChecksum = testBeatmapChecksum
	err := h.coord.AddPlaylistItem(context.Background(), 10, item)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	item = newItem(altBeatmapID)
	item.BeatmapID = 999
	item.BeatmapChecksum = altBeatmapChecksum
	err = h.coord.AddPlaylistItem(context.Background(), 10, item)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	item = newItem(altBeatmapID)
	item.RulesetID = models.RulesetID(9)
	err = h.coord.AddPlaylistItem(context.Background(), 10, item)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	item = newItem(altBeatmapID)
	item.RequiredMods = []models.Mod{{Acronym: "HD"}}
	item.AllowedMods = []models.Mod{{Acronym: "HD"}}
	err = h.coord.AddPlaylistItem(context.Background(), 10, item)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestAddItemHostOnlyNonHostRejected(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeHostOnly, 10, 11)

	err := h.coord.AddPlaylistItem(context.Background(), 11, newItem(altBeatmapID))
	assert.ErrorIs(t, err, models.ErrNotHost)
}

func TestAddItemHostOnlyEditsInPlace(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeHostOnly, 10, 11)
	currentID := h.db.itemOrder[0]
	h.bc.reset()

	require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 10, newItem(altBeatmapID)))

	// No new item; the current one was rewritten, id and owner preserved.
	assert.Empty(t, h.bc.eventsNamed(EventPlaylistItemAdded))
	changed := h.bc.eventsNamed(EventPlaylistItemChanged)
	require.Len(t, changed, 1)
	item := changed[0].Payload.(models.PlaylistItemChangedEvent).Item
	assert.Equal(t, currentID, item.ID)
	assert.Equal(t, int32(10), item.OwnerID)
	assert.Equal(t, altBeatmapID, item.BeatmapID)
	assert.Equal(t, altBeatmapID, h.db.items[currentID].BeatmapID)

	// The room settings follow the rewrite.
	snapshot := h.join(t, 12, 1)
	assert.Equal(t, altBeatmapID, snapshot.Settings.BeatmapID)
	assert.Equal(t, currentID, snapshot.Settings.PlaylistItemID)
}

func TestHostOnlyReplenishesAfterPlay(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeHostOnly, 10)
	firstID := h.db.itemOrder[0]
	h.bc.reset()

	playMatch(h, t, 10)

	// The played item expired and a fresh copy took its place.
	assert.True(t, h.db.items[firstID].Expired)
	added := h.bc.eventsNamed(EventPlaylistItemAdded)
	require.Len(t, added, 1)
	dup := added[0].Payload.(models.PlaylistItemAddedEvent).Item
	assert.NotEqual(t, firstID, dup.ID)
	assert.False(t, dup.Expired)
	assert.Equal(t, h.db.items[firstID].BeatmapID, dup.BeatmapID)

	settingsChanged := h.bc.eventsNamed(EventSettingsChanged)
	require.NotEmpty(t, settingsChanged)
	last := settingsChanged[len(settingsChanged)-1].Payload.(models.SettingsChangedEvent).Settings
	assert.Equal(t, dup.ID, last.PlaylistItemID)
}

func TestAllPlayersAdvancesInInsertionOrder(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	first := h.seedItem(1, 10, testBeatmapID)
	second := h.seedItem(1, 10, altBeatmapID)
	h.join(t, 10, 1)

	playMatch(h, t, 10)

	assert.True(t, h.db.items[first].Expired)
	snapshot := h.join(t, 11, 1)
	assert.Equal(t, second, snapshot.Settings.PlaylistItemID)
	assert.Equal(t, altBeatmapID, snapshot.Settings.BeatmapID)
}

func TestAllPlayersExhaustedParksOnLastItem(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	onlyID := h.db.itemOrder[0]

	playMatch(h, t, 10)

	// Nothing left to play; the cursor stays on the expired item and no
	// replenishment happens outside host-only mode.
	snapshot := h.join(t, 11, 1)
	assert.Equal(t, onlyID, snapshot.Settings.PlaylistItemID)
	require.Len(t, snapshot.Playlist, 1)
	assert.True(t, snapshot.Playlist[0].Expired)
}

func TestQueueModeChangeToHostOnlyReplenishes(t *testing.T) {
	h := newHarness()
	h.newOpenRoom(t, 1, models.QueueModeAllPlayers, 10)
	playMatch(h, t, 10)

	room := h.join(t, 11, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 11))
	h.bc.reset()

	settings := room.Settings
	settings.QueueMode = models.QueueModeHostOnly
	require.NoError(t, h.coord.ChangeSettings(context.Background(), 10, settings))

	// Switching into host-only with everything played tops the queue up.
	added := h.bc.eventsNamed(EventPlaylistItemAdded)
	require.Len(t, added, 1)
	assert.False(t, added[0].Payload.(models.PlaylistItemAddedEvent).Item.Expired)
}

func TestAvailabilityResetOnAdvance(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayers, models.MatchTypeHeadToHead)
	h.seedItem(1, 10, testBeatmapID)
	h.seedItem(1, 10, altBeatmapID)
	h.join(t, 10, 1)

	require.NoError(t, h.coord.ChangeBeatmapAvailability(context.Background(), 10, models.BeatmapAvailability{
		State: models.AvailabilityLocallyAvailable,
	}))

	playMatch(h, t, 10)

	snapshot := h.join(t, 11, 1)
	user := snapshot.FindUser(10)
	require.NotNil(t, user)
	assert.Equal(t, models.AvailabilityUnknown, user.BeatmapAvailability.State)
}

func TestSelectRoundRobinIndex(t *testing.T) {
	item := func(owner int32, expired bool) *models.PlaylistItem {
		return &models.PlaylistItem{OwnerID: owner, Expired: expired}
	}

	tests := []struct {
		name     string
		playlist []*models.PlaylistItem
		want     int
		ok       bool
	}{
		{
			name:     "insertion order on equal counts",
			playlist: []*models.PlaylistItem{item(1, false), item(2, false)},
			want:     0,
			ok:       true,
		},
		{
			name:     "owner with fewer played goes first",
			playlist: []*models.PlaylistItem{item(1, true), item(1, false), item(2, false)},
			want:     2,
			ok:       true,
		},
		{
			name: "alternates between owners",
			playlist: []*models.PlaylistItem{
				item(1, true), item(1, false), item(1, false),
				item(2, true), item(2, false),
			},
			want: 1,
			ok:   true,
		},
		{
			name: "skips owners with nothing left",
			playlist: []*models.PlaylistItem{
				item(1, true), item(2, true), item(2, false),
			},
			want: 2,
			ok:   true,
		},
		{
			name:     "everything expired",
			playlist: []*models.PlaylistItem{item(1, true), item(2, true)},
			want:     0,
			ok:       false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectRoundRobinIndex(tc.playlist)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRoundRobinRotationAcrossRounds(t *testing.T) {
	h := newHarness()
	h.addRoomRecord(1, 10, models.QueueModeAllPlayersRoundRobin, models.MatchTypeHeadToHead)
	a1 := h.seedItem(1, 10, testBeatmapID)
	h.join(t, 10, 1)
	h.join(t, 11, 1)

	// User 10 queues a second item, user 11 queues one. After 10's first
	// item plays, fairness puts 11's item next even though 10's was queued
	// earlier.
	require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 10, newItem(altBeatmapID)))
	require.NoError(t, h.coord.AddPlaylistItem(context.Background(), 11, newItem(altBeatmapID)))

	snapshot := h.join(t, 12, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 12))
	assert.Equal(t, a1, snapshot.Settings.PlaylistItemID)

	playMatch(h, t, 10, 11)

	snapshot = h.join(t, 12, 1)
	require.NoError(t, h.coord.LeaveRoom(context.Background(), 12))
	itemsByOwner := make(map[int64]int32)
	for _, item := range snapshot.Playlist {
		itemsByOwner[item.ID] = item.OwnerID
	}
	assert.Equal(t, int32(11), itemsByOwner[snapshot.Settings.PlaylistItemID])
}
