package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nanaya/osu-server-spectator/internal/db/mongo/repositories"
	"github.com/nanaya/osu-server-spectator/internal/models"
	"github.com/nanaya/osu-server-spectator/internal/utils"

	"github.com/stretchr/testify/require"
)

const (
	testBeatmapID       int32 = 101
	testBeatmapChecksum       = "0123456789abcdef0123456789abcdef"
	altBeatmapID        int32 = 202
	altBeatmapChecksum        = "fedcba9876543210fedcba9876543210"
)

// fakeDB implements all four repository interfaces in memory.
type fakeDB struct {
	mu sync.Mutex

	records    map[int64]*models.RoomRecord
	items      map[int64]*models.PlaylistItem
	itemOrder  []int64
	nextItemID int64
	checksums  map[int32]string
	restricted map[int32]bool

	participants  map[int64][]int32
	hosts         map[int64]int32
	names         map[int64]string
	ended         map[int64]bool
	clearedScores []int64

	failReplaceParticipants bool
	failUpdateItem          bool
	failUpdateName          bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		records:      make(map[int64]*models.RoomRecord),
		items:        make(map[int64]*models.PlaylistItem),
		checksums:    map[int32]string{testBeatmapID: testBeatmapChecksum, altBeatmapID: altBeatmapChecksum},
		restricted:   make(map[int32]bool),
		participants: make(map[int64][]int32),
		hosts:        make(map[int64]int32),
		names:        make(map[int64]string),
		ended:        make(map[int64]bool),
	}
}

func (f *fakeDB) GetRoom(ctx context.Context, id int64) (*models.RoomRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeDB) CreateRoom(ctx context.Context, record *models.RoomRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.ID] = record
	return nil
}

func (f *fakeDB) UpdateRoomName(ctx context.Context, id int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateName {
		return errors.New("update name failed")
	}
	f.names[id] = name
	return nil
}

func (f *fakeDB) UpdateRoomHost(ctx context.Context, id int64, userID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[id] = userID
	return nil
}

func (f *fakeDB) MarkRoomActive(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.EndsAt = nil
	}
	return nil
}

func (f *fakeDB) MarkRoomEnded(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended[id] = true
	if record, ok := f.records[id]; ok {
		now := time.Now()
		record.EndsAt = &now
	}
	return nil
}

func (f *fakeDB) ReplaceParticipants(ctx context.Context, roomID int64, userIDs []int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplaceParticipants {
		return errors.New("replace participants failed")
	}
	f.participants[roomID] = append([]int32(nil), userIDs...)
	return nil
}

func (f *fakeDB) GetAllPlaylistItems(ctx context.Context, roomID int64) ([]*models.PlaylistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*models.PlaylistItem
	for _, id := range f.itemOrder {
		if item := f.items[id]; item.RoomID == roomID {
			items = append(items, item.Clone())
		}
	}
	return items, nil
}

func (f *fakeDB) AddPlaylistItem(ctx context.Context, item *models.PlaylistItem) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItemID++
	item.ID = f.nextItemID
	f.items[item.ID] = item.Clone()
	f.itemOrder = append(f.itemOrder, item.ID)
	return item.ID, nil
}

func (f *fakeDB) UpdatePlaylistItem(ctx context.Context, item *models.PlaylistItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateItem {
		return errors.New("update item failed")
	}
	if _, ok := f.items[item.ID]; !ok {
		return models.ErrPlaylistItemNotFound
	}
	f.items[item.ID] = item.Clone()
	return nil
}

func (f *fakeDB) ExpirePlaylistItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return models.ErrPlaylistItemNotFound
	}
	item.Expired = true
	now := time.Now()
	item.PlayedAt = &now
	return nil
}

func (f *fakeDB) ClearScores(ctx context.Context, playlistItemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedScores = append(f.clearedScores, playlistItemID)
	return nil
}

func (f *fakeDB) GetBeatmapChecksum(ctx context.Context, beatmapID int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checksum, ok := f.checksums[beatmapID]
	if !ok {
		return "", models.ErrBeatmapNotFound
	}
	return checksum, nil
}

func (f *fakeDB) IsUserRestricted(ctx context.Context, userID int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restricted[userID], nil
}

// broadcastEvent is one recorded SendToGroup call.
type broadcastEvent struct {
	Group   string
	Event   string
	Payload any
}

// fakeBroadcaster records group membership and every published event in
// order.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
	groups map[string]map[string]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{groups: make(map[string]map[string]bool)}
}

func (b *fakeBroadcaster) SendToGroup(group, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{Group: group, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) AddToGroup(connectionID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groups[group] == nil {
		b.groups[group] = make(map[string]bool)
	}
	b.groups[group][connectionID] = true
}

func (b *fakeBroadcaster) RemoveFromGroup(connectionID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups[group], connectionID)
}

func (b *fakeBroadcaster) inGroup(connectionID, group string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.groups[group][connectionID]
}

func (b *fakeBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.Event
	}
	return names
}

func (b *fakeBroadcaster) eventsNamed(name string) []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []broadcastEvent
	for _, e := range b.events {
		if e.Event == name {
			matched = append(matched, e)
		}
	}
	return matched
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

func testLogger() *utils.Logger {
	return &utils.Logger{Logger: zap.NewNop()}
}

// harness bundles a coordinator with its fakes and seeding helpers.
type harness struct {
	db    *fakeDB
	bc    *fakeBroadcaster
	coord *Coordinator
}

func newHarness() *harness {
	db := newFakeDB()
	bc := newFakeBroadcaster()
	coord := NewCoordinator(&repositories.Database{
		RoomRepository:     db,
		PlaylistRepository: db,
		BeatmapRepository:  db,
		UserRepository:     db,
	}, bc, nil, nil, testLogger())
	return &harness{db: db, bc: bc, coord: coord}
}

func (h *harness) addRoomRecord(roomID int64, ownerID int32, queueMode models.QueueMode, matchType models.MatchType) {
	h.db.records[roomID] = &models.RoomRecord{
		ID:        roomID,
		Name:      fmt.Sprintf("room %d", roomID),
		Category:  models.RoomCategoryRealtime,
		OwnerID:   ownerID,
		QueueMode: queueMode,
		MatchType: matchType,
	}
}

// seedItem inserts a playlist item directly into the fake database, as the
// external room creation flow would.
func (h *harness) seedItem(roomID int64, ownerID, beatmapID int32) int64 {
	checksum := h.db.checksums[beatmapID]
	id, _ := h.db.AddPlaylistItem(context.Background(), &models.PlaylistItem{
		RoomID:          roomID,
		OwnerID:         ownerID,
		BeatmapID:       beatmapID,
		BeatmapChecksum: checksum,
	})
	return id
}

func connID(userID int32) string {
	return fmt.Sprintf("conn-%d", userID)
}

func (h *harness) join(t *testing.T, userID int32, roomID int64) *models.Room {
	t.Helper()
	room, err := h.coord.JoinRoom(context.Background(), userID, connID(userID), roomID)
	require.NoError(t, err)
	return room
}

func (h *harness) changeState(t *testing.T, userID int32, state models.UserState) {
	t.Helper()
	require.NoError(t, h.coord.ChangeState(context.Background(), userID, state))
}

// newOpenRoom seeds a record plus one playlist item and joins the given
// users, first one as owner/host.
func (h *harness) newOpenRoom(t *testing.T, roomID int64, queueMode models.QueueMode, users ...int32) {
	t.Helper()
	h.addRoomRecord(roomID, users[0], queueMode, models.MatchTypeHeadToHead)
	h.seedItem(roomID, users[0], testBeatmapID)
	for _, userID := range users {
		h.join(t, userID, roomID)
	}
}
