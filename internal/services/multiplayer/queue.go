package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// PerUserItemLimit caps how many unexpired items one user may have queued
// in the all-players modes.
const PerUserItemLimit = 3

// AddPlaylistItem enqueues an item on behalf of a user. In host-only mode
// the host edits the current item in place instead.
func (c *Coordinator) AddPlaylistItem(ctx context.Context, userID int32, item *models.PlaylistItem) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		return c.addItem(ctx, room, userID, item)
	})
}

func (c *Coordinator) addItem(ctx context.Context, room *models.Room, userID int32, item *models.PlaylistItem) error {
	hostOnly := room.Settings.QueueMode == models.QueueModeHostOnly
	if hostOnly && (room.Host == nil || room.Host.UserID != userID) {
		return models.ErrNotHost
	}
	if !hostOnly && countOwnedUnexpired(room, userID) >= PerUserItemLimit {
		return fmt.Errorf("%w: at most %d queued items per user", models.ErrInvalidState, PerUserItemLimit)
	}
	if err := c.validateItemContent(ctx, item.BeatmapID, item.BeatmapChecksum, item.RulesetID, item.RequiredMods, item.AllowedMods); err != nil {
		return err
	}

	if hostOnly {
		// The host rewrites the current item rather than growing the queue.
		// Id and original owner survive the edit.
		current := room.CurrentItem()
		updated := current.Clone()
		updated.BeatmapID = item.BeatmapID
		updated.BeatmapChecksum = item.BeatmapChecksum
		updated.RulesetID = item.RulesetID
		updated.RequiredMods = append([]models.Mod(nil), item.RequiredMods...)
		updated.AllowedMods = append([]models.Mod(nil), item.AllowedMods...)

		if err := c.db.UpdatePlaylistItem(ctx, updated); err != nil {
			return err
		}
		*current = *updated
		syncSettingsToItem(room, current)
		c.publish(room.ID, false, EventPlaylistItemChanged, models.PlaylistItemChangedEvent{RoomID: room.ID, Item: current})
		return nil
	}

	add := item.Clone()
	add.RoomID = room.ID
	add.OwnerID = userID
	add.Expired = false
	add.PlayedAt = nil
	if _, err := c.db.AddPlaylistItem(ctx, add); err != nil {
		return err
	}
	room.Playlist = append(room.Playlist, add)
	c.publish(room.ID, false, EventPlaylistItemAdded, models.PlaylistItemAddedEvent{RoomID: room.ID, Item: add})
	c.metrics.PlaylistItemQueued()
	c.updateCurrentItem(room)
	return nil
}

// validateItemContent checks beatmap existence and checksum, ruleset range
// and mod legality. Shared by enqueue and settings changes.
func (c *Coordinator) validateItemContent(ctx context.Context, beatmapID int32, checksum string, ruleset models.RulesetID, required, allowed []models.Mod) error {
	known, err := c.db.GetBeatmapChecksum(ctx, beatmapID)
	if err != nil {
		if errors.Is(err, models.ErrBeatmapNotFound) {
			return fmt.Errorf("%w: beatmap %d is not known to the server", models.ErrInvalidState, beatmapID)
		}
		return err
	}
	if known != checksum {
		return fmt.Errorf("%w: beatmap %d has been modified", models.ErrInvalidState, beatmapID)
	}
	if !ruleset.Valid() {
		return fmt.Errorf("%w: ruleset %d is out of range", models.ErrInvalidState, ruleset)
	}
	if err := models.ValidateMods(ruleset, required, allowed); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidState, err)
	}
	return nil
}

// initialiseQueue loads the room's persisted playlist in database order and
// positions the cursor. Runs during room creation, before any member is in
// a group.
func (c *Coordinator) initialiseQueue(ctx context.Context, room *models.Room) error {
	items, err := c.db.GetAllPlaylistItems(ctx, room.ID)
	if err != nil {
		return err
	}
	room.Playlist = items
	c.updateCurrentItem(room)
	return nil
}

// finishCurrentItem expires the current item after a round, tops the queue
// back up in host-only mode, and advances the cursor.
func (c *Coordinator) finishCurrentItem(ctx context.Context, room *models.Room) error {
	item := room.CurrentItem()
	if item == nil || item.Expired {
		c.updateCurrentItem(room)
		return nil
	}

	if err := c.db.ExpirePlaylistItem(ctx, item.ID); err != nil {
		return err
	}
	now := time.Now()
	item.Expired = true
	item.PlayedAt = &now
	c.publish(room.ID, false, EventPlaylistItemChanged, models.PlaylistItemChangedEvent{RoomID: room.ID, Item: item})

	// Host-only rooms always keep one playable item: replay the last one.
	if room.Settings.QueueMode == models.QueueModeHostOnly && !hasUnexpired(room) {
		if err := c.duplicateItem(ctx, room, item); err != nil {
			return err
		}
	}
	c.updateCurrentItem(room)
	return nil
}

// duplicateItem enqueues a fresh copy of src at the tail.
func (c *Coordinator) duplicateItem(ctx context.Context, room *models.Room, src *models.PlaylistItem) error {
	dup := src.Clone()
	dup.ID = 0
	dup.Expired = false
	dup.PlayedAt = nil
	if _, err := c.db.AddPlaylistItem(ctx, dup); err != nil {
		return err
	}
	room.Playlist = append(room.Playlist, dup)
	c.publish(room.ID, false, EventPlaylistItemAdded, models.PlaylistItemAddedEvent{RoomID: room.ID, Item: dup})
	return nil
}

// updateFromQueueModeChange re-evaluates the queue after the host switched
// modes. Switching into host-only with nothing left to play tops the queue
// up first.
func (c *Coordinator) updateFromQueueModeChange(ctx context.Context, room *models.Room) error {
	if room.Settings.QueueMode == models.QueueModeHostOnly && !hasUnexpired(room) {
		if err := c.duplicateItem(ctx, room, room.CurrentItem()); err != nil {
			return err
		}
	}
	c.updateCurrentItem(room)
	return nil
}

// updateCurrentItem repositions the queue cursor per the active queue mode.
// When the current item actually changes, the room settings are synced to
// it, download reports reset, and the new settings broadcast.
func (c *Coordinator) updateCurrentItem(room *models.Room) {
	room.CurrentIndex = selectCurrentIndex(room)
	item := room.CurrentItem()
	if item == nil || room.Settings.PlaylistItemID == item.ID {
		return
	}

	syncSettingsToItem(room, item)

	// A new current item invalidates everyone's download reports.
	for _, u := range room.Users {
		u.BeatmapAvailability = models.BeatmapAvailability{}
	}
	c.publish(room.ID, false, EventSettingsChanged, models.SettingsChangedEvent{RoomID: room.ID, Settings: room.Settings})
}

// syncSettingsToItem mirrors the item's playable fields into the room
// settings, which always describe the current item.
func syncSettingsToItem(room *models.Room, item *models.PlaylistItem) {
	room.Settings.PlaylistItemID = item.ID
	room.Settings.BeatmapID = item.BeatmapID
	room.Settings.BeatmapChecksum = item.BeatmapChecksum
	room.Settings.RulesetID = item.RulesetID
	room.Settings.RequiredMods = append([]models.Mod(nil), item.RequiredMods...)
	room.Settings.AllowedMods = append([]models.Mod(nil), item.AllowedMods...)
}

// selectCurrentIndex picks the playlist index of the next item to play:
// first unexpired in insertion order, or round-robin fair across owners.
// With everything expired the cursor parks on the last item.
func selectCurrentIndex(room *models.Room) int {
	if len(room.Playlist) == 0 {
		return 0
	}
	if room.Settings.QueueMode == models.QueueModeAllPlayersRoundRobin {
		if idx, ok := selectRoundRobinIndex(room.Playlist); ok {
			return idx
		}
	} else {
		for i, item := range room.Playlist {
			if !item.Expired {
				return i
			}
		}
	}
	return len(room.Playlist) - 1
}

// selectRoundRobinIndex picks fairly across owners: owners who have played
// the least go first (insertion order breaking ties), and each owner
// contributes their oldest unexpired item.
func selectRoundRobinIndex(playlist []*models.PlaylistItem) (int, bool) {
	byOwner := lo.GroupBy(lo.Range(len(playlist)), func(i int) int32 {
		return playlist[i].OwnerID
	})
	owners := lo.Uniq(lo.Map(playlist, func(item *models.PlaylistItem, _ int) int32 {
		return item.OwnerID
	}))
	sort.SliceStable(owners, func(a, b int) bool {
		return countExpired(playlist, byOwner[owners[a]]) < countExpired(playlist, byOwner[owners[b]])
	})

	for _, owner := range owners {
		for _, i := range byOwner[owner] {
			if !playlist[i].Expired {
				return i, true
			}
		}
	}
	return 0, false
}

func countExpired(playlist []*models.PlaylistItem, indexes []int) int {
	return lo.CountBy(indexes, func(i int) bool {
		return playlist[i].Expired
	})
}

func hasUnexpired(room *models.Room) bool {
	for _, item := range room.Playlist {
		if !item.Expired {
			return true
		}
	}
	return false
}

func countOwnedUnexpired(room *models.Room, userID int32) int {
	n := 0
	for _, item := range room.Playlist {
		if item.OwnerID == userID && !item.Expired {
			n++
		}
	}
	return n
}
