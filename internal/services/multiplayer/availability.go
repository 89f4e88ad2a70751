package multiplayer

import (
	"context"
	"fmt"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// ChangeBeatmapAvailability records a member's download progress for the
// current beatmap and fans it out. Reporting the same value twice is a
// no-op and produces no event.
func (c *Coordinator) ChangeBeatmapAvailability(ctx context.Context, userID int32, availability models.BeatmapAvailability) error {
	return c.withSessionRoom(ctx, userID, func(sess *models.UserSession, room *models.Room) error {
		user := room.FindUser(userID)
		if user == nil {
			return fmt.Errorf("%w: user %d has a session for room %d but is not a member", models.ErrInvalidOperation, userID, room.ID)
		}
		if !availability.State.Valid() {
			return fmt.Errorf("%w: unknown availability state %d", models.ErrInvalidState, availability.State)
		}
		if user.BeatmapAvailability.Equal(availability) {
			return nil
		}

		user.BeatmapAvailability = availability
		c.publish(room.ID, false, EventUserBeatmapAvailabilityChanged, models.UserBeatmapAvailabilityChangedEvent{
			RoomID:       room.ID,
			UserID:       userID,
			Availability: availability,
		})
		return nil
	})
}
