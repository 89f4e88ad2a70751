package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nanaya/osu-server-spectator/internal/models"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Collection names
const (
	playlistItemsCollection = "multiplayer_playlist_items"
	scoresCollection        = "multiplayer_scores"
)

// PlaylistRepository defines the playlist-item persistence surface.
type PlaylistRepository interface {
	// GetAllPlaylistItems returns every item of a room in insertion order.
	GetAllPlaylistItems(ctx context.Context, roomID int64) ([]*models.PlaylistItem, error)

	// AddPlaylistItem inserts an item and returns its database-assigned id.
	AddPlaylistItem(ctx context.Context, item *models.PlaylistItem) (int64, error)

	// UpdatePlaylistItem rewrites an existing item's content.
	UpdatePlaylistItem(ctx context.Context, item *models.PlaylistItem) error

	// ExpirePlaylistItem marks an item as played.
	ExpirePlaylistItem(ctx context.Context, id int64) error

	// ClearScores removes any scores attached to a playlist item.
	ClearScores(ctx context.Context, playlistItemID int64) error
}

// playlistRepository is the MongoDB implementation of PlaylistRepository.
type playlistRepository struct {
	items   *mongo.Collection
	scores  *mongo.Collection
	timeout time.Duration
	logger  *utils.Logger
}

// NewPlaylistRepository creates a new instance of PlaylistRepository.
func NewPlaylistRepository(db *mongo.Database, timeout time.Duration, logger *utils.Logger) PlaylistRepository {
	return &playlistRepository{
		items:   db.Collection(playlistItemsCollection),
		scores:  db.Collection(scoresCollection),
		timeout: timeout,
		logger:  logger.Named("playlist_repository"),
	}
}

// GetAllPlaylistItems returns every item of a room, expired ones included,
// ordered by id ascending. Ids are drawn from a monotonic counter, so id
// order is insertion order.
func (r *playlistRepository) GetAllPlaylistItems(ctx context.Context, roomID int64) ([]*models.PlaylistItem, error) {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	cursor, err := r.items.Find(ctx, bson.M{"roomId": roomID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		r.logger.Error("Failed to fetch playlist items", err, "roomId", roomID)
		return nil, err
	}
	var items []*models.PlaylistItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddPlaylistItem inserts the item with a freshly assigned id and returns it.
func (r *playlistRepository) AddPlaylistItem(ctx context.Context, item *models.PlaylistItem) (int64, error) {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	id, err := nextSequence(ctx, r.items.Database(), playlistItemsCollection)
	if err != nil {
		return 0, err
	}
	item.ID = id
	item.CreateNow()
	if _, err := r.items.InsertOne(ctx, item); err != nil {
		r.logger.Error("Failed to insert playlist item", err, "roomId", item.RoomID, "itemId", id)
		return 0, err
	}
	return id, nil
}

// UpdatePlaylistItem rewrites the item's mutable content in place.
func (r *playlistRepository) UpdatePlaylistItem(ctx context.Context, item *models.PlaylistItem) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	update := bson.D{cmdSet(bson.M{
		"beatmapId":       item.BeatmapID,
		"beatmapChecksum": item.BeatmapChecksum,
		"rulesetId":       item.RulesetID,
		"requiredMods":    item.RequiredMods,
		"allowedMods":     item.AllowedMods,
		"expired":         item.Expired,
		"updatedAt":       time.Now(),
	})}
	result, err := r.items.UpdateOne(ctx, bson.M{"_id": item.ID}, update)
	if err != nil {
		r.logger.Error("Failed to update playlist item", err, "itemId", item.ID)
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrPlaylistItemNotFound
	}
	return nil
}

// ExpirePlaylistItem marks the item played at the current time.
func (r *playlistRepository) ExpirePlaylistItem(ctx context.Context, id int64) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	update := bson.D{cmdSet(bson.M{"expired": true, "playedAt": now, "updatedAt": now})}
	result, err := r.items.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		r.logger.Error("Failed to expire playlist item", err, "itemId", id)
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrPlaylistItemNotFound
	}
	return nil
}

// ClearScores deletes all scores recorded against a playlist item. Score
// writing belongs to another service; this server only resets the slate
// before a match starts.
func (r *playlistRepository) ClearScores(ctx context.Context, playlistItemID int64) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	_, err := r.scores.DeleteMany(ctx, bson.M{"playlistItemId": playlistItemID})
	if err != nil {
		r.logger.Error("Failed to clear scores", err, "itemId", playlistItemID)
	}
	return err
}
