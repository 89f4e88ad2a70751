// Package mongo provides MongoDB database connectivity and repositories.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// EnsureIndexes creates the indexes the repositories query against. Safe to
// run on every startup; existing indexes are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *utils.Logger) error {
	logger = logger.Named("mongo_indexes")

	indexes := map[string][]mongo.IndexModel{
		"multiplayer_playlist_items": {
			// Playlist initialisation fetches a room's items in id order.
			{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "_id", Value: 1}}},
		},
		"multiplayer_participants": {
			// Participant replacement deletes by room.
			{Keys: bson.D{{Key: "roomId", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		"multiplayer_scores": {
			// StartMatch clears scores by playlist item.
			{Keys: bson.D{{Key: "playlistItemId", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			logger.Error("Failed to create indexes", err, "collection", collection)
			return err
		}
		logger.Debug("Ensured indexes", "collection", collection, "count", len(models))
	}
	return nil
}
