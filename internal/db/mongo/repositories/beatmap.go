package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nanaya/osu-server-spectator/internal/models"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

const beatmapsCollection = "beatmaps"

// BeatmapRepository resolves beatmap checksums. Every enqueue and settings
// change verifies the client's checksum against it, rejecting locally
// modified beatmaps.
type BeatmapRepository interface {
	GetBeatmapChecksum(ctx context.Context, beatmapID int32) (string, error)
}

// beatmapRepository is the MongoDB implementation of BeatmapRepository.
type beatmapRepository struct {
	beatmaps *mongo.Collection
	timeout  time.Duration
	logger   *utils.Logger
}

// NewBeatmapRepository creates a new instance of BeatmapRepository.
func NewBeatmapRepository(db *mongo.Database, timeout time.Duration, logger *utils.Logger) BeatmapRepository {
	return &beatmapRepository{
		beatmaps: db.Collection(beatmapsCollection),
		timeout:  timeout,
		logger:   logger.Named("beatmap_repository"),
	}
}

// GetBeatmapChecksum returns the known MD5 for a beatmap id.
func (r *beatmapRepository) GetBeatmapChecksum(ctx context.Context, beatmapID int32) (string, error) {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	var doc struct {
		Checksum string `bson:"checksum"`
	}
	err := r.beatmaps.FindOne(ctx, bson.M{"_id": beatmapID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", models.ErrBeatmapNotFound
		}
		r.logger.Error("Failed to fetch beatmap", err, "beatmapId", beatmapID)
		return "", err
	}
	return doc.Checksum, nil
}
