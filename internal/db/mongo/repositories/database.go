package repositories

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Database bundles the repositories into the single persistence surface the
// multiplayer coordinator consumes.
type Database struct {
	RoomRepository
	PlaylistRepository
	BeatmapRepository
	UserRepository
}

// NewDatabase wires all repositories against one mongo database.
func NewDatabase(client *mongo.Client, db *mongo.Database, timeout time.Duration, logger *utils.Logger) *Database {
	return &Database{
		RoomRepository:     NewRoomRepository(client, db, timeout, logger),
		PlaylistRepository: NewPlaylistRepository(db, timeout, logger),
		BeatmapRepository:  NewBeatmapRepository(db, timeout, logger),
		UserRepository:     NewUserRepository(db, timeout, logger),
	}
}
