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

const usersCollection = "users"

// UserRepository exposes the only user fact this server needs: whether an
// account is restricted from multiplayer.
type UserRepository interface {
	IsUserRestricted(ctx context.Context, userID int32) (bool, error)
}

// userRepository is the MongoDB implementation of UserRepository.
type userRepository struct {
	users   *mongo.Collection
	timeout time.Duration
	logger  *utils.Logger
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database, timeout time.Duration, logger *utils.Logger) UserRepository {
	return &userRepository{
		users:   db.Collection(usersCollection),
		timeout: timeout,
		logger:  logger.Named("user_repository"),
	}
}

// IsUserRestricted reports the account's restriction flag. An unknown user
// id is an error: connections are authenticated, so the account must exist.
func (r *userRepository) IsUserRestricted(ctx context.Context, userID int32) (bool, error) {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	var doc struct {
		Restricted bool `bson:"restricted"`
	}
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, models.ErrUserNotFound
		}
		r.logger.Error("Failed to fetch user", err, "userId", userID)
		return false, err
	}
	return doc.Restricted, nil
}
