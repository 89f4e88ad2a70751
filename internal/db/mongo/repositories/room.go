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

// Collection names
const (
	roomsCollection        = "multiplayer_rooms"
	participantsCollection = "multiplayer_participants"
)

// RoomRepository defines the room-side persistence surface. Rooms are
// created by the web frontend; this server reads them on first join and
// writes lifecycle updates back.
type RoomRepository interface {
	GetRoom(ctx context.Context, id int64) (*models.RoomRecord, error)
	CreateRoom(ctx context.Context, record *models.RoomRecord) error
	UpdateRoomName(ctx context.Context, id int64, name string) error
	UpdateRoomHost(ctx context.Context, id int64, userID int32) error
	MarkRoomActive(ctx context.Context, id int64) error
	MarkRoomEnded(ctx context.Context, id int64) error
	ReplaceParticipants(ctx context.Context, roomID int64, userIDs []int32) error
}

// roomRepository is the MongoDB implementation of RoomRepository.
type roomRepository struct {
	client       *mongo.Client
	rooms        *mongo.Collection
	participants *mongo.Collection
	timeout      time.Duration
	logger       *utils.Logger
}

// NewRoomRepository creates a new instance of RoomRepository.
func NewRoomRepository(client *mongo.Client, db *mongo.Database, timeout time.Duration, logger *utils.Logger) RoomRepository {
	return &roomRepository{
		client:       client,
		rooms:        db.Collection(roomsCollection),
		participants: db.Collection(participantsCollection),
		timeout:      timeout,
		logger:       logger.Named("room_repository"),
	}
}

// GetRoom fetches a room record by id.
func (r *roomRepository) GetRoom(ctx context.Context, id int64) (*models.RoomRecord, error) {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	var record models.RoomRecord
	err := r.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRoomNotFound
		}
		r.logger.Error("Failed to fetch room", err, "roomId", id)
		return nil, err
	}
	return &record, nil
}

// CreateRoom inserts a room record. Used by fixtures and operational
// tooling; production rooms are created by the web frontend.
func (r *roomRepository) CreateRoom(ctx context.Context, record *models.RoomRecord) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	if record.ID == 0 {
		id, err := nextSequence(ctx, r.rooms.Database(), roomsCollection)
		if err != nil {
			return err
		}
		record.ID = id
	}
	record.CreateNow()
	_, err := r.rooms.InsertOne(ctx, record)
	return err
}

// UpdateRoomName persists a room rename.
func (r *roomRepository) UpdateRoomName(ctx context.Context, id int64, name string) error {
	return r.updateRoom(ctx, id, bson.D{cmdSet(bson.M{"name": name, "updatedAt": time.Now()})})
}

// UpdateRoomHost persists a host change.
func (r *roomRepository) UpdateRoomHost(ctx context.Context, id int64, userID int32) error {
	return r.updateRoom(ctx, id, bson.D{cmdSet(bson.M{"ownerId": userID, "updatedAt": time.Now()})})
}

// MarkRoomActive clears the room's end time. A room is active iff EndsAt is
// unset.
func (r *roomRepository) MarkRoomActive(ctx context.Context, id int64) error {
	return r.updateRoom(ctx, id, bson.D{
		cmdUnset(bson.M{"endsAt": ""}),
		cmdSet(bson.M{"updatedAt": time.Now()}),
	})
}

// MarkRoomEnded stamps the room's end time with the current time.
func (r *roomRepository) MarkRoomEnded(ctx context.Context, id int64) error {
	now := time.Now()
	return r.updateRoom(ctx, id, bson.D{cmdSet(bson.M{"endsAt": now, "updatedAt": now})})
}

func (r *roomRepository) updateRoom(ctx context.Context, id int64, update bson.D) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	result, err := r.rooms.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		r.logger.Error("Failed to update room", err, "roomId", id)
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}

// participantDoc is one row of the room's participant set.
type participantDoc struct {
	RoomID int64 `bson:"roomId"`
	UserID int32 `bson:"userId"`
}

// ReplaceParticipants swaps the room's participant set in one transaction
// (delete + insert), then mirrors the count onto the room record.
func (r *roomRepository) ReplaceParticipants(ctx context.Context, roomID int64, userIDs []int32) error {
	ctx, cancel := opContext(ctx, r.timeout)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := r.participants.DeleteMany(ctx, bson.M{"roomId": roomID}); err != nil {
			return nil, err
		}
		if len(userIDs) > 0 {
			docs := make([]any, len(userIDs))
			for i, userID := range userIDs {
				docs[i] = participantDoc{RoomID: roomID, UserID: userID}
			}
			if _, err := r.participants.InsertMany(ctx, docs); err != nil {
				return nil, err
			}
		}
		update := bson.D{cmdSet(bson.M{"participantCount": len(userIDs), "updatedAt": time.Now()})}
		if _, err := r.rooms.UpdateOne(ctx, bson.M{"_id": roomID}, update); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		r.logger.Error("Failed to replace participants", err, "roomId", roomID, "count", len(userIDs))
	}
	return err
}
