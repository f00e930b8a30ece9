package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	ParticipantsCollectionName = "session_participants"
)

type ParticipantRepository interface {
	// Add inserts a signup row. The unique (session_id, client_id) index
	// makes a second signup fail with a duplicate key error, which the
	// caller translates.
	Add(ctx context.Context, participant *model.SessionParticipant) error
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	FindBySession(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error)
}

type mongoParticipantRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoParticipantRepository(cfg *config.Config) ParticipantRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoParticipantRepository{
		cfg:        cfg,
		collection: db.Collection(ParticipantsCollectionName),
	}
}

func (r *mongoParticipantRepository) Add(ctx context.Context, participant *model.SessionParticipant) error {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	participant.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, participant); err != nil {
		return err
	}

	return nil
}

func (r *mongoParticipantRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *mongoParticipantRepository) FindBySession(ctx context.Context, sessionID string) ([]*model.SessionParticipant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer cursor.Close(ctx)

	var participants []*model.SessionParticipant
	if err = cursor.All(ctx, &participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	return participants, nil
}
