package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sessionserrors "gymgate/internal/sessions/errors"
	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	"gymgate/pkg/model"
)

const (
	CollectionName = "sessions"
)

type mongoSessionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindConflicting(ctx context.Context, trainerID, zoneID string, date, start, end time.Time, excludeID string) ([]*model.Session, error)
	FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Session, error)
	FindByTrainerAndDate(ctx context.Context, trainerID string, date time.Time) ([]*model.Session, error)
	FindByZone(ctx context.Context, zoneID string, limit int, offset int64) ([]*model.Session, error)
	FindByDate(ctx context.Context, date time.Time) ([]*model.Session, error)
	MarkCancelled(ctx context.Context, id, reason string, at time.Time) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSessionRepository(cfg *config.Config) SessionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoSessionRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *mongoSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

// FindConflicting returns non-cancelled sessions on the date that share
// the trainer or the zone and overlap the half-open [start, end) range.
// Back-to-back sessions do not match.
func (r *mongoSessionRepository) FindConflicting(
	ctx context.Context,
	trainerID, zoneID string,
	date, start, end time.Time,
	excludeID string,
) ([]*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := conflictFilter(trainerID, zoneID, date, start, end, excludeID)
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicting sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

func conflictFilter(trainerID, zoneID string, date, start, end time.Time, excludeID string) bson.M {
	filter := bson.M{
		"date":         date,
		"is_cancelled": false,
		"$or": []bson.M{
			{"trainer_id": trainerID},
			{"zone_id": zoneID},
		},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func (r *mongoSessionRepository) FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Session, error) {
	return r.find(ctx, bson.M{"trainer_id": trainerID}, limit, offset)
}

func (r *mongoSessionRepository) FindByTrainerAndDate(ctx context.Context, trainerID string, date time.Time) ([]*model.Session, error) {
	return r.find(ctx, bson.M{
		"trainer_id":   trainerID,
		"date":         date,
		"is_cancelled": false,
	}, 0, 0)
}

func (r *mongoSessionRepository) FindByZone(ctx context.Context, zoneID string, limit int, offset int64) ([]*model.Session, error) {
	return r.find(ctx, bson.M{"zone_id": zoneID}, limit, offset)
}

func (r *mongoSessionRepository) FindByDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	return r.find(ctx, bson.M{"date": date}, 0, 0)
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Session, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "start_time", Value: 1},
	})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit)).SetSkip(offset)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

// MarkCancelled only matches a live session, so a session that is
// already cancelled or completed can never gain the cancelled mark.
func (r *mongoSessionRepository) MarkCancelled(ctx context.Context, id, reason string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, liveSessionFilter(id), bson.M{
		"$set": bson.M{
			"is_cancelled":        true,
			"cancellation_reason": reason,
			"cancelled_at":        at,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.terminalOrMissing(ctx, id)
	}

	return nil
}

// MarkCompleted carries the same live-session guard as MarkCancelled; a
// cancel that lands first makes the completion mark a no-match.
func (r *mongoSessionRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, liveSessionFilter(id), bson.M{
		"$set": bson.M{
			"is_completed": true,
			"completed_at": at,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.terminalOrMissing(ctx, id)
	}

	return nil
}

func liveSessionFilter(id string) bson.M {
	return bson.M{
		"_id":          id,
		"is_cancelled": false,
		"is_completed": false,
	}
}

func (r *mongoSessionRepository) terminalOrMissing(ctx context.Context, id string) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check session state: %w", err)
	}
	return fmt.Errorf("%w: %s", sessionserrors.ErrTerminalState, id)
}

func (r *mongoSessionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
