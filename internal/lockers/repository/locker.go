package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	lockerserrors "gymgate/internal/lockers/errors"
	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	CollectionName = "lockers"
)

type mongoLockerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type LockerRepository interface {
	FindByID(ctx context.Context, id string) (*model.Locker, error)
	FindHeldBy(ctx context.Context, clientID string) (*model.Locker, error)
	FindByCategory(ctx context.Context, category string) ([]*model.Locker, error)
	ClaimFree(ctx context.Context, category, clientID, code string) (*model.Locker, error)
	Release(ctx context.Context, lockerID, code string) (*model.Locker, error)
}

func NewMongoLockerRepository(cfg *config.Config) LockerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockerRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoLockerRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoLockerRepository) FindByID(ctx context.Context, id string) (*model.Locker, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var locker model.Locker
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&locker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lockerserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find locker: %w", err)
	}

	return &locker, nil
}

// FindHeldBy returns the locker the client currently occupies, or nil.
func (r *mongoLockerRepository) FindHeldBy(ctx context.Context, clientID string) (*model.Locker, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":      model.LockerStatusOccupied,
		"occupied_by": clientID,
	}

	var locker model.Locker
	err := r.collection.FindOne(ctx, filter).Decode(&locker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find locker held by client: %w", err)
	}

	return &locker, nil
}

func (r *mongoLockerRepository) FindByCategory(ctx context.Context, category string) ([]*model.Locker, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "category", Value: 1},
		{Key: "number", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockers: %w", err)
	}
	defer cursor.Close(ctx)

	var lockers []*model.Locker
	if err = cursor.All(ctx, &lockers); err != nil {
		return nil, fmt.Errorf("failed to decode lockers: %w", err)
	}

	return lockers, nil
}

// ClaimFree atomically takes the lowest-numbered free locker in the
// category. Two concurrent claims cannot match the same document, so
// each winner gets a distinct locker.
func (r *mongoLockerRepository) ClaimFree(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"category": category,
		"status":   model.LockerStatusFree,
	}
	update := bson.M{
		"$set": bson.M{
			"status":      model.LockerStatusOccupied,
			"occupied_by": clientID,
			"code":        code,
			"updated_at":  time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "number", Value: 1}}).
		SetReturnDocument(options.After)

	var locker model.Locker
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&locker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lockerserrors.ErrNoneFree, category)
		}
		return nil, fmt.Errorf("failed to claim locker: %w", err)
	}

	return &locker, nil
}

// Release frees the locker and installs a fresh code so the previous
// occupant's code stops working. Releasing an already free locker just
// rotates the code again.
func (r *mongoLockerRepository) Release(ctx context.Context, lockerID, code string) (*model.Locker, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":     model.LockerStatusFree,
			"code":       code,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
		"$unset": bson.M{"occupied_by": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var locker model.Locker
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": lockerID}, update, opts).Decode(&locker)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", lockerserrors.ErrNotFound, lockerID)
		}
		return nil, fmt.Errorf("failed to release locker: %w", err)
	}

	return &locker, nil
}
