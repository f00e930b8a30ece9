package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	LocksCollectionName = "session_locks"
)

// SessionLockRepository provides advisory locks for sessions. The TTL
// index on expires_at reaps locks orphaned by a crashed holder.
type SessionLockRepository interface {
	Acquire(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSessionLockRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionLockRepository(cfg *config.Config) SessionLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionLockRepository{
		collection: db.Collection(LocksCollectionName),
	}
}

// Acquire returns a duplicate key error when the lock is already held.
func (r *mongoSessionLockRepository) Acquire(ctx context.Context, lockID string, ttl time.Duration) (*model.SessionLock, error) {
	lock := &model.SessionLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoSessionLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
