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

	attendanceerrors "gymgate/internal/attendance/errors"
	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	"gymgate/pkg/model"
)

const (
	CollectionName = "visits"
)

type VisitRepository interface {
	Create(ctx context.Context, visit *model.Visit) error
	FindByID(ctx context.Context, id string) (*model.Visit, error)

	// FindOpenDirectByClient returns the client's open walk-in visit, or
	// nil when the client is not inside. The partial unique index on open
	// direct visits guarantees at most one.
	FindOpenDirectByClient(ctx context.Context, clientID string) (*model.Visit, error)

	// FindSessionVisit returns the visit recorded for a session
	// participant, or nil when the participant has not been charged.
	FindSessionVisit(ctx context.Context, sessionID, clientID string) (*model.Visit, error)

	// Close stamps the check-out time and returns the updated visit.
	Close(ctx context.Context, id string, at time.Time) (*model.Visit, error)

	FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, error)
	FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error)
	CountByClient(ctx context.Context, clientID string) (int64, error)

	// FindOpen lists all open walk-in visits: everyone inside right now.
	FindOpen(ctx context.Context) ([]*model.Visit, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoVisitRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoVisitRepository(cfg *config.Config) VisitRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVisitRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoVisitRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoVisitRepository) Create(ctx context.Context, visit *model.Visit) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}

	if _, err := r.collection.InsertOne(ctx, visit); err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}

	return nil
}

func (r *mongoVisitRepository) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var visit model.Visit
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&visit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", attendanceerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find visit: %w", err)
	}

	return &visit, nil
}

func (r *mongoVisitRepository) FindOpenDirectByClient(ctx context.Context, clientID string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := openDirectFilter()
	filter["client_id"] = clientID

	var visit model.Visit
	err := r.collection.FindOne(ctx, filter).Decode(&visit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open visit: %w", err)
	}

	return &visit, nil
}

func (r *mongoVisitRepository) FindSessionVisit(ctx context.Context, sessionID, clientID string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"session_id": sessionID,
		"client_id":  clientID,
		"visit_type": model.VisitTypeSession,
	}

	var visit model.Visit
	err := r.collection.FindOne(ctx, filter).Decode(&visit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session visit: %w", err)
	}

	return &visit, nil
}

func (r *mongoVisitRepository) Close(ctx context.Context, id string, at time.Time) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var visit model.Visit
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "check_out": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"check_out": at}},
		opts,
	).Decode(&visit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", attendanceerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to close visit: %w", err)
	}

	return &visit, nil
}

func (r *mongoVisitRepository) FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{"client_id": clientID}, limit, offset)
}

func (r *mongoVisitRepository) FindByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{"trainer_id": trainerID}, limit, offset)
}

func (r *mongoVisitRepository) CountByClient(ctx context.Context, clientID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}

	return count, nil
}

func (r *mongoVisitRepository) FindOpen(ctx context.Context) ([]*model.Visit, error) {
	return r.find(ctx, openDirectFilter(), 0, 0)
}

func (r *mongoVisitRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func openDirectFilter() bson.M {
	return bson.M{
		"visit_type": model.VisitTypeDirect,
		"check_out":  bson.M{"$exists": false},
	}
}

func (r *mongoVisitRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit)).SetSkip(offset)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer cursor.Close(ctx)

	var visits []*model.Visit
	if err = cursor.All(ctx, &visits); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}

	return visits, nil
}
