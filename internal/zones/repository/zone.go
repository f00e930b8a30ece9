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

	zoneserrors "gymgate/internal/zones/errors"
	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	"gymgate/pkg/model"
)

const (
	CollectionName = "zones"
)

type mongoZoneRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ZoneRepository interface {
	Create(ctx context.Context, zone *model.Zone) error
	FindByID(ctx context.Context, id string) (*model.Zone, error)
	FindByName(ctx context.Context, name string) (*model.Zone, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Zone, error)
	Update(ctx context.Context, id string, zone *model.Zone) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoZoneRepository(cfg *config.Config) ZoneRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoZoneRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics.
func (r *mongoZoneRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoZoneRepository) Create(ctx context.Context, zone *model.Zone) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	zone.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, zone); err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}

	return nil
}

func (r *mongoZoneRepository) FindByID(ctx context.Context, id string) (*model.Zone, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var zone model.Zone
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&zone)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find zone: %w", err)
	}

	return &zone, nil
}

// FindByName matches case-insensitively so "Main Pool" and "main pool"
// resolve to the same zone.
func (r *mongoZoneRepository) FindByName(ctx context.Context, name string) (*model.Zone, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})

	var zone model.Zone
	err := r.collection.FindOne(ctx, bson.M{"name": name}, opts).Decode(&zone)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to find zone by name: %w", err)
	}

	return &zone, nil
}

func (r *mongoZoneRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Zone, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer cursor.Close(ctx)

	var zones []*model.Zone
	if err = cursor.All(ctx, &zones); err != nil {
		return nil, fmt.Errorf("failed to decode zones: %w", err)
	}

	return zones, nil
}

func (r *mongoZoneRepository) Update(ctx context.Context, id string, zone *model.Zone) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"name":      zone.Name,
			"capacity":  zone.Capacity,
			"is_active": zone.IsActive,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update zone: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoZoneRepository) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": active},
	})
	if err != nil {
		return fmt.Errorf("failed to set zone active flag: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoZoneRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count zones: %w", err)
	}
	return count, nil
}

func (r *mongoZoneRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
