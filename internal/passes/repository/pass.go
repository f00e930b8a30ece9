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

	passeserrors "gymgate/internal/passes/errors"
	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	CollectionName = "zone_passes"
)

type mongoPassRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type PassRepository interface {
	Create(ctx context.Context, pass *model.ZonePass) error
	FindByID(ctx context.Context, id string) (*model.ZonePass, error)
	FindEligible(ctx context.Context, clientID, zoneID string, now time.Time) ([]*model.ZonePass, error)
	FindByClient(ctx context.Context, clientID string) ([]*model.ZonePass, error)
	DecrementVisit(ctx context.Context, passID string) (*model.ZonePass, error)
	CreditVisits(ctx context.Context, clientID, zoneID string, visits int) (*model.ZonePass, error)
}

func NewMongoPassRepository(cfg *config.Config) PassRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPassRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPassRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoPassRepository) Create(ctx context.Context, pass *model.ZonePass) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if pass.ID == "" {
		pass.ID = uuid.NewString()
	}
	pass.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, pass); err != nil {
		return fmt.Errorf("failed to create pass: %w", err)
	}

	return nil
}

func (r *mongoPassRepository) FindByID(ctx context.Context, id string) (*model.ZonePass, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var pass model.ZonePass
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&pass)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", passeserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find pass: %w", err)
	}

	return &pass, nil
}

// FindEligible returns passes that could admit the client right now:
// visit-based with a positive counter, or time-based not yet expired.
// Sorted kind descending then created_at ascending; "visit_based" sorts
// after "time_based", so visit passes come first, oldest first within
// each kind.
func (r *mongoPassRepository) FindEligible(ctx context.Context, clientID, zoneID string, now time.Time) ([]*model.ZonePass, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"client_id": clientID,
		"zone_id":   zoneID,
		"$or": []bson.M{
			{"kind": model.PassKindVisitBased, "remaining_visits": bson.M{"$gt": 0}},
			{"kind": model.PassKindTimeBased, "end_date": nil},
			{"kind": model.PassKindTimeBased, "end_date": bson.M{"$gte": now}},
		},
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "kind", Value: -1},
		{Key: "created_at", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible passes: %w", err)
	}
	defer cursor.Close(ctx)

	var passes []*model.ZonePass
	if err = cursor.All(ctx, &passes); err != nil {
		return nil, fmt.Errorf("failed to decode passes: %w", err)
	}

	return passes, nil
}

func (r *mongoPassRepository) FindByClient(ctx context.Context, clientID string) ([]*model.ZonePass, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "zone_id", Value: 1},
		{Key: "created_at", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes for client: %w", err)
	}
	defer cursor.Close(ctx)

	var passes []*model.ZonePass
	if err = cursor.All(ctx, &passes); err != nil {
		return nil, fmt.Errorf("failed to decode passes: %w", err)
	}

	return passes, nil
}

// DecrementVisit atomically takes one visit off a pass that still has
// one. The filter is the whole race guard: if the counter hit zero since
// the caller listed the pass, no document matches and ErrExhausted comes
// back instead of a negative balance.
func (r *mongoPassRepository) DecrementVisit(ctx context.Context, passID string) (*model.ZonePass, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":              passID,
		"kind":             model.PassKindVisitBased,
		"remaining_visits": bson.M{"$gt": 0},
	}
	update := bson.M{"$inc": bson.M{"remaining_visits": -1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var pass model.ZonePass
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&pass)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", passeserrors.ErrExhausted, passID)
		}
		return nil, fmt.Errorf("failed to decrement pass: %w", err)
	}

	return &pass, nil
}

// CreditVisits adds visits to the client's visit-based pass for the
// zone, creating a zero-balance pass lazily on first credit.
func (r *mongoPassRepository) CreditVisits(ctx context.Context, clientID, zoneID string, visits int) (*model.ZonePass, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"client_id": clientID,
		"zone_id":   zoneID,
		"kind":      model.PassKindVisitBased,
	}
	update := bson.M{
		"$inc": bson.M{"remaining_visits": visits},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"created_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var pass model.ZonePass
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&pass)
	if err != nil {
		return nil, fmt.Errorf("failed to credit pass: %w", err)
	}

	return &pass, nil
}
