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

	slotserrors "gymgate/internal/slots/errors"
	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	CollectionName = "availability_slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	FindByTrainer(ctx context.Context, trainerID string) ([]*model.AvailabilitySlot, error)
	FindByTrainerAndDay(ctx context.Context, trainerID string, day config.Weekday) ([]*model.AvailabilitySlot, error)
	Update(ctx context.Context, id string, slot *model.AvailabilitySlot) error
	Cancel(ctx context.Context, id string, at time.Time) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to create availability slot: %w", err)
	}

	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.AvailabilitySlot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find availability slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByTrainer(ctx context.Context, trainerID string) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "day_of_week", Value: 1},
		{Key: "start_time", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{
		"trainer_id":   trainerID,
		"is_cancelled": false,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for trainer: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) FindByTrainerAndDay(ctx context.Context, trainerID string, day config.Weekday) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{
		"trainer_id":   trainerID,
		"day_of_week":  day,
		"is_cancelled": false,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for trainer and day: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) Update(ctx context.Context, id string, slot *model.AvailabilitySlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"day_of_week": slot.DayOfWeek,
			"start_time":  slot.StartTime,
			"end_time":    slot.EndTime,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update availability slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoSlotRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"is_cancelled": true,
			"cancelled_at": at,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to cancel availability slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
	}

	return nil
}
