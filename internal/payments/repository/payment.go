package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	paymentserrors "gymgate/internal/payments/errors"
	"gymgate/pkg/config"
	"gymgate/pkg/model"
)

const (
	CollectionName = "processed_payments"
)

type ProcessedPaymentRepository interface {
	// MarkProcessed claims a payment event. The provider's payment id is
	// the _id, so a second delivery fails with ErrAlreadyProcessed.
	MarkProcessed(ctx context.Context, payment *model.ProcessedPayment) error

	// Unmark removes the claim so a redelivery can retry after the credit
	// behind it failed.
	Unmark(ctx context.Context, paymentID string) error
}

type mongoProcessedPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoProcessedPaymentRepository(cfg *config.Config) ProcessedPaymentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoProcessedPaymentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoProcessedPaymentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoProcessedPaymentRepository) MarkProcessed(ctx context.Context, payment *model.ProcessedPayment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	payment.ProcessedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", paymentserrors.ErrAlreadyProcessed, payment.ID)
		}
		return fmt.Errorf("failed to mark payment processed: %w", err)
	}

	return nil
}

func (r *mongoProcessedPaymentRepository) Unmark(ctx context.Context, paymentID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": paymentID}); err != nil {
		return fmt.Errorf("failed to unmark payment: %w", err)
	}

	return nil
}
