package mongo

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gymgate/internal/migrations/mongo/validators"
	"gymgate/pkg/model"
)

var (
	ZonesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{Keys: bson.D{{Key: "is_active", Value: 1}}},
	}

	AvailabilitySlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "trainer_id", Value: 1},
			{Key: "day_of_week", Value: 1},
			{Key: "is_cancelled", Value: 1},
		}},
	}

	SessionsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "trainer_id", Value: 1},
			{Key: "date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "zone_id", Value: 1},
			{Key: "date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "date", Value: 1},
			{Key: "start_time", Value: 1},
		}},
	}

	SessionParticipantsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "client_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	// Expired locks are reaped by the server, so a crashed holder never
	// blocks a session forever.
	SessionLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	ZonePassesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "client_id", Value: 1},
			{Key: "zone_id", Value: 1},
			{Key: "kind", Value: 1},
			{Key: "created_at", Value: 1},
		}},
	}

	LockersIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "category", Value: 1},
			{Key: "status", Value: 1},
			{Key: "number", Value: 1},
		}},
		// At most one occupied locker per client; the second of two racing
		// claims for the same client fails with a duplicate key.
		{
			Keys: bson.D{{Key: "occupied_by", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status": model.LockerStatusOccupied,
				}),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "number", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	// At most one open walk-in visit per client. The partial filter keeps
	// the uniqueness constraint off closed visits and session records.
	VisitsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"visit_type": model.VisitTypeDirect,
					"check_out":  bson.M{"$exists": false},
				}),
		},
		{Keys: bson.D{
			{Key: "client_id", Value: 1},
			{Key: "check_in", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "trainer_id", Value: 1},
			{Key: "check_in", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "client_id", Value: 1},
		}},
	}

	ProcessedPaymentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, lockerSeedCount int) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running GymGate Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"zones": {
			Indexes:   ZonesIndexes,
			Validator: validators.ZoneValidator,
		},
		"availability_slots": {
			Indexes:   AvailabilitySlotsIndexes,
			Validator: validators.AvailabilitySlotValidator,
		},
		"sessions": {
			Indexes:   SessionsIndexes,
			Validator: validators.SessionValidator,
		},
		"session_participants": {
			Indexes:   SessionParticipantsIndexes,
			Validator: validators.SessionParticipantValidator,
		},
		"session_locks": {
			Indexes:   SessionLocksIndexes,
			Validator: validators.SessionLockValidator,
		},
		"zone_passes": {
			Indexes:   ZonePassesIndexes,
			Validator: validators.ZonePassValidator,
		},
		"lockers": {
			Indexes:   LockersIndexes,
			Validator: validators.LockerValidator,
		},
		"visits": {
			Indexes:   VisitsIndexes,
			Validator: validators.VisitValidator,
		},
		"processed_payments": {
			Indexes:   ProcessedPaymentsIndexes,
			Validator: validators.ProcessedPaymentValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	if err := seedLockers(ctx, db, lockerSeedCount); err != nil {
		return fmt.Errorf("failed to seed lockers: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}

// seedLockers fills each category up to count lockers, numbered from 1.
// Upserts keyed on (category, number) make re-runs a no-op for lockers
// that already exist, occupied ones included.
func seedLockers(ctx context.Context, db *mongo.Database, count int) error {
	if count <= 0 {
		fmt.Println("⏭️ Locker seeding skipped (count is zero)")
		return nil
	}

	coll := db.Collection("lockers")
	seeded := 0

	for _, category := range []string{model.LockerCategoryMen, model.LockerCategoryWomen} {
		for number := 1; number <= count; number++ {
			filter := bson.M{"category": category, "number": number}
			update := bson.M{
				"$setOnInsert": bson.M{
					"_id":        uuid.NewString(),
					"category":   category,
					"number":     number,
					"status":     model.LockerStatusFree,
					"code":       fmt.Sprintf("%04d", rand.Intn(9000)+1000),
					"updated_at": time.Now().UTC(),
				},
			}

			result, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
			if err != nil {
				return fmt.Errorf("failed seeding locker %s/%d: %w", category, number, err)
			}
			if result.UpsertedCount > 0 {
				seeded++
			}
		}
	}

	fmt.Printf("🔐 Seeded %d new lockers (%d per category)\n", seeded, count)
	return nil
}
