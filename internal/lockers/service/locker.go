package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.mongodb.org/mongo-driver/mongo"

	lockerserrors "gymgate/internal/lockers/errors"
	"gymgate/internal/lockers/repository"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/model"
)

type LockerService interface {
	// Assign claims a free locker in the category for the client. A nil
	// locker with a nil error means the pool is empty; the caller decides
	// whether entry without a locker is acceptable.
	Assign(ctx context.Context, clientID, category string) (*model.Locker, error)

	// Release frees a locker and rotates its code. Idempotent: releasing
	// a free locker succeeds and rotates the code again.
	Release(ctx context.Context, lockerID string) (*model.Locker, error)

	HeldBy(ctx context.Context, clientID string) (*model.Locker, error)
	List(ctx context.Context, category string) ([]*model.Locker, error)
}

type lockerService struct {
	repo repository.LockerRepository
	cfg  *config.Config
}

func NewLockerService(repo repository.LockerRepository, cfg *config.Config) LockerService {
	return &lockerService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *lockerService) Assign(ctx context.Context, clientID, category string) (*model.Locker, error) {
	if clientID == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}
	if category != model.LockerCategoryMen && category != model.LockerCategoryWomen {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown locker category: %s", category))
	}

	held, err := s.repo.FindHeldBy(ctx, clientID)
	if err != nil {
		s.cfg.Log.Error("Failed to check held locker", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to check held locker", err)
	}
	if held != nil {
		return nil, apperrors.AlreadyHoldingLocker(held.ID)
	}

	locker, err := s.repo.ClaimFree(ctx, category, clientID, generateCode())
	if err != nil {
		if errors.Is(err, lockerserrors.ErrNoneFree) {
			s.cfg.Log.Warn("Locker pool exhausted", "category", category, "client_id", clientID)
			return nil, nil
		}
		// The unique occupant index rejects a second claim when two
		// assigns for the same client race past the held check.
		if mongo.IsDuplicateKeyError(err) {
			if held, herr := s.repo.FindHeldBy(ctx, clientID); herr == nil && held != nil {
				return nil, apperrors.AlreadyHoldingLocker(held.ID)
			}
			return nil, apperrors.Conflict("Locker assignment raced with another request. Please try again.")
		}
		s.cfg.Log.Error("Failed to claim locker",
			"client_id", clientID,
			"category", category,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to assign locker", err)
	}

	s.cfg.Log.Info("Locker assigned",
		"locker_id", locker.ID,
		"number", locker.Number,
		"category", locker.Category,
		"client_id", clientID,
	)
	return locker, nil
}

func (s *lockerService) Release(ctx context.Context, lockerID string) (*model.Locker, error) {
	if lockerID == "" {
		return nil, apperrors.InvalidInput("Locker ID cannot be empty")
	}

	locker, err := s.repo.Release(ctx, lockerID, generateCode())
	if err != nil {
		if errors.Is(err, lockerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Locker", lockerID)
		}
		s.cfg.Log.Error("Failed to release locker", "locker_id", lockerID, "error", err)
		return nil, apperrors.Internal("Failed to release locker", err)
	}

	s.cfg.Log.Info("Locker released", "locker_id", locker.ID, "number", locker.Number)
	return locker, nil
}

func (s *lockerService) HeldBy(ctx context.Context, clientID string) (*model.Locker, error) {
	if clientID == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}

	locker, err := s.repo.FindHeldBy(ctx, clientID)
	if err != nil {
		s.cfg.Log.Error("Failed to look up held locker", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to look up held locker", err)
	}

	return locker, nil
}

func (s *lockerService) List(ctx context.Context, category string) ([]*model.Locker, error) {
	if category != "" && category != model.LockerCategoryMen && category != model.LockerCategoryWomen {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown locker category: %s", category))
	}

	lockers, err := s.repo.FindByCategory(ctx, category)
	if err != nil {
		s.cfg.Log.Error("Failed to list lockers", "category", category, "error", err)
		return nil, apperrors.Internal("Failed to list lockers", err)
	}

	return lockers, nil
}

// generateCode returns a fresh 4-digit access code. Codes are not unique
// across lockers; they only gate the single locker they are set on.
func generateCode() string {
	return fmt.Sprintf("%04d", rand.Intn(9000)+1000)
}
