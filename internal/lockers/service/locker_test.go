package service

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	lockerserrors "gymgate/internal/lockers/errors"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/logger"
	"gymgate/pkg/model"
)

const testClientID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"

type mockLockerRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.Locker, error)
	findHeldByFn     func(ctx context.Context, clientID string) (*model.Locker, error)
	findByCategoryFn func(ctx context.Context, category string) ([]*model.Locker, error)
	claimFreeFn      func(ctx context.Context, category, clientID, code string) (*model.Locker, error)
	releaseFn        func(ctx context.Context, lockerID, code string) (*model.Locker, error)
}

func (m *mockLockerRepo) FindByID(ctx context.Context, id string) (*model.Locker, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockLockerRepo) FindHeldBy(ctx context.Context, clientID string) (*model.Locker, error) {
	return m.findHeldByFn(ctx, clientID)
}

func (m *mockLockerRepo) FindByCategory(ctx context.Context, category string) ([]*model.Locker, error) {
	return m.findByCategoryFn(ctx, category)
}

func (m *mockLockerRepo) ClaimFree(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
	return m.claimFreeFn(ctx, category, clientID, code)
}

func (m *mockLockerRepo) Release(ctx context.Context, lockerID, code string) (*model.Locker, error) {
	return m.releaseFn(ctx, lockerID, code)
}

func newTestService(repo *mockLockerRepo) LockerService {
	cfg := &config.Config{
		Log: logger.New(logger.Config{Level: logger.LevelError, Format: logger.FormatText, Service: "test"}),
	}
	return NewLockerService(repo, cfg)
}

func TestAssign_ClaimsFreeLockerWithFreshCode(t *testing.T) {
	var usedCode string
	repo := &mockLockerRepo{
		findHeldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return nil, nil
		},
		claimFreeFn: func(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
			usedCode = code
			return &model.Locker{
				ID:         "e5f6a7b8-c9d0-4e1f-2a3b-4c5d6e7f8a9b",
				Number:     7,
				Category:   category,
				Status:     model.LockerStatusOccupied,
				Code:       code,
				OccupiedBy: clientID,
			}, nil
		},
	}
	svc := newTestService(repo)

	locker, err := svc.Assign(context.Background(), testClientID, model.LockerCategoryMen)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if locker == nil {
		t.Fatal("expected locker to be assigned")
	}
	if len(usedCode) != 4 {
		t.Fatalf("expected a 4-digit code, got %q", usedCode)
	}
	if n, err := strconv.Atoi(usedCode); err != nil || n < 1000 || n > 9999 {
		t.Errorf("code %q must be numeric in [1000,9999]", usedCode)
	}
}

func TestAssign_AlreadyHoldingLocker(t *testing.T) {
	heldID := "e5f6a7b8-c9d0-4e1f-2a3b-4c5d6e7f8a9b"
	repo := &mockLockerRepo{
		findHeldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return &model.Locker{ID: heldID, Status: model.LockerStatusOccupied, OccupiedBy: clientID}, nil
		},
		claimFreeFn: func(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
			t.Fatal("claim must not run when client already holds a locker")
			return nil, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Assign(context.Background(), testClientID, model.LockerCategoryWomen)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyHolding) {
		t.Fatalf("expected already-holding error, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Details["locker_id"] != heldID {
		t.Errorf("expected held locker id in details, got %v", appErr.Details)
	}
}

func TestAssign_RacingClaimsYieldOneLocker(t *testing.T) {
	heldID := "e5f6a7b8-c9d0-4e1f-2a3b-4c5d6e7f8a9b"
	heldChecks := 0
	repo := &mockLockerRepo{
		findHeldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			heldChecks++
			if heldChecks == 1 {
				// Both racing assigns pass the held check before either claims.
				return nil, nil
			}
			return &model.Locker{ID: heldID, Status: model.LockerStatusOccupied, OccupiedBy: clientID}, nil
		},
		claimFreeFn: func(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
			return nil, mongo.WriteException{
				WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}},
			}
		},
	}
	svc := newTestService(repo)

	_, err := svc.Assign(context.Background(), testClientID, model.LockerCategoryMen)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyHolding) {
		t.Fatalf("expected already-holding error for the losing claim, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Details["locker_id"] != heldID {
		t.Errorf("expected winning locker id in details, got %v", appErr.Details)
	}
}

func TestAssign_EmptyPoolReturnsNilLocker(t *testing.T) {
	repo := &mockLockerRepo{
		findHeldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return nil, nil
		},
		claimFreeFn: func(ctx context.Context, category, clientID, code string) (*model.Locker, error) {
			return nil, fmt.Errorf("%w: %s", lockerserrors.ErrNoneFree, category)
		},
	}
	svc := newTestService(repo)

	locker, err := svc.Assign(context.Background(), testClientID, model.LockerCategoryMen)
	if err != nil {
		t.Fatalf("empty pool must not be an error, got %v", err)
	}
	if locker != nil {
		t.Fatal("expected nil locker for empty pool")
	}
}

func TestAssign_UnknownCategory(t *testing.T) {
	svc := newTestService(&mockLockerRepo{})

	_, err := svc.Assign(context.Background(), testClientID, "kids")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRelease_RotatesCode(t *testing.T) {
	var usedCode string
	repo := &mockLockerRepo{
		releaseFn: func(ctx context.Context, lockerID, code string) (*model.Locker, error) {
			usedCode = code
			return &model.Locker{ID: lockerID, Status: model.LockerStatusFree, Code: code}, nil
		},
	}
	svc := newTestService(repo)

	locker, err := svc.Release(context.Background(), "e5f6a7b8-c9d0-4e1f-2a3b-4c5d6e7f8a9b")
	if err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if locker.Status != model.LockerStatusFree {
		t.Errorf("expected locker to be free, got %s", locker.Status)
	}
	if len(usedCode) != 4 {
		t.Errorf("expected a fresh 4-digit code on release, got %q", usedCode)
	}
}

func TestRelease_NotFound(t *testing.T) {
	repo := &mockLockerRepo{
		releaseFn: func(ctx context.Context, lockerID, code string) (*model.Locker, error) {
			return nil, fmt.Errorf("%w: %s", lockerserrors.ErrNotFound, lockerID)
		},
	}
	svc := newTestService(repo)

	_, err := svc.Release(context.Background(), "e5f6a7b8-c9d0-4e1f-2a3b-4c5d6e7f8a9b")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHeldBy_NoneHeld(t *testing.T) {
	repo := &mockLockerRepo{
		findHeldByFn: func(ctx context.Context, clientID string) (*model.Locker, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo)

	locker, err := svc.HeldBy(context.Background(), testClientID)
	if err != nil {
		t.Fatalf("HeldBy returned error: %v", err)
	}
	if locker != nil {
		t.Fatal("expected nil locker when none held")
	}
}

func TestGenerateCode_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := generateCode()
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 4 || n < 1000 || n > 9999 {
			t.Fatalf("generateCode produced %q", code)
		}
	}
}
