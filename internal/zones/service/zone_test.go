package service

import (
	"context"
	"fmt"
	"testing"

	zoneserrors "gymgate/internal/zones/errors"
	"gymgate/internal/zones/validator"
	"gymgate/pkg/config"
	mongotx "gymgate/pkg/db/mongo"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/logger"
	"gymgate/pkg/model"
)

type mockZoneRepo struct {
	createFn     func(ctx context.Context, zone *model.Zone) error
	findByIDFn   func(ctx context.Context, id string) (*model.Zone, error)
	findByNameFn func(ctx context.Context, name string) (*model.Zone, error)
	findAllFn    func(ctx context.Context, limit int, offset int64) ([]*model.Zone, error)
	updateFn     func(ctx context.Context, id string, zone *model.Zone) error
	setActiveFn  func(ctx context.Context, id string, active bool) error
	countFn      func(ctx context.Context) (int64, error)
}

func (m *mockZoneRepo) Create(ctx context.Context, zone *model.Zone) error {
	return m.createFn(ctx, zone)
}

func (m *mockZoneRepo) FindByID(ctx context.Context, id string) (*model.Zone, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockZoneRepo) FindByName(ctx context.Context, name string) (*model.Zone, error) {
	return m.findByNameFn(ctx, name)
}

func (m *mockZoneRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Zone, error) {
	return m.findAllFn(ctx, limit, offset)
}

func (m *mockZoneRepo) Update(ctx context.Context, id string, zone *model.Zone) error {
	return m.updateFn(ctx, id, zone)
}

func (m *mockZoneRepo) SetActive(ctx context.Context, id string, active bool) error {
	return m.setActiveFn(ctx, id, active)
}

func (m *mockZoneRepo) Count(ctx context.Context) (int64, error) {
	return m.countFn(ctx)
}

func (m *mockZoneRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.LevelError, Format: logger.FormatText, Service: "test"}),
	}
}

func newTestService(repo *mockZoneRepo) ZoneService {
	cfg := testConfig()
	return NewZoneService(repo, validator.NewZoneValidator(cfg.Log), cfg)
}

func TestCreate_NormalizesNameAndActivates(t *testing.T) {
	var created *model.Zone
	repo := &mockZoneRepo{
		findByNameFn: func(ctx context.Context, name string) (*model.Zone, error) {
			return nil, fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, name)
		},
		createFn: func(ctx context.Context, zone *model.Zone) error {
			created = zone
			return nil
		},
	}
	svc := newTestService(repo)

	zone := &model.Zone{Name: "  Main   Pool ", Capacity: 30}
	if err := svc.Create(context.Background(), zone); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created == nil {
		t.Fatal("expected zone to be persisted")
	}
	if created.Name != "Main Pool" {
		t.Errorf("expected normalized name %q, got %q", "Main Pool", created.Name)
	}
	if !created.IsActive {
		t.Error("new zone should be active")
	}
}

func TestCreate_DuplicateNameRejected(t *testing.T) {
	repo := &mockZoneRepo{
		findByNameFn: func(ctx context.Context, name string) (*model.Zone, error) {
			return &model.Zone{ID: "0c2d6f8e-35c0-4f8b-a6ce-5b7f1c3c9ad1", Name: "Main Pool"}, nil
		},
		createFn: func(ctx context.Context, zone *model.Zone) error {
			t.Fatal("Create must not be called for duplicate name")
			return nil
		},
	}
	svc := newTestService(repo)

	err := svc.Create(context.Background(), &model.Zone{Name: "Main Pool", Capacity: 30})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	repo := &mockZoneRepo{}
	svc := newTestService(repo)

	err := svc.Create(context.Background(), &model.Zone{Name: "x"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetActive_RejectsInactiveZone(t *testing.T) {
	repo := &mockZoneRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Zone, error) {
			return &model.Zone{ID: id, Name: "Sauna", IsActive: false}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.GetActive(context.Background(), "8f4a9c1e-6b2d-4e7f-9a3b-1c5d7e9f0a2b")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input error for inactive zone, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := &mockZoneRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Zone, error) {
			return nil, fmt.Errorf("%w: %s", zoneserrors.ErrNotFound, id)
		},
	}
	svc := newTestService(repo)

	_, err := svc.GetByID(context.Background(), "8f4a9c1e-6b2d-4e7f-9a3b-1c5d7e9f0a2b")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUpdate_MergesPartialUpdate(t *testing.T) {
	existing := &model.Zone{
		ID:       "8f4a9c1e-6b2d-4e7f-9a3b-1c5d7e9f0a2b",
		Name:     "Weights Hall",
		Capacity: 40,
		IsActive: true,
	}

	var updated *model.Zone
	repo := &mockZoneRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Zone, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, id string, zone *model.Zone) error {
			updated = zone
			return nil
		},
	}
	svc := newTestService(repo)

	newCapacity := 25
	err := svc.Update(context.Background(), existing.ID, &model.ZoneUpdate{Capacity: &newCapacity})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Capacity != 25 {
		t.Errorf("expected capacity 25, got %d", updated.Capacity)
	}
	if updated.Name != "Weights Hall" {
		t.Errorf("name must be preserved, got %q", updated.Name)
	}
}
