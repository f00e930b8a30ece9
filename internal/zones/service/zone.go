package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	zoneserrors "gymgate/internal/zones/errors"
	"gymgate/internal/zones/repository"
	"gymgate/internal/zones/validator"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/model"
	"gymgate/pkg/sanitizer"
)

type ZoneService interface {
	Create(ctx context.Context, zone *model.Zone) error
	GetByID(ctx context.Context, id string) (*model.Zone, error)
	GetActive(ctx context.Context, id string) (*model.Zone, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Zone, int64, error)
	Update(ctx context.Context, id string, updates *model.ZoneUpdate) error
	SetActive(ctx context.Context, id string, active bool) error
}

type zoneService struct {
	repo      repository.ZoneRepository
	validator *validator.ZoneValidator
	cfg       *config.Config
}

func NewZoneService(
	repo repository.ZoneRepository,
	validator *validator.ZoneValidator,
	cfg *config.Config,
) ZoneService {
	return &zoneService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *zoneService) Create(ctx context.Context, zone *model.Zone) error {
	zone.Name = sanitizer.NormalizeName(zone.Name)
	zone.IsActive = true

	if err := s.validator.Validate(zone); err != nil {
		s.cfg.Log.Warn("Zone validation failed", "name", zone.Name, "error", err)
		return apperrors.Validation("Zone validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByName(sessCtx, zone.Name)
		if err != nil && !errors.Is(err, zoneserrors.ErrNotFound) {
			return fmt.Errorf("failed to check for duplicate zone name: %w", err)
		}
		if existing != nil {
			return apperrors.Conflict(fmt.Sprintf(
				"Zone with name %q already exists (id: %s)", existing.Name, existing.ID,
			))
		}

		if err := s.repo.Create(sessCtx, zone); err != nil {
			return fmt.Errorf("failed to create zone: %w", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create zone", "name", zone.Name, "error", err)
		return err
	}

	s.cfg.Log.Info("Zone created successfully",
		"id", zone.ID,
		"name", zone.Name,
		"capacity", zone.Capacity,
	)
	return nil
}

func (s *zoneService) GetByID(ctx context.Context, id string) (*model.Zone, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Zone ID cannot be empty")
	}

	zone, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, zoneserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Zone", id)
		}
		s.cfg.Log.Error("Failed to get zone by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve zone", err)
	}

	return zone, nil
}

// GetActive resolves a zone and rejects inactive ones. Session creation
// and direct entry go through this check.
func (s *zoneService) GetActive(ctx context.Context, id string) (*model.Zone, error) {
	zone, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !zone.IsActive {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Zone %s is not active", id))
	}
	return zone, nil
}

func (s *zoneService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Zone, int64, error) {
	var count int64
	var zones []*model.Zone
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count zones", "error", errCount)
			errCount = apperrors.Internal("Failed to count zones", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		zones, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list zones", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve zones", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return zones, count, nil
}

func (s *zoneService) Update(ctx context.Context, id string, updates *model.ZoneUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Zone ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, zoneserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Zone", id)
		}
		return apperrors.Internal("Failed to check zone existence", err)
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Zone update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeZoneUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		return apperrors.Validation("Zone validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		s.cfg.Log.Error("Failed to update zone", "id", id, "error", err)
		return apperrors.Internal("Failed to update zone", err)
	}

	s.cfg.Log.Info("Zone updated successfully", "id", id, "name", merged.Name)
	return nil
}

func (s *zoneService) SetActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return apperrors.InvalidInput("Zone ID cannot be empty")
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, zoneserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Zone", id)
		}
		s.cfg.Log.Error("Failed to change zone active flag", "id", id, "active", active, "error", err)
		return apperrors.Internal("Failed to change zone state", err)
	}

	s.cfg.Log.Info("Zone state changed", "id", id, "active", active)
	return nil
}

func (s *zoneService) mergeZoneUpdates(existing *model.Zone, updates *model.ZoneUpdate) *model.Zone {
	merged := *existing

	if updates.Name != "" {
		merged.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}
