package service

import (
	"context"
	"errors"
	"time"

	passeserrors "gymgate/internal/passes/errors"
	"gymgate/internal/passes/repository"
	"gymgate/internal/passes/validator"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/model"
)

type PassService interface {
	// TryConsume admits the client to the zone against their passes.
	// Visit-based passes are tried first, oldest first, each by an atomic
	// decrement-if-positive; time-based passes admit without a decrement.
	// No eligible pass left means InsufficientBalance.
	TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error)

	Credit(ctx context.Context, clientID, zoneID string, visits int) (*model.ZonePass, error)
	GrantTimePass(ctx context.Context, clientID, zoneID string, endDate *time.Time) (*model.ZonePass, error)
	Balances(ctx context.Context, clientID string) ([]*model.ZonePass, error)
}

type passService struct {
	repo      repository.PassRepository
	validator *validator.PassValidator
	cfg       *config.Config
}

func NewPassService(
	repo repository.PassRepository,
	validator *validator.PassValidator,
	cfg *config.Config,
) PassService {
	return &passService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *passService) TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error) {
	if clientID == "" || zoneID == "" {
		return nil, apperrors.InvalidInput("Client ID and zone ID are required")
	}

	now := time.Now().UTC()
	eligible, err := s.repo.FindEligible(ctx, clientID, zoneID, now)
	if err != nil {
		s.cfg.Log.Error("Failed to list eligible passes",
			"client_id", clientID,
			"zone_id", zoneID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to check pass balance", err)
	}

	for _, pass := range eligible {
		switch pass.Kind {
		case model.PassKindVisitBased:
			updated, err := s.repo.DecrementVisit(ctx, pass.ID)
			if err != nil {
				// Another request drained this pass first; try the next one.
				if errors.Is(err, passeserrors.ErrExhausted) {
					continue
				}
				s.cfg.Log.Error("Failed to decrement pass",
					"pass_id", pass.ID,
					"client_id", clientID,
					"error", err,
				)
				return nil, apperrors.Internal("Failed to consume visit", err)
			}

			s.cfg.Log.Info("Visit consumed from pass",
				"pass_id", updated.ID,
				"client_id", clientID,
				"zone_id", zoneID,
				"remaining_visits", updated.RemainingVisits,
			)
			return &model.ConsumeResult{
				PassID:          updated.ID,
				Kind:            updated.Kind,
				RemainingVisits: updated.RemainingVisits,
			}, nil

		case model.PassKindTimeBased:
			s.cfg.Log.Info("Time-based pass admitted client",
				"pass_id", pass.ID,
				"client_id", clientID,
				"zone_id", zoneID,
			)
			return &model.ConsumeResult{
				PassID:          pass.ID,
				Kind:            pass.Kind,
				RemainingVisits: pass.RemainingVisits,
			}, nil
		}
	}

	s.cfg.Log.Warn("No eligible pass for client",
		"client_id", clientID,
		"zone_id", zoneID,
	)
	return nil, apperrors.InsufficientBalance(zoneID)
}

func (s *passService) Credit(ctx context.Context, clientID, zoneID string, visits int) (*model.ZonePass, error) {
	if clientID == "" || zoneID == "" {
		return nil, apperrors.InvalidInput("Client ID and zone ID are required")
	}
	if visits <= 0 {
		return nil, apperrors.InvalidInput("Credited visits must be positive")
	}

	pass, err := s.repo.CreditVisits(ctx, clientID, zoneID, visits)
	if err != nil {
		s.cfg.Log.Error("Failed to credit pass",
			"client_id", clientID,
			"zone_id", zoneID,
			"visits", visits,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to credit pass", err)
	}

	s.cfg.Log.Info("Pass credited",
		"pass_id", pass.ID,
		"client_id", clientID,
		"zone_id", zoneID,
		"visits", visits,
		"remaining_visits", pass.RemainingVisits,
	)
	return pass, nil
}

func (s *passService) GrantTimePass(ctx context.Context, clientID, zoneID string, endDate *time.Time) (*model.ZonePass, error) {
	if endDate != nil && endDate.Before(time.Now().UTC()) {
		return nil, apperrors.InvalidInput("End date cannot be in the past")
	}

	pass := &model.ZonePass{
		ClientID: clientID,
		ZoneID:   zoneID,
		Kind:     model.PassKindTimeBased,
		EndDate:  endDate,
	}

	if err := s.validator.Validate(pass); err != nil {
		s.cfg.Log.Warn("Pass validation failed", "client_id", clientID, "error", err)
		return nil, apperrors.Validation("Pass validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, pass); err != nil {
		s.cfg.Log.Error("Failed to grant time pass",
			"client_id", clientID,
			"zone_id", zoneID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to grant time pass", err)
	}

	s.cfg.Log.Info("Time pass granted",
		"pass_id", pass.ID,
		"client_id", clientID,
		"zone_id", zoneID,
		"end_date", endDate,
	)
	return pass, nil
}

func (s *passService) Balances(ctx context.Context, clientID string) ([]*model.ZonePass, error) {
	if clientID == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}

	passes, err := s.repo.FindByClient(ctx, clientID)
	if err != nil {
		s.cfg.Log.Error("Failed to list passes for client", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve passes", err)
	}

	return passes, nil
}
