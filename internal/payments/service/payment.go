package service

import (
	"context"
	"errors"

	paymentserrors "gymgate/internal/payments/errors"
	"gymgate/internal/payments/repository"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/model"
)

// PaymentEvent is the provider's notification, delivered either by the
// webhook or redelivered over the broker.
type PaymentEvent struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Amount   string          `json:"amount,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Metadata PaymentMetadata `json:"metadata"`
}

type PaymentMetadata struct {
	ClientID string `json:"client_id"`
	ZoneID   string `json:"zone_id"`
	Visits   int    `json:"visits"`
}

const EventTypePaymentSucceeded = "payment.succeeded"

// PassCreditor is the slice of the passes context payments depend on.
type PassCreditor interface {
	Credit(ctx context.Context, clientID, zoneID string, visits int) (*model.ZonePass, error)
}

// ProcessOutcome tells the transport layer what happened so the webhook
// can answer the provider without leaking internals.
type ProcessOutcome string

const (
	OutcomeCredited  ProcessOutcome = "credited"
	OutcomeDuplicate ProcessOutcome = "duplicate"
	OutcomeIgnored   ProcessOutcome = "ignored"
)

type PaymentService interface {
	Process(ctx context.Context, event *PaymentEvent) (ProcessOutcome, error)
}

type paymentService struct {
	repo   repository.ProcessedPaymentRepository
	passes PassCreditor
	cfg    *config.Config
}

func NewPaymentService(repo repository.ProcessedPaymentRepository, passes PassCreditor, cfg *config.Config) PaymentService {
	return &paymentService{
		repo:   repo,
		passes: passes,
		cfg:    cfg,
	}
}

// Process credits a confirmed payment exactly once. The processed-payments
// insert is the dedup gate: it is claimed before the credit and released
// again if the credit fails, so a redelivery can retry.
func (s *paymentService) Process(ctx context.Context, event *PaymentEvent) (ProcessOutcome, error) {
	if event == nil || event.ID == "" {
		return OutcomeIgnored, apperrors.InvalidInput("Payment event ID is required")
	}

	if event.Type != EventTypePaymentSucceeded {
		s.cfg.Log.Debug("Ignoring payment event", "event_id", event.ID, "type", event.Type)
		return OutcomeIgnored, nil
	}

	if event.Metadata.ClientID == "" || event.Metadata.ZoneID == "" {
		return OutcomeIgnored, apperrors.InvalidInput("Payment metadata must carry client_id and zone_id")
	}

	visits := event.Metadata.Visits
	if visits <= 0 {
		visits = s.cfg.DefaultCreditVisits
	}

	err := s.repo.MarkProcessed(ctx, &model.ProcessedPayment{
		ID:       event.ID,
		ClientID: event.Metadata.ClientID,
		ZoneID:   event.Metadata.ZoneID,
		Visits:   visits,
	})
	if err != nil {
		if errors.Is(err, paymentserrors.ErrAlreadyProcessed) {
			s.cfg.Log.Info("Skipping duplicate payment event", "event_id", event.ID)
			return OutcomeDuplicate, nil
		}
		s.cfg.Log.Error("Failed to mark payment processed", "event_id", event.ID, "error", err)
		return OutcomeIgnored, apperrors.Internal("Failed to record payment", err)
	}

	if _, err := s.passes.Credit(ctx, event.Metadata.ClientID, event.Metadata.ZoneID, visits); err != nil {
		if unmarkErr := s.repo.Unmark(ctx, event.ID); unmarkErr != nil {
			s.cfg.Log.Error("Failed to unmark payment after failed credit",
				"event_id", event.ID,
				"error", unmarkErr,
			)
		}
		s.cfg.Log.Error("Failed to credit payment",
			"event_id", event.ID,
			"client_id", event.Metadata.ClientID,
			"error", err,
		)
		return OutcomeIgnored, err
	}

	s.cfg.Log.Info("Payment credited",
		"event_id", event.ID,
		"client_id", event.Metadata.ClientID,
		"zone_id", event.Metadata.ZoneID,
		"visits", visits,
	)
	return OutcomeCredited, nil
}
