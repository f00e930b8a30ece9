package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "gymgate/internal/sessions/errors"
	"gymgate/internal/sessions/repository"
	"gymgate/internal/sessions/validator"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/kafka"
	"gymgate/pkg/model"
	"gymgate/pkg/sanitizer"
)

// ZoneProvider is the slice of the zones context sessions depend on.
type ZoneProvider interface {
	GetByID(ctx context.Context, id string) (*model.Zone, error)
	GetActive(ctx context.Context, id string) (*model.Zone, error)
}

// PassLedger charges one visit from a client's balance for a zone.
type PassLedger interface {
	TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error)
}

// VisitRecorder reads and writes session-derived visit records. The
// existence check is what makes a completion retry skip clients already
// charged.
type VisitRecorder interface {
	FindSessionVisit(ctx context.Context, sessionID, clientID string) (*model.Visit, error)
	Create(ctx context.Context, visit *model.Visit) error
}

// EventPublisher emits domain events to the session lifecycle topic.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type sessionCompletedEvent struct {
	SessionID      string   `json:"session_id"`
	TrainerID      string   `json:"trainer_id"`
	ZoneID         string   `json:"zone_id"`
	Charged        int      `json:"charged"`
	AlreadyCharged int      `json:"already_charged"`
	FailedClients  []string `json:"failed_clients,omitempty"`
	CompletedAt    string   `json:"completed_at"`
}

type SessionService interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	Cancel(ctx context.Context, id, reason string) error
	SignUp(ctx context.Context, sessionID, clientID string) error
	Complete(ctx context.Context, sessionID string) (*model.CompletionResult, error)
	ListByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Session, error)
	ListByZone(ctx context.Context, zoneID string, limit int, offset int64) ([]*model.Session, error)
	ListByDate(ctx context.Context, date time.Time) ([]*model.Session, error)
}

type sessionService struct {
	repo         repository.SessionRepository
	participants repository.ParticipantRepository
	locks        repository.SessionLockRepository
	zones        ZoneProvider
	passes       PassLedger
	visits       VisitRecorder
	events       EventPublisher
	validator    *validator.SessionValidator
	cfg          *config.Config
}

func NewSessionService(
	repo repository.SessionRepository,
	participants repository.ParticipantRepository,
	locks repository.SessionLockRepository,
	zones ZoneProvider,
	passes PassLedger,
	visits VisitRecorder,
	events EventPublisher,
	validator *validator.SessionValidator,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:         repo,
		participants: participants,
		locks:        locks,
		zones:        zones,
		passes:       passes,
		visits:       visits,
		events:       events,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, session *model.Session) error {
	session.Date = dateOf(session.StartTime)
	session.IsCancelled = false
	session.IsCompleted = false

	if err := s.validator.Validate(session); err != nil {
		s.cfg.Log.Warn("Session validation failed",
			"trainer_id", session.TrainerID,
			"zone_id", session.ZoneID,
			"error", err,
		)
		return apperrors.Validation("Session validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if _, err := s.zones.GetActive(ctx, session.ZoneID); err != nil {
		return err
	}

	conflicting, err := s.repo.FindConflicting(
		ctx,
		session.TrainerID, session.ZoneID,
		session.Date, session.StartTime, session.EndTime,
		"",
	)
	if err != nil {
		s.cfg.Log.Error("Failed to check session conflicts", "trainer_id", session.TrainerID, "error", err)
		return apperrors.Internal("Failed to check session conflicts", err)
	}
	if len(conflicting) > 0 {
		blocking := conflicting[0]
		return apperrors.ScheduleConflict(fmt.Sprintf(
			"Session overlaps with existing session (%s - %s)",
			blocking.StartTime.Format(time.RFC3339),
			blocking.EndTime.Format(time.RFC3339),
		), blocking.ID)
	}

	if err := s.repo.Create(ctx, session); err != nil {
		s.cfg.Log.Error("Failed to create session", "trainer_id", session.TrainerID, "error", err)
		return apperrors.Internal("Failed to create session", err)
	}

	s.cfg.Log.Info("Session created",
		"id", session.ID,
		"trainer_id", session.TrainerID,
		"zone_id", session.ZoneID,
		"start_time", session.StartTime,
	)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Session", id)
		}
		return nil, apperrors.Internal("Failed to retrieve session", err)
	}

	return session, nil
}

func (s *sessionService) Cancel(ctx context.Context, id, reason string) error {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.IsCancelled {
		return apperrors.AlreadyCancelled(id)
	}
	if session.IsCompleted {
		return apperrors.AlreadyCompleted(id)
	}

	reason = sanitizer.NormalizeReason(reason)

	if err := s.repo.MarkCancelled(ctx, id, reason, time.Now().UTC()); err != nil {
		if errors.Is(err, sessionserrors.ErrTerminalState) {
			return s.terminalStateError(ctx, id)
		}
		if errors.Is(err, sessionserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Session", id)
		}
		s.cfg.Log.Error("Failed to cancel session", "id", id, "error", err)
		return apperrors.Internal("Failed to cancel session", err)
	}

	s.cfg.Log.Info("Session cancelled", "id", id, "reason", reason)
	return nil
}

func (s *sessionService) SignUp(ctx context.Context, sessionID, clientID string) error {
	if sessionID == "" || clientID == "" {
		return apperrors.InvalidInput("Session ID and client ID are required")
	}

	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.requireLive(session); err != nil {
		return err
	}

	lockID, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer s.releaseLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.repo.FindByID(sessCtx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to reload session: %w", err)
		}
		if err := s.requireLive(current); err != nil {
			return err
		}

		capacity, err := s.effectiveCapacity(sessCtx, current)
		if err != nil {
			return err
		}
		if capacity > 0 {
			count, err := s.participants.CountBySession(sessCtx, sessionID)
			if err != nil {
				return fmt.Errorf("failed to count participants: %w", err)
			}
			if count >= int64(capacity) {
				return apperrors.CapacityExceeded(sessionID, capacity)
			}
		}

		err = s.participants.Add(sessCtx, &model.SessionParticipant{
			SessionID: sessionID,
			ClientID:  clientID,
		})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return apperrors.InvalidInput("Client already signed up for this session")
			}
			return fmt.Errorf("failed to add participant: %w", err)
		}

		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to sign up client",
			"session_id", sessionID,
			"client_id", clientID,
			"error", err,
		)
		return apperrors.Internal("Failed to sign up for session", err)
	}

	s.cfg.Log.Info("Client signed up for session", "session_id", sessionID, "client_id", clientID)
	return nil
}

// Complete charges every participant and stamps the session completed.
// The run is resumable: clients with an existing session visit are
// skipped, so a retry after a partial failure never double-charges.
func (s *sessionService) Complete(ctx context.Context, sessionID string) (*model.CompletionResult, error) {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCancelled {
		return nil, apperrors.AlreadyCancelled(sessionID)
	}
	if session.IsCompleted {
		return nil, apperrors.AlreadyCompleted(sessionID)
	}

	lockID, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, lockID)

	// Re-check under the lock; a concurrent completion or cancellation
	// may have won.
	session, err = s.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCancelled {
		return nil, apperrors.AlreadyCancelled(sessionID)
	}
	if session.IsCompleted {
		return nil, apperrors.AlreadyCompleted(sessionID)
	}

	participants, err := s.participants.FindBySession(ctx, sessionID)
	if err != nil {
		s.cfg.Log.Error("Failed to load participants", "session_id", sessionID, "error", err)
		return nil, apperrors.Internal("Failed to load participants", err)
	}
	if len(participants) == 0 {
		return nil, apperrors.NothingToComplete(sessionID)
	}

	result := &model.CompletionResult{SessionID: sessionID}

	for _, participant := range participants {
		existing, err := s.visits.FindSessionVisit(ctx, sessionID, participant.ClientID)
		if err != nil {
			return nil, apperrors.Internal("Failed to check existing visit", err)
		}
		if existing != nil {
			result.AlreadyCharged++
			continue
		}

		err = s.chargeParticipant(ctx, session, participant.ClientID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeInsufficientBalance) {
				result.FailedClients = append(result.FailedClients, participant.ClientID)
				s.cfg.Log.Warn("Participant balance could not cover session visit",
					"session_id", sessionID,
					"client_id", participant.ClientID,
				)
				continue
			}
			// Infrastructure failure: stop without marking completed so a
			// retry can resume where this run stopped.
			s.cfg.Log.Error("Completion run aborted",
				"session_id", sessionID,
				"client_id", participant.ClientID,
				"charged_so_far", result.Charged,
				"error", err,
			)
			return nil, err
		}

		result.Charged++
	}

	completedAt := time.Now().UTC()
	if err := s.repo.MarkCompleted(ctx, sessionID, completedAt); err != nil {
		if errors.Is(err, sessionserrors.ErrTerminalState) {
			return nil, s.terminalStateError(ctx, sessionID)
		}
		s.cfg.Log.Error("Failed to mark session completed", "session_id", sessionID, "error", err)
		return nil, apperrors.Internal("Failed to mark session completed", err)
	}

	s.publishCompleted(ctx, session, result, completedAt)

	s.cfg.Log.Info("Session completed",
		"session_id", sessionID,
		"charged", result.Charged,
		"already_charged", result.AlreadyCharged,
		"failed_clients", len(result.FailedClients),
	)
	return result, nil
}

// chargeParticipant deducts one visit and writes the visit record in a
// single transaction, so a crash cannot deduct without recording.
func (s *sessionService) chargeParticipant(ctx context.Context, session *model.Session, clientID string) error {
	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.passes.TryConsume(sessCtx, clientID, session.ZoneID); err != nil {
			return err
		}

		checkOut := session.EndTime
		visit := &model.Visit{
			ID:        uuid.NewString(),
			ClientID:  clientID,
			TrainerID: session.TrainerID,
			SessionID: session.ID,
			ZoneID:    session.ZoneID,
			VisitType: model.VisitTypeSession,
			CheckIn:   session.StartTime,
			CheckOut:  &checkOut,
		}
		if err := s.visits.Create(sessCtx, visit); err != nil {
			return fmt.Errorf("failed to record session visit: %w", err)
		}

		return nil
	})
}

func (s *sessionService) ListByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Session, error) {
	if trainerID == "" {
		return nil, apperrors.InvalidInput("Trainer ID cannot be empty")
	}

	sessions, err := s.repo.FindByTrainer(ctx, trainerID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list sessions", err)
	}
	return sessions, nil
}

func (s *sessionService) ListByZone(ctx context.Context, zoneID string, limit int, offset int64) ([]*model.Session, error) {
	if zoneID == "" {
		return nil, apperrors.InvalidInput("Zone ID cannot be empty")
	}

	sessions, err := s.repo.FindByZone(ctx, zoneID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list sessions", err)
	}
	return sessions, nil
}

func (s *sessionService) ListByDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	sessions, err := s.repo.FindByDate(ctx, dateOf(date))
	if err != nil {
		return nil, apperrors.Internal("Failed to list sessions", err)
	}
	return sessions, nil
}

// effectiveCapacity resolves the session's own capacity, falling back to
// the zone's. Zero or less means unlimited.
func (s *sessionService) effectiveCapacity(ctx context.Context, session *model.Session) (int, error) {
	if session.Capacity > 0 {
		return session.Capacity, nil
	}

	zone, err := s.zones.GetByID(ctx, session.ZoneID)
	if err != nil {
		return 0, err
	}
	return zone.Capacity, nil
}

func (s *sessionService) requireLive(session *model.Session) error {
	if session.IsCancelled {
		return apperrors.AlreadyCancelled(session.ID)
	}
	if session.IsCompleted {
		return apperrors.AlreadyCompleted(session.ID)
	}
	return nil
}

// terminalStateError reports which terminal state a no-match mark ran
// into, so the caller gets the precise Already* error.
func (s *sessionService) terminalStateError(ctx context.Context, id string) error {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.IsCancelled {
		return apperrors.AlreadyCancelled(id)
	}
	return apperrors.AlreadyCompleted(id)
}

// acquireLock takes the session's single advisory lock. Signup and
// completion share one key, so a signup cannot slip in while a
// completion run is charging participants.
func (s *sessionService) acquireLock(ctx context.Context, sessionID string) (string, error) {
	lockID := fmt.Sprintf("session_lock_%s", sessionID)

	_, err := s.locks.Acquire(ctx, lockID, s.cfg.SessionLockTTL)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This session is being modified by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire session lock", err)
	}

	return lockID, nil
}

func (s *sessionService) releaseLock(ctx context.Context, lockID string) {
	if err := s.locks.Release(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release session lock", "lock_id", lockID, "error", err)
	}
}

func (s *sessionService) publishCompleted(ctx context.Context, session *model.Session, result *model.CompletionResult, completedAt time.Time) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(session.ID).
		WithEventType("session.completed").
		WithSource("gymgate").
		WithValue(sessionCompletedEvent{
			SessionID:      session.ID,
			TrainerID:      session.TrainerID,
			ZoneID:         session.ZoneID,
			Charged:        result.Charged,
			AlreadyCharged: result.AlreadyCharged,
			FailedClients:  result.FailedClients,
			CompletedAt:    completedAt.Format(time.RFC3339),
		}).
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish session.completed event",
			"session_id", session.ID,
			"error", err,
		)
	}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
