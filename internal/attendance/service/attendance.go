package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"gymgate/internal/attendance/repository"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/kafka"
	"gymgate/pkg/model"
)

// ZoneGate is the slice of the zones context attendance depends on.
type ZoneGate interface {
	GetActive(ctx context.Context, id string) (*model.Zone, error)
}

// PassLedger charges one visit from the client's balance for a zone.
type PassLedger interface {
	TryConsume(ctx context.Context, clientID, zoneID string) (*model.ConsumeResult, error)
}

// LockerPool hands out and reclaims lockers on the walk-in path.
type LockerPool interface {
	Assign(ctx context.Context, clientID, category string) (*model.Locker, error)
	HeldBy(ctx context.Context, clientID string) (*model.Locker, error)
	Release(ctx context.Context, lockerID string) (*model.Locker, error)
}

// EventPublisher emits domain events to a visit lifecycle topic.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// CheckInResult is what the client walks away with at the turnstile. A
// nil Locker means the requested pool was empty; entry is still granted.
type CheckInResult struct {
	Visit  *model.Visit         `json:"visit"`
	Pass   *model.ConsumeResult `json:"pass"`
	Locker *model.Locker        `json:"locker,omitempty"`
}

type CheckOutResult struct {
	Visit           *model.Visit  `json:"visit"`
	DurationMinutes int64         `json:"duration_minutes"`
	ReleasedLocker  *model.Locker `json:"released_locker,omitempty"`
}

// OccupancyResult lists everyone inside the gym right now.
type OccupancyResult struct {
	Inside int64          `json:"inside"`
	Visits []*model.Visit `json:"visits"`
}

type visitCheckedInEvent struct {
	VisitID  string `json:"visit_id"`
	ClientID string `json:"client_id"`
	ZoneID   string `json:"zone_id"`
	LockerID string `json:"locker_id,omitempty"`
	CheckIn  string `json:"check_in"`
}

type visitCheckedOutEvent struct {
	VisitID         string `json:"visit_id"`
	ClientID        string `json:"client_id"`
	ZoneID          string `json:"zone_id"`
	CheckOut        string `json:"check_out"`
	DurationMinutes int64  `json:"duration_minutes"`
}

type AttendanceService interface {
	CheckIn(ctx context.Context, clientID, zoneID, lockerCategory string) (*CheckInResult, error)
	CheckOut(ctx context.Context, clientID string) (*CheckOutResult, error)
	Occupancy(ctx context.Context) (*OccupancyResult, error)
	HistoryByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, int64, error)
	HistoryByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error)
}

type attendanceService struct {
	repo      repository.VisitRepository
	zones     ZoneGate
	passes    PassLedger
	lockers   LockerPool
	checkins  EventPublisher
	checkouts EventPublisher
	cfg       *config.Config
}

func NewAttendanceService(
	repo repository.VisitRepository,
	zones ZoneGate,
	passes PassLedger,
	lockers LockerPool,
	checkins EventPublisher,
	checkouts EventPublisher,
	cfg *config.Config,
) AttendanceService {
	return &attendanceService{
		repo:      repo,
		zones:     zones,
		passes:    passes,
		lockers:   lockers,
		checkins:  checkins,
		checkouts: checkouts,
		cfg:       cfg,
	}
}

// CheckIn admits a walk-in client: charges a pass for the zone, opens a
// visit and optionally hands out a locker. The open-visit check comes
// first so a client already inside is rejected before any charge.
func (s *attendanceService) CheckIn(ctx context.Context, clientID, zoneID, lockerCategory string) (*CheckInResult, error) {
	if clientID == "" || zoneID == "" {
		return nil, apperrors.InvalidInput("Client ID and zone ID are required")
	}

	open, err := s.repo.FindOpenDirectByClient(ctx, clientID)
	if err != nil {
		s.cfg.Log.Error("Failed to check open visit", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to check open visit", err)
	}
	if open != nil {
		return nil, apperrors.AlreadyInside(open.ID)
	}

	if _, err := s.zones.GetActive(ctx, zoneID); err != nil {
		return nil, err
	}

	result := &CheckInResult{}
	visit := &model.Visit{
		ClientID:  clientID,
		ZoneID:    zoneID,
		VisitType: model.VisitTypeDirect,
		CheckIn:   time.Now().UTC().Truncate(time.Millisecond),
	}

	// Charge, locker claim and visit insert commit or roll back as one
	// unit, so a refused entry never leaves a spent visit behind.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		consumed, err := s.passes.TryConsume(sessCtx, clientID, zoneID)
		if err != nil {
			return err
		}
		result.Pass = consumed

		if lockerCategory != "" {
			locker, err := s.lockers.Assign(sessCtx, clientID, lockerCategory)
			if err != nil {
				return err
			}
			// Pool exhaustion is not a reason to refuse entry.
			result.Locker = locker
		}

		return s.repo.Create(sessCtx, visit)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race with a concurrent check-in; the open-visit
			// index rejected the second insert.
			if again, ferr := s.repo.FindOpenDirectByClient(ctx, clientID); ferr == nil && again != nil {
				return nil, apperrors.AlreadyInside(again.ID)
			}
			return nil, apperrors.Conflict("Check-in raced with another request. Please try again.")
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to open visit", "client_id", clientID, "zone_id", zoneID, "error", err)
		return nil, apperrors.Internal("Failed to open visit", err)
	}
	result.Visit = visit

	s.publishCheckedIn(ctx, visit, result.Locker)

	s.cfg.Log.Info("Client checked in",
		"visit_id", visit.ID,
		"client_id", clientID,
		"zone_id", zoneID,
		"pass_id", result.Pass.PassID,
	)
	return result, nil
}

// CheckOut closes the client's open visit and reclaims any locker they
// hold. The charge stays spent; leaving early does not refund a visit.
func (s *attendanceService) CheckOut(ctx context.Context, clientID string) (*CheckOutResult, error) {
	if clientID == "" {
		return nil, apperrors.InvalidInput("Client ID is required")
	}

	open, err := s.repo.FindOpenDirectByClient(ctx, clientID)
	if err != nil {
		s.cfg.Log.Error("Failed to check open visit", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to check open visit", err)
	}
	if open == nil {
		return nil, apperrors.NoOpenVisit()
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	closed, err := s.repo.Close(ctx, open.ID, now)
	if err != nil {
		s.cfg.Log.Error("Failed to close visit", "visit_id", open.ID, "error", err)
		return nil, apperrors.Internal("Failed to close visit", err)
	}

	result := &CheckOutResult{
		Visit:           closed,
		DurationMinutes: int64(closed.CheckOut.Sub(closed.CheckIn).Minutes()),
	}

	held, err := s.lockers.HeldBy(ctx, clientID)
	if err != nil {
		s.cfg.Log.Warn("Failed to look up held locker on check-out", "client_id", clientID, "error", err)
	} else if held != nil {
		released, err := s.lockers.Release(ctx, held.ID)
		if err != nil {
			s.cfg.Log.Warn("Failed to release locker on check-out",
				"client_id", clientID,
				"locker_id", held.ID,
				"error", err,
			)
		} else {
			result.ReleasedLocker = released
		}
	}

	s.publishCheckedOut(ctx, closed, result.DurationMinutes)

	s.cfg.Log.Info("Client checked out",
		"visit_id", closed.ID,
		"client_id", clientID,
		"duration_minutes", result.DurationMinutes,
	)
	return result, nil
}

// Occupancy reports the open walk-in visits: who is inside right now.
func (s *attendanceService) Occupancy(ctx context.Context) (*OccupancyResult, error) {
	visits, err := s.repo.FindOpen(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list open visits", err)
	}

	return &OccupancyResult{
		Inside: int64(len(visits)),
		Visits: visits,
	}, nil
}

func (s *attendanceService) HistoryByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Visit, int64, error) {
	if clientID == "" {
		return nil, 0, apperrors.InvalidInput("Client ID cannot be empty")
	}

	visits, err := s.repo.FindByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list visits", err)
	}

	total, err := s.repo.CountByClient(ctx, clientID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count visits", err)
	}

	return visits, total, nil
}

func (s *attendanceService) HistoryByTrainer(ctx context.Context, trainerID string, limit int, offset int64) ([]*model.Visit, error) {
	if trainerID == "" {
		return nil, apperrors.InvalidInput("Trainer ID cannot be empty")
	}

	visits, err := s.repo.FindByTrainer(ctx, trainerID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list visits", err)
	}

	return visits, nil
}

func (s *attendanceService) publishCheckedIn(ctx context.Context, visit *model.Visit, locker *model.Locker) {
	if s.checkins == nil {
		return
	}

	event := visitCheckedInEvent{
		VisitID:  visit.ID,
		ClientID: visit.ClientID,
		ZoneID:   visit.ZoneID,
		CheckIn:  visit.CheckIn.Format(time.RFC3339),
	}
	if locker != nil {
		event.LockerID = locker.ID
	}

	msg := kafka.NewMessage().
		WithKey(visit.ClientID).
		WithEventType("visit.checked_in").
		WithSource("gymgate").
		WithValue(event).
		Build()

	if err := s.checkins.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish visit.checked-in event", "visit_id", visit.ID, "error", err)
	}
}

func (s *attendanceService) publishCheckedOut(ctx context.Context, visit *model.Visit, durationMinutes int64) {
	if s.checkouts == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(visit.ClientID).
		WithEventType("visit.checked_out").
		WithSource("gymgate").
		WithValue(visitCheckedOutEvent{
			VisitID:         visit.ID,
			ClientID:        visit.ClientID,
			ZoneID:          visit.ZoneID,
			CheckOut:        visit.CheckOut.Format(time.RFC3339),
			DurationMinutes: durationMinutes,
		}).
		Build()

	if err := s.checkouts.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish visit.checked-out event", "visit_id", visit.ID, "error", err)
	}
}
