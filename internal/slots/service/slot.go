package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	slotserrors "gymgate/internal/slots/errors"
	"gymgate/internal/slots/repository"
	"gymgate/internal/slots/validator"
	"gymgate/pkg/config"
	apperrors "gymgate/pkg/errors"
	"gymgate/pkg/model"
)

// SessionFinder is the slice of the sessions context that availability
// needs: the trainer's non-cancelled sessions on one date.
type SessionFinder interface {
	FindByTrainerAndDate(ctx context.Context, trainerID string, date time.Time) ([]*model.Session, error)
}

// Window is a free clock interval within a slot after the trainer's
// sessions for the date are subtracted.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type SlotService interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	GetByTrainer(ctx context.Context, trainerID string) ([]*model.AvailabilitySlot, error)
	Update(ctx context.Context, id string, updates *model.AvailabilitySlotUpdate) error
	Cancel(ctx context.Context, id string) error
	AvailableForDate(ctx context.Context, trainerID string, date time.Time) ([]Window, error)
}

type slotService struct {
	repo      repository.SlotRepository
	sessions  SessionFinder
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	sessions SessionFinder,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "trainer_id", slot.TrainerID, "error", err)
		return apperrors.Validation("Slot validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.checkConflicts(ctx, slot, ""); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		s.cfg.Log.Error("Failed to create slot", "trainer_id", slot.TrainerID, "error", err)
		return apperrors.Internal("Failed to create availability slot", err)
	}

	s.cfg.Log.Info("Availability slot created",
		"id", slot.ID,
		"trainer_id", slot.TrainerID,
		"day", slot.DayOfWeek,
		"start", slot.StartTime,
		"end", slot.EndTime,
	)
	return nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Availability slot", id)
		}
		return nil, apperrors.Internal("Failed to retrieve availability slot", err)
	}

	return slot, nil
}

func (s *slotService) GetByTrainer(ctx context.Context, trainerID string) ([]*model.AvailabilitySlot, error) {
	if trainerID == "" {
		return nil, apperrors.InvalidInput("Trainer ID cannot be empty")
	}

	slots, err := s.repo.FindByTrainer(ctx, trainerID)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "trainer_id", trainerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability slots", err)
	}

	return slots, nil
}

func (s *slotService) Update(ctx context.Context, id string, updates *model.AvailabilitySlotUpdate) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsCancelled {
		return apperrors.InvalidInput("Cannot update a cancelled slot")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Slot update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeSlotUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.checkConflicts(ctx, merged, id); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		s.cfg.Log.Error("Failed to update slot", "id", id, "error", err)
		return apperrors.Internal("Failed to update availability slot", err)
	}

	s.cfg.Log.Info("Availability slot updated", "id", id)
	return nil
}

// Cancel is idempotent; cancelling a cancelled slot is a no-op.
func (s *slotService) Cancel(ctx context.Context, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsCancelled {
		return nil
	}

	if err := s.repo.Cancel(ctx, id, time.Now().UTC()); err != nil {
		s.cfg.Log.Error("Failed to cancel slot", "id", id, "error", err)
		return apperrors.Internal("Failed to cancel availability slot", err)
	}

	s.cfg.Log.Info("Availability slot cancelled", "id", id, "trainer_id", existing.TrainerID)
	return nil
}

// AvailableForDate expands the trainer's weekly slots for the date's
// weekday and subtracts the clock ranges of that date's sessions.
func (s *slotService) AvailableForDate(ctx context.Context, trainerID string, date time.Time) ([]Window, error) {
	if trainerID == "" {
		return nil, apperrors.InvalidInput("Trainer ID cannot be empty")
	}

	day := config.WeekdayOf(date)
	slots, err := s.repo.FindByTrainerAndDay(ctx, trainerID, day)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots for availability",
			"trainer_id", trainerID,
			"day", day,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	sessions, err := s.sessions.FindByTrainerAndDate(ctx, trainerID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to load sessions for availability",
			"trainer_id", trainerID,
			"date", date,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	busy := make([]Window, 0, len(sessions))
	for _, session := range sessions {
		busy = append(busy, Window{
			Start: session.StartTime.Format("15:04"),
			End:   session.EndTime.Format("15:04"),
		})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	var free []Window
	for _, slot := range slots {
		free = append(free, subtractWindows(slot.StartTime, slot.EndTime, busy)...)
	}

	return free, nil
}

// subtractWindows removes the busy intervals from [start,end). Clock
// strings in HH:MM form compare correctly as plain strings.
func subtractWindows(start, end string, busy []Window) []Window {
	var free []Window
	cur := start

	for _, b := range busy {
		if b.End <= cur {
			continue
		}
		if b.Start >= end {
			break
		}
		if b.Start > cur {
			free = append(free, Window{Start: cur, End: b.Start})
		}
		if b.End > cur {
			cur = b.End
		}
	}

	if cur < end {
		free = append(free, Window{Start: cur, End: end})
	}

	return free
}

func (s *slotService) checkConflicts(ctx context.Context, slot *model.AvailabilitySlot, excludeID string) error {
	others, err := s.repo.FindByTrainerAndDay(ctx, slot.TrainerID, slot.DayOfWeek)
	if err != nil {
		return apperrors.Internal("Failed to check slot conflicts", err)
	}

	for _, other := range others {
		if other.ID == excludeID {
			continue
		}
		if overlapsClock(slot.StartTime, slot.EndTime, other.StartTime, other.EndTime) {
			return apperrors.ScheduleConflict(fmt.Sprintf(
				"Slot overlaps with existing slot (%s - %s)", other.StartTime, other.EndTime,
			), other.ID)
		}
	}

	return nil
}

// overlapsClock is the half-open interval test: touching endpoints do
// not conflict, so back-to-back slots are fine.
func overlapsClock(start1, end1, start2, end2 string) bool {
	return start1 < end2 && end1 > start2
}

func (s *slotService) mergeSlotUpdates(existing *model.AvailabilitySlot, updates *model.AvailabilitySlotUpdate) *model.AvailabilitySlot {
	merged := *existing

	if updates.DayOfWeek != "" {
		merged.DayOfWeek = updates.DayOfWeek
	}
	if updates.StartTime != "" {
		merged.StartTime = updates.StartTime
	}
	if updates.EndTime != "" {
		merged.EndTime = updates.EndTime
	}

	return &merged
}
