package model

import (
	"time"

	"gymgate/pkg/config"
)

// AvailabilitySlot is a trainer's recurring weekly working window.
// Times are clock values in "HH:MM" form; the slot repeats every week on
// its day until cancelled.
type AvailabilitySlot struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	TrainerID   string         `json:"trainer_id" bson:"trainer_id" validate:"required,uuid4"`
	DayOfWeek   config.Weekday `json:"day_of_week" bson:"day_of_week" validate:"required,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartTime   string         `json:"start_time" bson:"start_time" validate:"required,clock_time"`
	EndTime     string         `json:"end_time" bson:"end_time" validate:"required,clock_time"`
	IsCancelled bool           `json:"is_cancelled" bson:"is_cancelled"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type AvailabilitySlotUpdate struct {
	DayOfWeek config.Weekday `json:"day_of_week,omitempty" validate:"omitempty,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	StartTime string         `json:"start_time,omitempty" validate:"omitempty,clock_time"`
	EndTime   string         `json:"end_time,omitempty" validate:"omitempty,clock_time"`
}
