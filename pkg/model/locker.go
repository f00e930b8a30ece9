package model

import "time"

const (
	LockerStatusFree     = "free"
	LockerStatusOccupied = "occupied"

	LockerCategoryMen   = "men"
	LockerCategoryWomen = "women"
)

// Locker is an exclusive physical resource. The access code is
// regenerated on every assign and release so a previously issued code
// cannot reopen the locker.
type Locker struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	Number     int       `json:"number" bson:"number" validate:"required,min=1"`
	Category   string    `json:"category" bson:"category" validate:"required,oneof=men women"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=free occupied"`
	Code       string    `json:"code" bson:"code" validate:"required,len=4,numeric"`
	OccupiedBy string    `json:"occupied_by,omitempty" bson:"occupied_by,omitempty" validate:"omitempty,uuid4"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}
