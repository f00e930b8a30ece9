package model

import "time"

// Zone is a physical area of the gym. Capacity of zero or less means the
// zone admits any number of concurrent participants.
type Zone struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity  int       `json:"capacity" bson:"capacity" validate:"omitempty,max=500"`
	IsActive  bool      `json:"is_active" bson:"is_active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type ZoneUpdate struct {
	Name     string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity *int   `json:"capacity,omitempty" validate:"omitempty,max=500"`
	IsActive *bool  `json:"is_active,omitempty"`
}
