package model

import "time"

const (
	PassKindVisitBased = "visit_based"
	PassKindTimeBased  = "time_based"
)

// ZonePass is a client's entitlement for one zone. Visit-based passes
// carry a prepaid visit counter that is only ever decremented atomically
// while positive. Time-based passes admit freely until EndDate; a nil
// EndDate never expires.
type ZonePass struct {
	ID              string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	ClientID        string     `json:"client_id" bson:"client_id" validate:"required,uuid4"`
	ZoneID          string     `json:"zone_id" bson:"zone_id" validate:"required,uuid4"`
	Kind            string     `json:"kind" bson:"kind" validate:"required,oneof=visit_based time_based"`
	RemainingVisits int        `json:"remaining_visits" bson:"remaining_visits" validate:"min=0"`
	EndDate         *time.Time `json:"end_date,omitempty" bson:"end_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// ConsumeResult reports which pass admitted the client and what remains
// on it. Time-based admissions leave RemainingVisits untouched.
type ConsumeResult struct {
	PassID          string `json:"pass_id"`
	Kind            string `json:"kind"`
	RemainingVisits int    `json:"remaining_visits"`
}
