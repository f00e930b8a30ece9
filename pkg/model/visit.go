package model

import "time"

const (
	VisitTypeDirect  = "direct"
	VisitTypeSession = "session"
)

// Visit is an attendance record. Direct visits are opened on check-in
// and closed once on check-out. Session visits are written by session
// completion with both stamps set and are immutable afterwards.
type Visit struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	ClientID  string     `json:"client_id" bson:"client_id" validate:"required,uuid4"`
	TrainerID string     `json:"trainer_id,omitempty" bson:"trainer_id,omitempty" validate:"omitempty,uuid4"`
	SessionID string     `json:"session_id,omitempty" bson:"session_id,omitempty" validate:"omitempty,uuid4"`
	ZoneID    string     `json:"zone_id,omitempty" bson:"zone_id,omitempty" validate:"omitempty,uuid4"`
	VisitType string     `json:"visit_type" bson:"visit_type" validate:"required,oneof=direct session"`
	CheckIn   time.Time  `json:"check_in" bson:"check_in" validate:"required"`
	CheckOut  *time.Time `json:"check_out,omitempty" bson:"check_out,omitempty"`
}
