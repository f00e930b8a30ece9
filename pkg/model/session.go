package model

import "time"

// Session is a one-off training session a trainer runs in a zone.
// A session is confirmed at creation and can move exactly once to
// cancelled or to completed, never both.
type Session struct {
	ID                 string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	TrainerID          string     `json:"trainer_id" bson:"trainer_id" validate:"required,uuid4"`
	ZoneID             string     `json:"zone_id" bson:"zone_id" validate:"required,uuid4"`
	Date               time.Time  `json:"date" bson:"date" validate:"required"`
	StartTime          time.Time  `json:"start_time" bson:"start_time" validate:"required"`
	EndTime            time.Time  `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Capacity           int        `json:"capacity" bson:"capacity" validate:"omitempty,max=500"`
	IsCancelled        bool       `json:"is_cancelled" bson:"is_cancelled"`
	IsCompleted        bool       `json:"is_completed" bson:"is_completed"`
	CancellationReason string     `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty" validate:"omitempty,max=500"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// SessionParticipant links a signed-up client to a session.
// Unique per (session_id, client_id); never mutated after insert.
type SessionParticipant struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	SessionID string    `json:"session_id" bson:"session_id" validate:"required,uuid4"`
	ClientID  string    `json:"client_id" bson:"client_id" validate:"required,uuid4"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// CompletionResult summarizes a session completion run. FailedClients
// lists participants whose balance could not cover the visit; they stay
// unprocessed and a later completion attempt would not re-charge the
// clients already deducted.
type CompletionResult struct {
	SessionID      string   `json:"session_id"`
	Charged        int      `json:"charged"`
	AlreadyCharged int      `json:"already_charged"`
	FailedClients  []string `json:"failed_clients,omitempty"`
}
