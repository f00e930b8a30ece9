package model

import "time"

// SessionLock is an advisory lock document serializing check-then-write
// sections on one session (signup capacity check, completion run).
// The _id encodes the session and the guarded operation; a duplicate key
// on insert means another request holds the lock.
type SessionLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
