package model

import "time"

// ProcessedPayment records a payment event that has already credited a
// pass. The provider's payment id is the _id, so a replayed webhook or a
// redelivered broker message fails the insert and is skipped.
type ProcessedPayment struct {
	ID          string    `bson:"_id" json:"id"`
	ClientID    string    `bson:"client_id" json:"client_id"`
	ZoneID      string    `bson:"zone_id" json:"zone_id"`
	Visits      int       `bson:"visits" json:"visits"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}
