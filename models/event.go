package models

import "time"

type EventKind string

const (
	EventPromotion  EventKind = "promotion"
	EventDesync     EventKind = "desync"
	EventSubmission EventKind = "submission"
)

// ProgressionEvent is one entry of the activity feed: promotions, desync
// notices, submission outcomes.
type ProgressionEvent struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Kind      EventKind `gorm:"type:varchar(16);index;not null" json:"kind"`
	MemberID  string    `gorm:"index" json:"member_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
