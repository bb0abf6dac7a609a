package models

import (
	"time"

	"github.com/lib/pq"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionDeclined SubmissionStatus = "declined"
)

// Submission is an event report awaiting officer review. Participants are
// awarded points only on approval; pending is the only non-terminal status.
type Submission struct {
	ID             uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmitterID    string           `gorm:"index;not null" json:"submitter_id"`
	EventType      string           `gorm:"type:varchar(32);not null" json:"event_type"`
	ParticipantIDs pq.StringArray   `gorm:"type:text[];not null" json:"participant_ids"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	ProofReference string           `gorm:"type:text" json:"proof_reference"`
	Status         SubmissionStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	PointsAwarded  *int             `json:"points_awarded,omitempty"`
	ReviewerID     *string          `json:"reviewer_id,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// Final reports whether the submission has reached a terminal status.
func (s *Submission) Final() bool {
	return s.Status == SubmissionApproved || s.Status == SubmissionDeclined
}
