package models

// SyncAction classifies what a single-member sync did.
type SyncAction string

const (
	SyncNoChange SyncAction = "no_change" // stores already agreed
	SyncUpdated  SyncAction = "updated"   // ledger and grants moved to the platform rank
	SyncSkipped  SyncAction = "skipped"   // no usable platform rank, nothing written
)

// SyncOutcome reports one member's pass through the sync engine.
type SyncOutcome struct {
	Action       SyncAction `json:"action"`
	OldRankOrder int        `json:"old_rank_order"`
	NewRankOrder int        `json:"new_rank_order"`
	Reason       string     `json:"reason,omitempty"`
}

// BulkSyncReport aggregates a full-roster sweep.
type BulkSyncReport struct {
	Updated  int `json:"updated"`
	NoChange int `json:"no_change"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// PromotionResult reports the three independent promotion steps. A false flag
// with a filled Reason is a desync the next sync pass will repair, never a
// rollback.
type PromotionResult struct {
	LedgerOK     bool   `json:"ledger_ok"`
	GrantOK      bool   `json:"grant_ok"`
	ExternalOK   bool   `json:"external_ok"`
	PreSynced    bool   `json:"pre_synced"`
	OldRankOrder int    `json:"old_rank_order"`
	NewRankOrder int    `json:"new_rank_order"`
	Reason       string `json:"reason,omitempty"`
}

// Complete reports whether all three stores accepted the promotion.
func (r PromotionResult) Complete() bool {
	return r.LedgerOK && r.GrantOK && r.ExternalOK
}

// ParticipantOutcome is one participant's share of a submission approval.
type ParticipantOutcome struct {
	MemberID string `json:"member_id"`
	Credited bool   `json:"credited"`
	Promoted bool   `json:"promoted"`
	Points   int    `json:"points"` // total after credit
	Reason   string `json:"reason,omitempty"`
}

// ApprovalResult aggregates an approve pass over all participants.
// AlreadyFinal marks the idempotent re-approve case: nothing was credited.
type ApprovalResult struct {
	SubmissionID  uint                 `json:"submission_id"`
	PointsAwarded int                  `json:"points_awarded"`
	AlreadyFinal  bool                 `json:"already_final,omitempty"`
	Participants  []ParticipantOutcome `json:"participants"`
}
