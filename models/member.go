package models

import (
	"time"

	"gorm.io/gorm"
)

// Member is the ledger row for one community member (denormalized for performance).
// Points are authoritative here; rank identity is authoritative on the group platform
// and pulled in by the sync engine.
type Member struct {
	ExternalID      string  `gorm:"primaryKey" json:"external_id"`        // chat-platform account id
	ExternalAccount *string `gorm:"uniqueIndex" json:"external_account"`  // handle on the external group platform
	RankOrder       int     `gorm:"not null;default:1" json:"rank_order"` // FK into ranks.order
	Points          int     `gorm:"not null;default:0" json:"points"`

	Timestamps
}

// Linked reports whether the member has registered a group-platform account.
func (m *Member) Linked() bool {
	return m.ExternalAccount != nil && *m.ExternalAccount != ""
}

// Account returns the linked group account or "".
func (m *Member) Account() string {
	if m.ExternalAccount == nil {
		return ""
	}
	return *m.ExternalAccount
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
