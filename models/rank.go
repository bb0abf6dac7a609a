package models

// Rank is one step of the progression ladder. Order is a dense 1-based total
// order; ExternalRankRef ties the step to a role on the external group platform
// (matched by role id first, coarse level second).
type Rank struct {
	Order           int    `gorm:"primaryKey" json:"order"`
	Name            string `gorm:"uniqueIndex;not null" json:"name"`
	PointsRequired  int    `gorm:"not null;default:0" json:"points_required"` // ignored when AdminOnly
	ExternalRankRef int    `gorm:"not null" json:"external_rank_ref"`
	AdminOnly       bool   `gorm:"not null;default:false" json:"admin_only"`
}

// GroupRank is the rank descriptor reported by the external group platform.
type GroupRank struct {
	ID    int64  `json:"id"`    // platform role id, globally unique
	Level int    `json:"level"` // coarse 0-255 position inside the group
	Name  string `json:"name,omitempty"`
}

// DefaultRanks seeds the ladder when no rank config file is provided.
// Orders 1-9 are point-earned, 10-20 are appointment-only.
var DefaultRanks = []Rank{
	{Order: 1, Name: "Private", PointsRequired: 0, ExternalRankRef: 1},
	{Order: 2, Name: "Corporal", PointsRequired: 30, ExternalRankRef: 2},
	{Order: 3, Name: "Sergeant", PointsRequired: 60, ExternalRankRef: 3},
	{Order: 4, Name: "Staff Sergeant", PointsRequired: 100, ExternalRankRef: 4},
	{Order: 5, Name: "Lieutenant", PointsRequired: 150, ExternalRankRef: 5},
	{Order: 6, Name: "Captain", PointsRequired: 210, ExternalRankRef: 6},
	{Order: 7, Name: "Major", PointsRequired: 280, ExternalRankRef: 7},
	{Order: 8, Name: "Colonel", PointsRequired: 360, ExternalRankRef: 8},
	{Order: 9, Name: "General", PointsRequired: 450, ExternalRankRef: 9},
	{Order: 10, Name: "Officer Cadet", ExternalRankRef: 10, AdminOnly: true},
	{Order: 11, Name: "Junior Officer", ExternalRankRef: 11, AdminOnly: true},
	{Order: 12, Name: "Senior Officer", ExternalRankRef: 12, AdminOnly: true},
	{Order: 13, Name: "Commander", ExternalRankRef: 13, AdminOnly: true},
	{Order: 14, Name: "High Commander", ExternalRankRef: 14, AdminOnly: true},
	{Order: 15, Name: "Veteran", ExternalRankRef: 15, AdminOnly: true},
	{Order: 16, Name: "Elite Guard", ExternalRankRef: 16, AdminOnly: true},
	{Order: 17, Name: "Legend", ExternalRankRef: 17, AdminOnly: true},
	{Order: 18, Name: "Hall of Fame", ExternalRankRef: 18, AdminOnly: true},
	{Order: 19, Name: "Recruit", ExternalRankRef: 19, AdminOnly: true},
	{Order: 20, Name: "Probation", ExternalRankRef: 20, AdminOnly: true},
}
