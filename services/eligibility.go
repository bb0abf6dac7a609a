package services

import "clan-progression-service/models"

// Eligibility decides when points have earned the next ladder step.
// Admin-only ranks are invisible to it.
type Eligibility struct {
	Table *RankTable
}

func NewEligibility(table *RankTable) *Eligibility {
	return &Eligibility{Table: table}
}

// Next returns the point rank the member would advance into, if any.
func (e *Eligibility) Next(member *models.Member) (models.Rank, bool) {
	return e.Table.NextPointRank(member.RankOrder)
}

// Eligible returns the next point rank when the member's points cover it.
func (e *Eligibility) Eligible(member *models.Member) (models.Rank, bool) {
	next, ok := e.Table.NextPointRank(member.RankOrder)
	if !ok {
		return models.Rank{}, false
	}
	if member.Points < next.PointsRequired {
		return models.Rank{}, false
	}
	return next, true
}

// Progress reports points earned toward the next point rank, for profile
// views. Done is true when no point rank remains above the member.
func (e *Eligibility) Progress(member *models.Member) (have, need int, next models.Rank, done bool) {
	n, ok := e.Table.NextPointRank(member.RankOrder)
	if !ok {
		return member.Points, 0, models.Rank{}, true
	}
	return member.Points, n.PointsRequired, n, false
}
