package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"clan-progression-service/models"
	"clan-progression-service/repository"

	"gorm.io/gorm"
)

// ScoreBoard receives point updates so standings reads stay warm. Updates are
// best effort; the ledger is the authority.
type ScoreBoard interface {
	SetScore(ctx context.Context, memberID string, points int) error
}

// MemberProfile is the assembled view for profile endpoints.
type MemberProfile struct {
	Member       *models.Member `json:"member"`
	Rank         *models.Rank   `json:"rank,omitempty"`
	NextRank     *models.Rank   `json:"next_rank,omitempty"`
	PointsToNext int            `json:"points_to_next"`
	AtCeiling    bool           `json:"at_ceiling"`
}

// MemberService handles registration, account linking and point adjustments.
type MemberService struct {
	Repo     repository.Repository
	Table    *RankTable
	Elig     *Eligibility
	Promoter *PromotionService
	Board    ScoreBoard
	Log      *slog.Logger
}

func NewMemberService(repo repository.Repository, table *RankTable, elig *Eligibility, promoter *PromotionService, board ScoreBoard, log *slog.Logger) *MemberService {
	return &MemberService{
		Repo:     repo,
		Table:    table,
		Elig:     elig,
		Promoter: promoter,
		Board:    board,
		Log:      log,
	}
}

// EnsureMember returns the ledger row for the id, creating it at the bottom
// of the ladder on first sight (idempotent).
func (s *MemberService) EnsureMember(ctx context.Context, externalID string) (*models.Member, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ValidationError{Field: "external_id", Message: "is required"}
	}

	member, err := s.Repo.GetMember(ctx, externalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bottom := 1
		if r, ok := s.Table.Lowest(); ok {
			bottom = r.Order
		}
		member = &models.Member{ExternalID: externalID, RankOrder: bottom, Points: 0}
		if err := s.Repo.CreateMember(ctx, member); err != nil {
			return nil, err
		}
		s.Log.Info("member registered", "member", externalID)
		return member, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// LinkAccount ties a member to their group-platform account. An account can
// back exactly one member; relinking the same pair is a no-op.
func (s *MemberService) LinkAccount(ctx context.Context, externalID, account string) (*models.Member, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ValidationError{Field: "external_account", Message: "is required"}
	}

	member, err := s.EnsureMember(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if member.Account() == account {
		return member, nil
	}

	existing, err := s.Repo.GetMemberByAccount(ctx, account)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.ExternalID != member.ExternalID {
		return nil, ErrAccountTaken
	}

	if err := s.Repo.UpdateMemberAccount(ctx, member.ExternalID, account); err != nil {
		return nil, err
	}
	member.ExternalAccount = &account
	s.Log.Info("🔗 group account linked", "member", member.ExternalID, "account", account)
	return member, nil
}

// Profile assembles the member view with ladder position and progress toward
// the next point rank.
func (s *MemberService) Profile(ctx context.Context, externalID string) (*MemberProfile, error) {
	member, err := s.Repo.GetMember(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	p := &MemberProfile{Member: member}
	if r, ok := s.Table.ByOrder(member.RankOrder); ok {
		rank := r
		p.Rank = &rank
	}
	have, need, next, done := s.Elig.Progress(member)
	if done {
		p.AtCeiling = true
	} else {
		n := next
		p.NextRank = &n
		p.PointsToNext = need - have
		if p.PointsToNext < 0 {
			p.PointsToNext = 0
		}
	}
	return p, nil
}

// AddPoints applies an officer point adjustment and climbs any rank the new
// total earns. Totals never drop below zero.
func (s *MemberService) AddPoints(ctx context.Context, externalID string, delta int) (*models.Member, []models.PromotionResult, error) {
	if delta == 0 {
		return nil, nil, ValidationError{Field: "points", Message: "must not be zero"}
	}

	member, err := s.Repo.AdjustPoints(ctx, externalID, delta)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, err
	}
	s.Log.Info("🎖️ points adjusted", "member", externalID, "delta", delta, "total", member.Points)

	if s.Board != nil {
		if err := s.Board.SetScore(ctx, externalID, member.Points); err != nil {
			s.Log.Warn("leaderboard update failed", "member", externalID, "error", err)
		}
	}

	steps, err := s.Promoter.AutoPromote(ctx, externalID)
	if err != nil {
		return member, steps, err
	}
	if len(steps) > 0 {
		member, err = s.Repo.GetMember(ctx, externalID) // rank moved, reload
		if err != nil {
			return nil, steps, err
		}
	}
	return member, steps, nil
}
