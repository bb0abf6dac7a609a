package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clan-progression-service/models"
	"clan-progression-service/repository"

	"gorm.io/gorm"
)

// Notifier surfaces progression outcomes to people. Failures are logged and
// swallowed; a lost notice never fails the operation it announces.
type Notifier interface {
	PromotionAnnounced(ctx context.Context, memberID string, result models.PromotionResult) error
	DesyncReported(ctx context.Context, memberID string, result models.PromotionResult) error
	SubmissionFiled(ctx context.Context, sub *models.Submission) error
	SubmissionResolved(ctx context.Context, sub *models.Submission, result models.ApprovalResult) error
}

// PromotionService moves a member's rank through all three stores: ledger,
// grants, group platform. The three writes are independent. Whatever fails is
// reported; whatever succeeded stays. Convergence is sync's job, not a
// rollback's.
type PromotionService struct {
	Repo   repository.Repository
	Group  GroupDirectory
	Grants Granter
	Table  *RankTable
	Elig   *Eligibility
	Syncer *SyncService
	Retry  *Retryer
	Notify Notifier
	Log    *slog.Logger
}

func NewPromotionService(repo repository.Repository, group GroupDirectory, grants Granter, table *RankTable, elig *Eligibility, syncer *SyncService, retry *Retryer, notify Notifier, log *slog.Logger) *PromotionService {
	return &PromotionService{
		Repo:   repo,
		Group:  group,
		Grants: grants,
		Table:  table,
		Elig:   elig,
		Syncer: syncer,
		Retry:  retry,
		Notify: notify,
		Log:    log,
	}
}

// Promote moves a member to a chosen ladder step. The member is synced first
// so the promotion starts from platform truth; when that fails the promotion
// proceeds from local state and says so. Point-gated targets still require
// the points; admin-only targets are officer discretion.
func (s *PromotionService) Promote(ctx context.Context, memberID string, targetOrder int) (models.PromotionResult, error) {
	member, err := s.Repo.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PromotionResult{}, ErrMemberNotFound
		}
		return models.PromotionResult{}, err
	}

	target, ok := s.Table.ByOrder(targetOrder)
	if !ok {
		return models.PromotionResult{}, ErrRankNotFound
	}
	if !member.Linked() {
		return models.PromotionResult{}, ErrNotLinked
	}

	preSynced := true
	var preReason string
	if _, err := s.Syncer.Sync(ctx, memberID); err != nil {
		preSynced = false
		preReason = fmt.Sprintf("pre-sync failed: %v", err)
		s.Log.Warn("⚠️ promoting from local state", "member", memberID, "error", err)
	} else {
		member, err = s.Repo.GetMember(ctx, memberID) // sync may have moved the rank
		if err != nil {
			return models.PromotionResult{}, err
		}
	}

	if member.RankOrder == target.Order {
		return models.PromotionResult{
			LedgerOK:     true,
			GrantOK:      true,
			ExternalOK:   true,
			PreSynced:    preSynced,
			OldRankOrder: member.RankOrder,
			NewRankOrder: target.Order,
			Reason:       "already holds the rank",
		}, nil
	}

	if !target.AdminOnly && member.Points < target.PointsRequired {
		return models.PromotionResult{}, &PointsDeficitError{
			RankName: target.Name,
			Required: target.PointsRequired,
			Points:   member.Points,
		}
	}

	result, err := s.execute(ctx, member, target)
	result.PreSynced = preSynced
	result.Reason = joinReasons(preReason, result.Reason)
	return result, err
}

// PromoteNext moves a member one step up the full ladder, admin-only steps
// included. Officers use it when no explicit target is named.
func (s *PromotionService) PromoteNext(ctx context.Context, memberID string) (models.PromotionResult, error) {
	member, err := s.Repo.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PromotionResult{}, ErrMemberNotFound
		}
		return models.PromotionResult{}, err
	}
	next, ok := s.Table.NextRank(member.RankOrder)
	if !ok {
		return models.PromotionResult{}, ValidationError{Field: "member", Message: "already holds the highest rank"}
	}
	return s.Promote(ctx, memberID, next.Order)
}

// AutoPromote climbs the member through every point rank their points cover,
// one full three-store promotion per step. Unlinked members bank points until
// they link an account. The climb stops the moment a step leaves any store
// behind, so a desync never compounds.
func (s *PromotionService) AutoPromote(ctx context.Context, memberID string) ([]models.PromotionResult, error) {
	var results []models.PromotionResult
	for {
		member, err := s.Repo.GetMember(ctx, memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return results, ErrMemberNotFound
			}
			return results, err
		}
		if !member.Linked() {
			return results, nil
		}
		next, ok := s.Elig.Eligible(member)
		if !ok {
			return results, nil
		}

		result, err := s.execute(ctx, member, next)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if !result.Complete() {
			return results, nil
		}
	}
}

// execute runs the three promotion steps in order: ledger, grants (old key
// out before the new one goes in), group platform. Only a ledger failure is
// an error; the later steps degrade into the result.
func (s *PromotionService) execute(ctx context.Context, member *models.Member, target models.Rank) (models.PromotionResult, error) {
	result := models.PromotionResult{
		OldRankOrder: member.RankOrder,
		NewRankOrder: target.Order,
	}

	if err := s.Repo.SetMemberRank(ctx, member.ExternalID, target.Order); err != nil {
		return result, err
	}
	result.LedgerOK = true

	result.GrantOK = true
	if old, ok := s.Table.ByOrder(member.RankOrder); ok && old.Order != target.Order {
		err := s.Retry.Do(ctx, "revoke grant", func() error {
			return s.Grants.Revoke(ctx, member.ExternalID, RoleKey(old))
		})
		if err != nil {
			result.GrantOK = false
			result.Reason = joinReasons(result.Reason, fmt.Sprintf("grant revoke failed: %v", err))
		}
	}
	err := s.Retry.Do(ctx, "grant", func() error {
		return s.Grants.Grant(ctx, member.ExternalID, RoleKey(target))
	})
	if err != nil {
		result.GrantOK = false
		result.Reason = joinReasons(result.Reason, fmt.Sprintf("grant failed: %v", err))
	}

	err = s.Retry.Do(ctx, "push rank", func() error {
		return s.Group.PushRank(ctx, member.Account(), target.ExternalRankRef)
	})
	if err != nil {
		result.Reason = joinReasons(result.Reason, fmt.Sprintf("platform push failed: %v", err))
	} else {
		result.ExternalOK = true
	}

	if result.Complete() {
		s.Log.Info("✅ promoted", "member", member.ExternalID, "from", result.OldRankOrder, "to", result.NewRankOrder, "rank", target.Name)
		s.notify(ctx, member.ExternalID, result, false)
	} else {
		result.Reason = joinReasons(result.Reason, "rank sync will reconcile once the lagging store recovers")
		s.Log.Error("⚠️ promotion left stores out of step",
			"member", member.ExternalID,
			"ledger", result.LedgerOK,
			"grants", result.GrantOK,
			"external", result.ExternalOK,
			"reason", result.Reason)
		s.notify(ctx, member.ExternalID, result, true)
	}
	return result, nil
}

func (s *PromotionService) notify(ctx context.Context, memberID string, result models.PromotionResult, desync bool) {
	if s.Notify == nil {
		return
	}
	var err error
	if desync {
		err = s.Notify.DesyncReported(ctx, memberID, result)
	} else {
		err = s.Notify.PromotionAnnounced(ctx, memberID, result)
	}
	if err != nil {
		s.Log.Warn("promotion notice failed", "member", memberID, "error", err)
	}
}

func joinReasons(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}
