package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clan-progression-service/models"
	"clan-progression-service/repository"

	"gorm.io/gorm"
)

// SyncService reconciles the ledger and the grant store against the group
// platform, the authority for rank identity. Sync never writes to the
// platform and never changes points.
type SyncService struct {
	Repo     repository.Repository
	Group    GroupDirectory
	Grants   Granter
	Table    *RankTable
	Retry    *Retryer
	Throttle time.Duration
	Log      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSyncService(repo repository.Repository, group GroupDirectory, grants Granter, table *RankTable, retry *Retryer, throttle time.Duration, log *slog.Logger) *SyncService {
	return &SyncService{
		Repo:     repo,
		Group:    group,
		Grants:   grants,
		Table:    table,
		Retry:    retry,
		Throttle: throttle,
		Log:      log,
		sleep:    sleepCtx,
	}
}

// Sync reconciles one member. Safe to repeat: a second pass over an already
// consistent member writes nothing.
func (s *SyncService) Sync(ctx context.Context, memberID string) (models.SyncOutcome, error) {
	member, err := s.Repo.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SyncOutcome{}, ErrMemberNotFound
		}
		return models.SyncOutcome{}, err
	}
	return s.syncMember(ctx, member)
}

func (s *SyncService) syncMember(ctx context.Context, member *models.Member) (models.SyncOutcome, error) {
	out := models.SyncOutcome{
		OldRankOrder: member.RankOrder,
		NewRankOrder: member.RankOrder,
	}

	if !member.Linked() {
		out.Action = models.SyncSkipped
		out.Reason = "no linked group account"
		return out, nil
	}

	desc, err := CallWithRetry(ctx, s.Retry, "fetch rank", func() (models.GroupRank, error) {
		return s.Group.FetchRank(ctx, member.Account())
	})
	if errors.Is(err, ErrNotInGroup) {
		out.Action = models.SyncSkipped
		out.Reason = "not a group member"
		return out, nil
	}
	if err != nil {
		return out, err
	}

	// The member's recorded step is checked first; only a mismatch there goes
	// through the table lookup. An id reused elsewhere as a level never moves
	// a member whose own step already answers to the descriptor.
	target, ok := s.Table.ByOrder(member.RankOrder)
	if !ok || !RankMatches(target, desc) {
		if target, ok = s.Table.MatchExternal(desc); !ok {
			out.Action = models.SyncSkipped
			out.Reason = fmt.Sprintf("no ladder step for platform rank %d/%d", desc.ID, desc.Level)
			return out, nil
		}
	}
	out.NewRankOrder = target.Order

	ledgerChanged := false
	if member.RankOrder != target.Order {
		if err := s.Repo.SetMemberRank(ctx, member.ExternalID, target.Order); err != nil {
			return out, err
		}
		ledgerChanged = true
	}

	// Grant failures only annotate the outcome. The action reflects the ledger
	// alone, so a repeat pass over an already converged member reads no_change
	// even while it quietly finishes lagging grants.
	if err := s.reconcileGrants(ctx, member.ExternalID, target); err != nil {
		out.Reason = fmt.Sprintf("grants lagging: %v", err)
		s.Log.Warn("⚠️ [SYNC] grant update lagging", "member", member.ExternalID, "error", err)
	}

	if ledgerChanged {
		out.Action = models.SyncUpdated
		s.Log.Info("🔁 [SYNC] rank synced", "member", member.ExternalID, "from", out.OldRankOrder, "to", target.Order)
	} else {
		out.Action = models.SyncNoChange
	}
	return out, nil
}

// reconcileGrants makes the member's ladder grants reflect target: grant the
// target key first, then strip stale ladder keys. Grants outside the ladder
// are never touched.
func (s *SyncService) reconcileGrants(ctx context.Context, memberID string, target models.Rank) error {
	held, err := CallWithRetry(ctx, s.Retry, "list grants", func() ([]string, error) {
		return s.Grants.Held(ctx, memberID)
	})
	if err != nil {
		return err
	}

	targetKey := RoleKey(target)
	ladder := make(map[string]bool, len(s.Table.Ranks()))
	for _, r := range s.Table.Ranks() {
		ladder[RoleKey(r)] = true
	}
	heldSet := make(map[string]bool, len(held))
	for _, k := range held {
		heldSet[k] = true
	}

	if !heldSet[targetKey] {
		err := s.Retry.Do(ctx, "grant", func() error {
			return s.Grants.Grant(ctx, memberID, targetKey)
		})
		if err != nil {
			return err
		}
	}
	for _, k := range held {
		if ladder[k] && k != targetKey {
			err := s.Retry.Do(ctx, "revoke", func() error {
				return s.Grants.Revoke(ctx, memberID, k)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncAll sweeps every linked member. One member's failure never stops the
// sweep; the throttle spaces out platform calls so the sweep itself does not
// trip rate limits.
func (s *SyncService) SyncAll(ctx context.Context) (models.BulkSyncReport, error) {
	members, err := s.Repo.ListLinkedMembers(ctx)
	if err != nil {
		return models.BulkSyncReport{}, err
	}

	var report models.BulkSyncReport
	for i := range members {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, err := s.syncMember(ctx, &members[i])
		switch {
		case err != nil:
			report.Errors++
			s.Log.Error("❌ [SYNC] member sync failed", "member", members[i].ExternalID, "error", err)
		case outcome.Action == models.SyncUpdated:
			report.Updated++
		case outcome.Action == models.SyncSkipped:
			report.Skipped++
			s.Log.Debug("[SYNC] member skipped", "member", members[i].ExternalID, "reason", outcome.Reason)
		default:
			report.NoChange++
		}
		if i < len(members)-1 && s.Throttle > 0 {
			if err := s.sleep(ctx, s.Throttle); err != nil {
				return report, err
			}
		}
	}

	s.Log.Info("✅ [SYNC] roster sweep complete",
		"members", len(members),
		"updated", report.Updated,
		"no_change", report.NoChange,
		"skipped", report.Skipped,
		"errors", report.Errors)
	return report, nil
}
