package workers

import (
	"context"
	"log/slog"
	"time"

	"clan-progression-service/services"
)

// LadderAuditWorker polls the group platform's rank roster and flags ladder
// steps whose external reference no longer resolves there. Renamed or
// renumbered group roles are the usual way members silently stop syncing, so
// drift is worth shouting about before it strands anyone.
type LadderAuditWorker struct {
	group    services.GroupDirectory
	table    *services.RankTable
	interval time.Duration
	log      *slog.Logger
}

func NewLadderAuditWorker(group services.GroupDirectory, table *services.RankTable, interval time.Duration, log *slog.Logger) *LadderAuditWorker {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &LadderAuditWorker{
		group:    group,
		table:    table,
		interval: interval,
		log:      log,
	}
}

func (w *LadderAuditWorker) Start(ctx context.Context) {
	w.log.Info("🔍 starting ladder audit worker", "interval", w.interval)
	go w.run(ctx)
}

func (w *LadderAuditWorker) run(ctx context.Context) {
	w.audit(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.audit(ctx)
		case <-ctx.Done():
			w.log.Info("⏹️ ladder audit worker stopped")
			return
		}
	}
}

func (w *LadderAuditWorker) audit(ctx context.Context) {
	groupRanks, err := w.group.ListRanks(ctx)
	if err != nil {
		w.log.Error("❌ ladder audit failed", "error", err)
		return
	}

	missing := 0
	for _, rank := range w.table.Ranks() {
		found := false
		for _, gr := range groupRanks {
			if services.RankMatches(rank, gr) {
				found = true
				break
			}
		}
		if !found {
			missing++
			w.log.Warn("⚠️ ladder step has no matching group rank",
				"order", rank.Order,
				"name", rank.Name,
				"external_rank_ref", rank.ExternalRankRef)
		}
	}

	if missing == 0 {
		w.log.Info("✅ ladder audit clean", "steps", len(w.table.Ranks()), "group_ranks", len(groupRanks))
	} else {
		w.log.Warn("⚠️ ladder audit found drift", "missing", missing, "steps", len(w.table.Ranks()))
	}
}
