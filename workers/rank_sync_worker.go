package workers

import (
	"context"
	"log/slog"
	"time"

	"clan-progression-service/services"
)

// RankSyncWorker runs the roster sweep on an interval, so rank changes made
// directly on the group platform reach the ledger and grants without anyone
// asking.
type RankSyncWorker struct {
	sync     *services.SyncService
	interval time.Duration
	log      *slog.Logger
}

func NewRankSyncWorker(sync *services.SyncService, interval time.Duration, log *slog.Logger) *RankSyncWorker {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &RankSyncWorker{
		sync:     sync,
		interval: interval,
		log:      log,
	}
}

func (w *RankSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting rank sync worker", "interval", w.interval)
	go w.run(ctx)
}

func (w *RankSyncWorker) run(ctx context.Context) {
	// Initial sweep so a restart never waits out a full interval
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			w.log.Info("⏹️ rank sync worker stopped")
			return
		}
	}
}

func (w *RankSyncWorker) sweep(ctx context.Context) {
	report, err := w.sync.SyncAll(ctx)
	if err != nil {
		w.log.Error("❌ [SYNC] roster sweep aborted",
			"error", err,
			"updated", report.Updated,
			"no_change", report.NoChange,
			"skipped", report.Skipped,
			"errors", report.Errors)
	}
}
