// clan-progression-service/services/scheduler.go
package services

import (
	"context"
	"log/slog"
	"time"

	"clan-progression-service/cache"

	"github.com/go-co-op/gocron/v2"
)

// StartLeaderboardScheduler rebuilds the cached standings on an interval so
// drift from missed write-throughs never outlives one cycle. The returned
// scheduler is already running; shut it down on exit.
func StartLeaderboardScheduler(board *cache.Leaderboard, interval time.Duration, log *slog.Logger) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := board.Rebuild(ctx); err != nil {
				log.Error("[Scheduler] leaderboard rebuild failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return sched, nil
}
