package cache

import (
	"context"
	"log/slog"

	"clan-progression-service/repository"

	"github.com/go-redis/redis/v8"
)

const leaderboardKey = "progression:leaderboard"

// Entry is one leaderboard row.
type Entry struct {
	MemberID string `json:"member_id"`
	Points   int    `json:"points"`
}

// Leaderboard keeps the points standings in a redis sorted set so reads skip
// the database. The ledger stays authoritative: misses fall back to it and
// the scheduler rebuilds the set on an interval.
type Leaderboard struct {
	client *redis.Client
	repo   repository.Repository
	log    *slog.Logger
}

func NewLeaderboard(addr string, repo repository.Repository, log *slog.Logger) *Leaderboard {
	return &Leaderboard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		repo:   repo,
		log:    log,
	}
}

// Ping verifies the redis connection at startup.
func (l *Leaderboard) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// SetScore writes one member's points into the standings.
func (l *Leaderboard) SetScore(ctx context.Context, memberID string, points int) error {
	return l.client.ZAdd(ctx, leaderboardKey, &redis.Z{
		Score:  float64(points),
		Member: memberID,
	}).Err()
}

// Remove drops a member from the standings.
func (l *Leaderboard) Remove(ctx context.Context, memberID string) error {
	return l.client.ZRem(ctx, leaderboardKey, memberID).Err()
}

// RankOf returns the member's 1-based position, 0 when unranked.
func (l *Leaderboard) RankOf(ctx context.Context, memberID string) (int64, error) {
	rank, err := l.client.ZRevRank(ctx, leaderboardKey, memberID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// Top returns the highest standings, best first. An empty or unreachable
// cache falls back to the ledger.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]Entry, error) {
	zs, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err == nil && len(zs) > 0 {
		entries := make([]Entry, 0, len(zs))
		for _, z := range zs {
			id, _ := z.Member.(string)
			entries = append(entries, Entry{MemberID: id, Points: int(z.Score)})
		}
		return entries, nil
	}
	if err != nil {
		l.log.Warn("leaderboard cache read failed, falling back to ledger", "error", err)
	}

	members, dbErr := l.repo.TopMembers(ctx, n)
	if dbErr != nil {
		return nil, dbErr
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		entries = append(entries, Entry{MemberID: m.ExternalID, Points: m.Points})
	}
	return entries, nil
}

// Rebuild replaces the standings with the ledger's current view.
func (l *Leaderboard) Rebuild(ctx context.Context) error {
	members, err := l.repo.ListMembers(ctx)
	if err != nil {
		return err
	}

	zs := make([]*redis.Z, 0, len(members))
	for i := range members {
		zs = append(zs, &redis.Z{
			Score:  float64(members[i].Points),
			Member: members[i].ExternalID,
		})
	}

	pipe := l.client.TxPipeline()
	pipe.Del(ctx, leaderboardKey)
	if len(zs) > 0 {
		pipe.ZAdd(ctx, leaderboardKey, zs...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	l.log.Info("♻️ leaderboard rebuilt", "members", len(zs))
	return nil
}
