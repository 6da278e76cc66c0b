// Package redis caches the derived leaderboard so display adapters can
// read standings without touching the authoritative store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"assignment-tracker-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	totalsKey = "leaderboard:totals"
	eventsKey = "leaderboard:events"
)

// SnapshotWriter keeps two derived structures: a ZSET of per-user
// totals for ranked range queries and a JSON blob of the per-completion
// event list. Both are rewritten wholesale on every mutation and
// TTL-bounded, so a crashed writer leaves at worst an expired cache.
type SnapshotWriter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotWriter(client *redis.Client, ttl time.Duration) *SnapshotWriter {
	return &SnapshotWriter{client: client, ttl: ttl}
}

func (w *SnapshotWriter) WriteSnapshot(ctx context.Context, lb domain.Leaderboard, snap domain.LeaderboardSnapshot) error {
	events, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot events: %w", err)
	}

	members := make([]redis.Z, 0, len(lb.Entries))
	for _, entry := range lb.Entries {
		members = append(members, redis.Z{Score: float64(entry.Total), Member: entry.User})
	}

	pipe := w.client.TxPipeline()
	pipe.Del(ctx, totalsKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, totalsKey, members...)
	}
	pipe.Set(ctx, eventsKey, events, w.ttl)
	if w.ttl > 0 {
		pipe.Expire(ctx, totalsKey, w.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write leaderboard cache: %w", err)
	}
	return nil
}

// Top returns the cached standings, best first. This reads the derived
// cache: it reflects the last mutation's write, not a live query.
func (w *SnapshotWriter) Top(ctx context.Context, n int64) ([]domain.LeaderboardEntry, error) {
	members, err := w.client.ZRevRangeWithScores(ctx, totalsKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard cache: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		user, _ := m.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{User: user, Total: int(m.Score)})
	}
	return entries, nil
}

// ReadSnapshot returns the cached per-event list, empty when the cache
// has expired or was never written.
func (w *SnapshotWriter) ReadSnapshot(ctx context.Context) (domain.LeaderboardSnapshot, error) {
	var snap domain.LeaderboardSnapshot
	data, err := w.client.Get(ctx, eventsKey).Bytes()
	if err == redis.Nil {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read snapshot events: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	return snap, nil
}
