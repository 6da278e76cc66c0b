package leaderboard

import (
	"sync"
	"testing"
	"time"

	"assignment-tracker-service/internal/domain"
)

var now = time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)

func sampleAssignments() []domain.Assignment {
	return []domain.Assignment{
		{
			Title: "Essay",
			Completions: []domain.Completion{
				{User: "alice", Points: 10, DaysEarly: 6},
				{User: "bob", Points: -10, DaysEarly: -1},
			},
		},
		{
			Title: "Lab Report",
			Completions: []domain.Completion{
				{User: "bob", Points: 5, DaysEarly: 3},
				{User: "carol", Points: 1, DaysEarly: 0},
			},
		},
	}
}

func TestBuildSumsAcrossAssignments(t *testing.T) {
	lb := Build(sampleAssignments(), now)

	want := []domain.LeaderboardEntry{
		{User: "alice", Total: 10},
		{User: "carol", Total: 1},
		{User: "bob", Total: -5},
	}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(lb.Entries))
	}
	for i, entry := range lb.Entries {
		if entry != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, entry, want[i])
		}
	}
	if !lb.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %s, got %s", now, lb.UpdatedAt)
	}
}

func TestBuildTieBreaksByUser(t *testing.T) {
	assignments := []domain.Assignment{
		{
			Title: "Quiz",
			Completions: []domain.Completion{
				{User: "zoe", Points: 5},
				{User: "amir", Points: 5},
			},
		},
	}
	lb := Build(assignments, now)
	if lb.Entries[0].User != "amir" || lb.Entries[1].User != "zoe" {
		t.Fatalf("expected tie broken ascending by user, got %+v", lb.Entries)
	}
}

func TestSnapshotRunningTotals(t *testing.T) {
	snap := Snapshot(sampleAssignments(), now)

	if len(snap.Entries) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap.Entries))
	}
	// Essay: alice +10 -> 10, bob -10 -> 0.
	if snap.Entries[0].RunningTotal != 10 || snap.Entries[1].RunningTotal != 0 {
		t.Fatalf("unexpected essay running totals: %+v", snap.Entries[:2])
	}
	if snap.Entries[1].DaysRelativeToDue != -1 {
		t.Fatalf("expected recorded days-early carried over, got %+v", snap.Entries[1])
	}
	if !snap.GeneratedAt.Equal(now) {
		t.Fatalf("expected GeneratedAt stamp %s, got %s", now, snap.GeneratedAt)
	}
}

func TestCacheIgnoresRebuildOlderThanInvalidate(t *testing.T) {
	var mu sync.Mutex
	total := 0
	firstRebuild := true
	entered := make(chan struct{})
	release := make(chan struct{})

	// The first rebuild snapshots state, then stalls until released,
	// modeling a slow build racing a mutation.
	cache := NewCache(func() domain.Leaderboard {
		mu.Lock()
		snapshot := total
		stall := firstRebuild
		firstRebuild = false
		mu.Unlock()
		if stall {
			close(entered)
			<-release
		}
		return domain.Leaderboard{
			Entries: []domain.LeaderboardEntry{{User: "alice", Total: snapshot}},
		}
	})

	stale := make(chan domain.Leaderboard)
	go func() { stale <- cache.Get() }()
	<-entered

	// Mutation lands while the first rebuild is still in flight.
	mu.Lock()
	total = 10
	mu.Unlock()
	cache.Invalidate()

	// A read after the mutation must start its own rebuild, not join
	// the stalled pre-mutation one.
	if got := cache.Get(); got.Entries[0].Total != 10 {
		t.Fatalf("post-mutation read served stale total %d", got.Entries[0].Total)
	}

	close(release)
	<-stale

	// The finished pre-mutation rebuild must not overwrite the cache.
	if got := cache.Get(); got.Entries[0].Total != 10 {
		t.Fatalf("stale rebuild poisoned cache with total %d", got.Entries[0].Total)
	}
}

func TestCacheRebuildsAfterInvalidate(t *testing.T) {
	calls := 0
	assignments := sampleAssignments()
	cache := NewCache(func() domain.Leaderboard {
		calls++
		return Build(assignments, now)
	})

	_ = cache.Get()
	_ = cache.Get()
	if calls != 1 {
		t.Fatalf("expected single rebuild, got %d", calls)
	}

	cache.Invalidate()
	lb := cache.Get()
	if calls != 2 {
		t.Fatalf("expected rebuild after invalidate, got %d calls", calls)
	}
	if lb.Entries[0].User != "alice" {
		t.Fatalf("expected alice leading, got %+v", lb.Entries)
	}
}
