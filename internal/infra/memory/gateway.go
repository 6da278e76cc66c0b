// Package memory provides in-process implementations of the persistence
// ports, used standalone (no redis/postgres configured) and as test
// doubles with injectable failures.
package memory

import (
	"context"
	"sync"

	"assignment-tracker-service/internal/domain"
)

// Gateway keeps the assignment set in memory. FailNextSaves lets tests
// exercise the retry-then-rollback path.
type Gateway struct {
	mu        sync.Mutex
	saved     []domain.Assignment
	failNext  int
	failErr   error
	saveCalls int
}

func NewGateway() *Gateway {
	return &Gateway{}
}

func (g *Gateway) Load(_ context.Context) ([]domain.Assignment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Assignment, len(g.saved))
	for i, a := range g.saved {
		out[i] = a.Clone()
	}
	return out, nil
}

func (g *Gateway) Save(_ context.Context, assignments []domain.Assignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveCalls++
	if g.failNext > 0 {
		g.failNext--
		return g.failErr
	}
	g.saved = make([]domain.Assignment, len(assignments))
	for i, a := range assignments {
		g.saved[i] = a.Clone()
	}
	return nil
}

// FailNextSaves makes the next n Save calls return err.
func (g *Gateway) FailNextSaves(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = n
	g.failErr = err
}

// SaveCalls reports how many Save attempts were made.
func (g *Gateway) SaveCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saveCalls
}

// Saved returns the last durably written assignment set.
func (g *Gateway) Saved() []domain.Assignment {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Assignment, len(g.saved))
	for i, a := range g.saved {
		out[i] = a.Clone()
	}
	return out
}

// SnapshotWriter records the last derived leaderboard snapshot.
type SnapshotWriter struct {
	mu     sync.Mutex
	lb     domain.Leaderboard
	snap   domain.LeaderboardSnapshot
	writes int
}

func NewSnapshotWriter() *SnapshotWriter {
	return &SnapshotWriter{}
}

func (w *SnapshotWriter) WriteSnapshot(_ context.Context, lb domain.Leaderboard, snap domain.LeaderboardSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lb = lb
	w.snap = snap
	w.writes++
	return nil
}

// Last returns the most recent snapshot write and the write count.
func (w *SnapshotWriter) Last() (domain.Leaderboard, domain.LeaderboardSnapshot, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lb, w.snap, w.writes
}
