package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"assignment-tracker-service/internal/domain"
	"assignment-tracker-service/internal/leaderboard"
)

// Gateway is the durable store for the authoritative assignment set.
type Gateway interface {
	Load(ctx context.Context) ([]domain.Assignment, error)
	Save(ctx context.Context, assignments []domain.Assignment) error
}

// SnapshotWriter persists the derived leaderboard cache. Snapshot writes
// are best-effort: the data is recomputable from the assignment set.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, lb domain.Leaderboard, snap domain.LeaderboardSnapshot) error
}

// TrackerService contains the assignment tracking use cases. All
// mutations run under a single lock, durable persist included, so no
// two read-modify-write cycles ever interleave and no mutation starts
// while a save is in flight.
type TrackerService struct {
	mu        sync.Mutex
	board     *Board
	gateway   Gateway
	snapshots SnapshotWriter
	lbCache   *leaderboard.Cache
	backoff   time.Duration
	now       func() time.Time

	subMu       sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewTrackerService(gateway Gateway, snapshots SnapshotWriter, retryBackoff time.Duration) *TrackerService {
	return NewTrackerServiceWithClock(gateway, snapshots, retryBackoff, time.Now)
}

// NewTrackerServiceWithClock allows deterministic timestamps in tests.
func NewTrackerServiceWithClock(gateway Gateway, snapshots SnapshotWriter, retryBackoff time.Duration, now func() time.Time) *TrackerService {
	s := &TrackerService{
		board:       NewBoard(),
		gateway:     gateway,
		snapshots:   snapshots,
		backoff:     retryBackoff,
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
	s.lbCache = leaderboard.NewCache(func() domain.Leaderboard {
		return leaderboard.Build(s.board.List(), s.now())
	})
	return s
}

// Load replaces in-memory state from the durable store. Called once at
// startup before the service accepts commands.
func (s *TrackerService) Load(ctx context.Context) error {
	assignments, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	s.mu.Lock()
	s.board = NewBoardFrom(assignments)
	s.mu.Unlock()
	s.lbCache.Invalidate()
	return nil
}

// CreateAssignment adds a new assignment. The caller supplies the
// privilege decision; the service only enforces domain invariants.
func (s *TrackerService) CreateAssignment(ctx context.Context, title, description string, dueAt time.Time, basePoints int) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.board.List()
	a, err := s.board.Create(title, description, dueAt, basePoints)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := s.persistLocked(ctx, undo); err != nil {
		return domain.Assignment{}, err
	}
	s.afterMutationLocked(ctx)
	return a, nil
}

// RenameAssignment rekeys an assignment and refreshes its description
// and due date; completion history and base points are preserved.
func (s *TrackerService) RenameAssignment(ctx context.Context, oldTitle, newTitle, newDescription string, newDueAt time.Time) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.board.List()
	a, err := s.board.Rename(oldTitle, newTitle, newDescription, newDueAt)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := s.persistLocked(ctx, undo); err != nil {
		return domain.Assignment{}, err
	}
	s.afterMutationLocked(ctx)
	return a, nil
}

// DeleteAssignment removes an assignment permanently.
func (s *TrackerService) DeleteAssignment(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.board.List()
	if err := s.board.Remove(title); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, undo); err != nil {
		return err
	}
	s.afterMutationLocked(ctx)
	return nil
}

// CompleteAssignment marks an assignment done for user at the given
// time and awards points. A repeat completion surfaces
// domain.ErrAlreadyCompleted with the original result and persists
// nothing.
func (s *TrackerService) CompleteAssignment(ctx context.Context, title, user string, at time.Time) (domain.CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.board.List()
	result, err := s.board.Complete(title, user, at)
	if err != nil {
		return result, err
	}
	if err := s.persistLocked(ctx, undo); err != nil {
		return domain.CompletionResult{}, err
	}
	s.afterMutationLocked(ctx)
	return result, nil
}

// ListAssignments returns the live assignment set in creation order.
func (s *TrackerService) ListAssignments() []domain.Assignment {
	return s.board.List()
}

// Leaderboard returns ranked per-user totals, recomputed from the
// authoritative set whenever a mutation invalidated the cache.
func (s *TrackerService) Leaderboard() domain.Leaderboard {
	return s.lbCache.Get()
}

// DetailedLeaderboard returns the per-completion-event view. It is a
// point-in-time snapshot stamped with its generation time, not a live
// query.
func (s *TrackerService) DetailedLeaderboard() domain.LeaderboardSnapshot {
	return leaderboard.Snapshot(s.board.List(), s.now())
}

// ProgressSeries feeds the external chart renderer: per-assignment
// totals in creation order.
func (s *TrackerService) ProgressSeries() domain.ProgressSeries {
	assignments := s.board.List()
	series := domain.ProgressSeries{
		Labels: make([]string, 0, len(assignments)),
		Values: make([]int, 0, len(assignments)),
	}
	for _, a := range assignments {
		series.Labels = append(series.Labels, a.Title)
		series.Values = append(series.Values, a.TotalPoints)
	}
	return series
}

// UserProgress reports one user's total and completed titles.
func (s *TrackerService) UserProgress(user string) domain.UserProgress {
	progress := domain.UserProgress{User: user, Completed: []string{}}
	for _, a := range s.board.List() {
		if c, ok := a.Completed(user); ok {
			progress.Total += c.Points
			progress.Completed = append(progress.Completed, a.Title)
		}
	}
	return progress
}

// Subscribe returns a channel that receives leaderboard updates after
// every successful mutation, primed with the current standings. The
// caller must invoke the returned cancel function to avoid leaks.
func (s *TrackerService) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	ch <- s.lbCache.Get()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// persistLocked makes the pending mutation durable. One retry after a
// bounded backoff; if that also fails the in-memory change is rolled
// back so durable and live state cannot drift.
func (s *TrackerService) persistLocked(ctx context.Context, undo []domain.Assignment) error {
	err := s.gateway.Save(ctx, s.board.List())
	if err != nil {
		log.Printf("save failed, retrying in %s: %v", s.backoff, err)
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			s.board.Restore(undo)
			return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, ctx.Err())
		}
		err = s.gateway.Save(ctx, s.board.List())
	}
	if err != nil {
		s.board.Restore(undo)
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// afterMutationLocked refreshes the derived artifacts: invalidates the
// read cache, regenerates the leaderboard snapshot, and notifies
// subscribers. Snapshot write failures are logged, not surfaced; the
// cache is a display artifact rebuilt on the next mutation.
func (s *TrackerService) afterMutationLocked(ctx context.Context) {
	s.lbCache.Invalidate()
	lb := s.lbCache.Get()

	if s.snapshots != nil {
		snap := leaderboard.Snapshot(s.board.List(), s.now())
		if err := s.snapshots.WriteSnapshot(ctx, lb, snap); err != nil {
			log.Printf("leaderboard snapshot write failed: %v", err)
		}
	}

	s.subMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale update so a slow consumer cannot block mutations.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	s.subMu.Unlock()
}
