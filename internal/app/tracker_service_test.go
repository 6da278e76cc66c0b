package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assignment-tracker-service/internal/app"
	"assignment-tracker-service/internal/domain"
	"assignment-tracker-service/internal/infra/memory"
)

var (
	essayDue = time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)
	testNow  = time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)
)

func newTestService() (*app.TrackerService, *memory.Gateway, *memory.SnapshotWriter) {
	gateway := memory.NewGateway()
	snapshots := memory.NewSnapshotWriter()
	service := app.NewTrackerServiceWithClock(gateway, snapshots, time.Millisecond, func() time.Time { return testNow })
	return service, gateway, snapshots
}

func TestEssayScenario(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	if _, err := service.CreateAssignment(ctx, "Essay", "final essay", essayDue, 5); err != nil {
		t.Fatalf("create: %v", err)
	}

	alice, err := service.CompleteAssignment(ctx, "Essay", "alice", time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("alice complete: %v", err)
	}
	if alice.Points != 10 || alice.Total != 10 {
		t.Fatalf("expected alice awarded 10, got %+v", alice)
	}

	bob, err := service.CompleteAssignment(ctx, "Essay", "bob", time.Date(2025, 1, 11, 0, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("bob complete: %v", err)
	}
	if bob.Points != -10 || bob.Total != 0 {
		t.Fatalf("expected bob penalized to total 0, got %+v", bob)
	}

	lb := service.Leaderboard()
	if len(lb.Entries) != 2 || lb.Entries[0].User != "alice" || lb.Entries[0].Total != 10 ||
		lb.Entries[1].User != "bob" || lb.Entries[1].Total != -10 {
		t.Fatalf("unexpected leaderboard: %+v", lb.Entries)
	}
}

func TestRepeatCompletionPersistsNothing(t *testing.T) {
	ctx := context.Background()
	service, gateway, _ := newTestService()

	_, _ = service.CreateAssignment(ctx, "Essay", "", essayDue, 5)
	_, _ = service.CompleteAssignment(ctx, "Essay", "alice", essayDue)
	saves := gateway.SaveCalls()

	result, err := service.CompleteAssignment(ctx, "Essay", "alice", essayDue)
	if !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already-completed, got %v", err)
	}
	if !result.AlreadyCompleted {
		t.Fatalf("expected informational result, got %+v", result)
	}
	if gateway.SaveCalls() != saves {
		t.Fatalf("repeat completion triggered a save")
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	service, gateway, _ := newTestService()

	_, _ = service.CreateAssignment(ctx, "Essay", "", essayDue, 5)

	// Both the initial save and the retry fail.
	gateway.FailNextSaves(2, errors.New("disk full"))
	_, err := service.CompleteAssignment(ctx, "Essay", "alice", essayDue)
	if !errors.Is(err, domain.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}

	list := service.ListAssignments()
	if len(list[0].Completions) != 0 || list[0].TotalPoints != 0 {
		t.Fatalf("mutation not rolled back: %+v", list[0])
	}
	if len(service.Leaderboard().Entries) != 0 {
		t.Fatalf("leaderboard reflects rolled-back completion")
	}
}

func TestPersistRetriesOnceThenSucceeds(t *testing.T) {
	ctx := context.Background()
	service, gateway, _ := newTestService()

	gateway.FailNextSaves(1, errors.New("transient"))
	if _, err := service.CreateAssignment(ctx, "Essay", "", essayDue, 5); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := len(gateway.Saved()); got != 1 {
		t.Fatalf("expected durable record after retry, got %d", got)
	}
}

func TestSnapshotRegeneratedOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	service, _, snapshots := newTestService()

	_, _ = service.CreateAssignment(ctx, "Essay", "", essayDue, 5)
	_, _ = service.CompleteAssignment(ctx, "Essay", "alice", essayDue.AddDate(0, 0, -6))

	lb, snap, writes := snapshots.Last()
	if writes != 2 {
		t.Fatalf("expected snapshot per mutation, got %d writes", writes)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].User != "alice" || snap.Entries[0].PointsAwarded != 10 {
		t.Fatalf("unexpected snapshot: %+v", snap.Entries)
	}
	if !snap.GeneratedAt.Equal(testNow) {
		t.Fatalf("snapshot not stamped with clock: %s", snap.GeneratedAt)
	}
	if lb.Entries[0].User != "alice" {
		t.Fatalf("unexpected totals in snapshot write: %+v", lb.Entries)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	ch, cancel := service.Subscribe()
	defer cancel()
	<-ch // initial standings

	_, _ = service.CreateAssignment(ctx, "Essay", "", essayDue, 5)
	<-ch // creation broadcast

	_, _ = service.CompleteAssignment(ctx, "Essay", "alice", essayDue.AddDate(0, 0, -6))
	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].Total != 10 {
		t.Fatalf("expected pushed standings, got %+v", update.Entries)
	}
}

func TestLoadRebuildsFromGateway(t *testing.T) {
	ctx := context.Background()
	service, gateway, _ := newTestService()

	_, _ = service.CreateAssignment(ctx, "Essay", "desc", essayDue, 5)
	_, _ = service.CompleteAssignment(ctx, "Essay", "alice", essayDue.AddDate(0, 0, -6))

	reloaded := app.NewTrackerServiceWithClock(gateway, memory.NewSnapshotWriter(), time.Millisecond, func() time.Time { return testNow })
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	list := reloaded.ListAssignments()
	if len(list) != 1 || list[0].TotalPoints != 10 || len(list[0].Completions) != 1 {
		t.Fatalf("reload lost state: %+v", list)
	}
	lb := reloaded.Leaderboard()
	if len(lb.Entries) != 1 || lb.Entries[0].User != "alice" || lb.Entries[0].Total != 10 {
		t.Fatalf("reload lost leaderboard: %+v", lb.Entries)
	}
}

func TestProgressViews(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	_, _ = service.CreateAssignment(ctx, "Essay", "", essayDue, 5)
	_, _ = service.CreateAssignment(ctx, "Lab", "", essayDue.AddDate(0, 0, 7), 3)
	_, _ = service.CompleteAssignment(ctx, "Essay", "alice", essayDue.AddDate(0, 0, -6))
	_, _ = service.CompleteAssignment(ctx, "Lab", "alice", essayDue.AddDate(0, 0, 1))

	series := service.ProgressSeries()
	if len(series.Labels) != 2 || series.Labels[0] != "Essay" || series.Values[0] != 10 {
		t.Fatalf("unexpected series: %+v", series)
	}

	progress := service.UserProgress("alice")
	if progress.Total != 20 || len(progress.Completed) != 2 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	if none := service.UserProgress("nobody"); none.Total != 0 || len(none.Completed) != 0 {
		t.Fatalf("expected empty progress, got %+v", none)
	}
}
