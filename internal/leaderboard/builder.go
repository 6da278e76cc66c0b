// Package leaderboard aggregates recorded completions into ranked
// standings. Totals are summed from the points recorded at each
// completion, never from per-assignment aggregates, so cross-assignment
// ranking survives restarts and replays.
package leaderboard

import (
	"sort"
	"time"

	"assignment-tracker-service/internal/domain"
)

// Build sums per-user points across every assignment's completions and
// ranks descending by total. Ties break ascending by user identifier;
// map iteration order is not a contract, this rule is.
func Build(assignments []domain.Assignment, at time.Time) domain.Leaderboard {
	totals := make(map[string]int)
	for _, a := range assignments {
		for _, c := range a.Completions {
			totals[c.User] += c.Points
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for user, total := range totals {
		entries = append(entries, domain.LeaderboardEntry{User: user, Total: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Total != entries[j].Total {
			return entries[i].Total > entries[j].Total
		}
		return entries[i].User < entries[j].User
	})

	return domain.Leaderboard{Entries: entries, UpdatedAt: at}
}

// Snapshot flattens every completion event into the detailed display
// view, with the per-assignment running total as of each event. The
// result is a point-in-time artifact stamped with GeneratedAt.
func Snapshot(assignments []domain.Assignment, at time.Time) domain.LeaderboardSnapshot {
	var entries []domain.SnapshotEntry
	for _, a := range assignments {
		running := 0
		for _, c := range a.Completions {
			running += c.Points
			entries = append(entries, domain.SnapshotEntry{
				User:              c.User,
				AssignmentTitle:   a.Title,
				PointsAwarded:     c.Points,
				DaysRelativeToDue: c.DaysEarly,
				RunningTotal:      running,
			})
		}
	}
	return domain.LeaderboardSnapshot{Entries: entries, GeneratedAt: at}
}
