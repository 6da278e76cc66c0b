// Package scoring awards points for completing an assignment relative to
// its due date. It is pure: the same (dueAt, completedAt) pair always
// yields the same result, so live recording and offline leaderboard
// recomputation can never diverge.
package scoring

import "time"

const day = 24 * time.Hour

// DaysEarly returns the whole days between completion and due time,
// floored, so any lateness under a full day still counts as -1.
func DaysEarly(dueAt, completedAt time.Time) int {
	diff := dueAt.Sub(completedAt)
	days := int(diff / day)
	if diff < 0 && diff%day != 0 {
		days--
	}
	return days
}

// Award maps days-early onto the tiered point table:
//
//	>= 5 days early  -> 10
//	2..4 days early  ->  5
//	0..1 days early  ->  1
//	late             -> -10
//
// basePoints is recorded per assignment and kept in the signature for
// rule changes, but the tier table awards fixed values.
func Award(dueAt, completedAt time.Time, _ int) (points, daysEarly int) {
	daysEarly = DaysEarly(dueAt, completedAt)
	switch {
	case daysEarly >= 5:
		points = 10
	case daysEarly >= 2:
		points = 5
	case daysEarly >= 0:
		points = 1
	default:
		points = -10
	}
	return points, daysEarly
}
