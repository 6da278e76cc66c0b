package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DueDateLayout is the wire and storage format for all timestamps.
// Minute resolution, no timezone marker; times are treated as local.
const DueDateLayout = "2006-01-02 15:04"

// ParseDueDate parses a "YYYY-MM-DD HH:MM" timestamp.
func ParseDueDate(raw string) (time.Time, error) {
	t, err := time.Parse(DueDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
	}
	return t, nil
}

// FormatDueDate renders a timestamp at minute precision.
func FormatDueDate(t time.Time) string {
	return t.Format(DueDateLayout)
}

// TruncateMinute drops sub-minute precision; nothing below a minute is
// ever stored or restored.
func TruncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// Completion records a single user marking an assignment done. Points and
// DaysEarly are fixed at recording time so totals stay recomputable from
// history after a restart.
type Completion struct {
	User      string
	At        time.Time
	Points    int
	DaysEarly int
}

type completionJSON struct {
	User      string `json:"user"`
	At        string `json:"at"`
	Points    int    `json:"points"`
	DaysEarly int    `json:"daysEarly"`
}

func (c Completion) MarshalJSON() ([]byte, error) {
	return json.Marshal(completionJSON{
		User:      c.User,
		At:        FormatDueDate(c.At),
		Points:    c.Points,
		DaysEarly: c.DaysEarly,
	})
}

func (c *Completion) UnmarshalJSON(data []byte) error {
	var raw completionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	at, err := ParseDueDate(raw.At)
	if err != nil {
		return err
	}
	c.User = raw.User
	c.At = at
	c.Points = raw.Points
	c.DaysEarly = raw.DaysEarly
	return nil
}

// Assignment is a trackable task with a due time and a point value.
// Seq preserves creation order across save/load cycles.
type Assignment struct {
	Title       string
	Description string
	DueAt       time.Time
	BasePoints  int
	TotalPoints int
	Seq         int
	Completions []Completion
}

type assignmentJSON struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueAt       string       `json:"dueAt"`
	BasePoints  int          `json:"basePoints"`
	TotalPoints int          `json:"totalPoints"`
	Position    int          `json:"position"`
	Completions []Completion `json:"completions"`
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(assignmentJSON{
		Title:       a.Title,
		Description: a.Description,
		DueAt:       FormatDueDate(a.DueAt),
		BasePoints:  a.BasePoints,
		TotalPoints: a.TotalPoints,
		Position:    a.Seq,
		Completions: a.Completions,
	})
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	var raw assignmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dueAt, err := ParseDueDate(raw.DueAt)
	if err != nil {
		return err
	}
	a.Title = raw.Title
	a.Description = raw.Description
	a.DueAt = dueAt
	a.BasePoints = raw.BasePoints
	a.TotalPoints = raw.TotalPoints
	a.Seq = raw.Position
	a.Completions = raw.Completions
	return nil
}

// Clone returns a deep copy so readers never iterate shared slices.
func (a Assignment) Clone() Assignment {
	out := a
	out.Completions = make([]Completion, len(a.Completions))
	copy(out.Completions, a.Completions)
	return out
}

// Completed reports whether user already marked this assignment done.
func (a Assignment) Completed(user string) (Completion, bool) {
	for _, c := range a.Completions {
		if c.User == user {
			return c, true
		}
	}
	return Completion{}, false
}

// CompletionResult summarizes the outcome of marking an assignment done.
type CompletionResult struct {
	Title            string `json:"title"`
	User             string `json:"user"`
	Points           int    `json:"points"`
	DaysEarly        int    `json:"daysEarly"`
	Total            int    `json:"total"`
	AlreadyCompleted bool   `json:"alreadyCompleted"`
}

// LeaderboardEntry is one user's total across all assignments.
type LeaderboardEntry struct {
	User  string `json:"user"`
	Total int    `json:"total"`
}

// Leaderboard captures the ordered standings at a point in time.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SnapshotEntry is one completion event in the detailed leaderboard view.
// RunningTotal is the per-assignment total as of that event.
type SnapshotEntry struct {
	User              string `json:"user"`
	AssignmentTitle   string `json:"assignmentTitle"`
	PointsAwarded     int    `json:"pointsAwarded"`
	DaysRelativeToDue int    `json:"daysRelativeToDue"`
	RunningTotal      int    `json:"totalAtSnapshot"`
}

// LeaderboardSnapshot is the derived per-event cache regenerated wholesale
// on every mutation. It is a display artifact stamped at generation time,
// never a live query.
type LeaderboardSnapshot struct {
	Entries     []SnapshotEntry `json:"entries"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// ProgressSeries feeds the external chart renderer: one label/value pair
// per assignment in creation order.
type ProgressSeries struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// UserProgress lists a single user's total and completed assignment titles.
type UserProgress struct {
	User      string   `json:"user"`
	Total     int      `json:"total"`
	Completed []string `json:"completed"`
}
