package app

import (
	"sort"
	"sync"
	"time"

	"assignment-tracker-service/internal/domain"
	"assignment-tracker-service/internal/scoring"
)

// Board owns the in-memory assignment set: the mapping of title to
// record plus creation order. It is the only writer of assignment
// fields; TrackerService serializes mutating callers.
type Board struct {
	mu      sync.RWMutex
	byTitle map[string]*domain.Assignment
	order   []string
	nextSeq int
}

func NewBoard() *Board {
	return &Board{byTitle: make(map[string]*domain.Assignment)}
}

// NewBoardFrom rebuilds a board from persisted records, restoring
// creation order from each record's sequence number.
func NewBoardFrom(assignments []domain.Assignment) *Board {
	b := NewBoard()
	sorted := make([]domain.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for i := range sorted {
		a := sorted[i].Clone()
		b.byTitle[a.Title] = &a
		b.order = append(b.order, a.Title)
		if a.Seq >= b.nextSeq {
			b.nextSeq = a.Seq + 1
		}
	}
	return b
}

// Create adds a new assignment with no completions and zero total.
func (b *Board) Create(title, description string, dueAt time.Time, basePoints int) (domain.Assignment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byTitle[title]; exists {
		return domain.Assignment{}, domain.ErrDuplicateTitle
	}
	a := &domain.Assignment{
		Title:       title,
		Description: description,
		DueAt:       domain.TruncateMinute(dueAt),
		BasePoints:  basePoints,
		Seq:         b.nextSeq,
		Completions: []domain.Completion{},
	}
	b.nextSeq++
	b.byTitle[title] = a
	b.order = append(b.order, title)
	return a.Clone(), nil
}

// Rename rekeys an assignment and updates its description and due date.
// Completions, totals, and base points are untouched. Renaming onto an
// existing different title is a collision.
func (b *Board) Rename(oldTitle, newTitle, newDescription string, newDueAt time.Time) (domain.Assignment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.byTitle[oldTitle]
	if !ok {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	if newTitle != oldTitle {
		if _, exists := b.byTitle[newTitle]; exists {
			return domain.Assignment{}, domain.ErrDuplicateTitle
		}
	}

	delete(b.byTitle, oldTitle)
	a.Title = newTitle
	a.Description = newDescription
	a.DueAt = domain.TruncateMinute(newDueAt)
	b.byTitle[newTitle] = a
	for i, title := range b.order {
		if title == oldTitle {
			b.order[i] = newTitle
			break
		}
	}
	return a.Clone(), nil
}

// Remove deletes an assignment permanently, completion history included.
func (b *Board) Remove(title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byTitle[title]; !ok {
		return domain.ErrAssignmentNotFound
	}
	delete(b.byTitle, title)
	for i, t := range b.order {
		if t == title {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// Complete records user finishing the assignment at the given time and
// awards points against the due date. A repeat completion returns
// ErrAlreadyCompleted with the originally recorded result and mutates
// nothing.
func (b *Board) Complete(title, user string, at time.Time) (domain.CompletionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.byTitle[title]
	if !ok {
		return domain.CompletionResult{}, domain.ErrAssignmentNotFound
	}
	if prior, done := a.Completed(user); done {
		return domain.CompletionResult{
			Title:            title,
			User:             user,
			Points:           prior.Points,
			DaysEarly:        prior.DaysEarly,
			Total:            a.TotalPoints,
			AlreadyCompleted: true,
		}, domain.ErrAlreadyCompleted
	}

	at = domain.TruncateMinute(at)
	points, daysEarly := scoring.Award(a.DueAt, at, a.BasePoints)
	a.Completions = append(a.Completions, domain.Completion{
		User:      user,
		At:        at,
		Points:    points,
		DaysEarly: daysEarly,
	})
	a.TotalPoints += points

	return domain.CompletionResult{
		Title:     title,
		User:      user,
		Points:    points,
		DaysEarly: daysEarly,
		Total:     a.TotalPoints,
	}, nil
}

// Get returns a copy of a single assignment.
func (b *Board) Get(title string) (domain.Assignment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.byTitle[title]
	if !ok {
		return domain.Assignment{}, false
	}
	return a.Clone(), true
}

// List returns a deep-copied snapshot in creation order; readers never
// see the live structures.
func (b *Board) List() []domain.Assignment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Assignment, 0, len(b.order))
	for _, title := range b.order {
		out = append(out, b.byTitle[title].Clone())
	}
	return out
}

// Restore replaces the board contents wholesale. Used to roll back an
// in-memory mutation whose durable persist failed.
func (b *Board) Restore(assignments []domain.Assignment) {
	restored := NewBoardFrom(assignments)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byTitle = restored.byTitle
	b.order = restored.order
	b.nextSeq = restored.nextSeq
}
