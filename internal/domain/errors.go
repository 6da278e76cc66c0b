package domain

import "errors"

var (
	// ErrAssignmentNotFound is returned when a referenced title does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrDuplicateTitle is returned on create/rename collisions.
	ErrDuplicateTitle = errors.New("assignment title already exists")
	// ErrInvalidDueDate indicates a timestamp that does not parse as "YYYY-MM-DD HH:MM".
	ErrInvalidDueDate = errors.New("invalid due date, want YYYY-MM-DD HH:MM")
	// ErrAlreadyCompleted is informational: the user had already marked the
	// assignment done. Nothing was mutated and no points were re-awarded.
	ErrAlreadyCompleted = errors.New("assignment already completed by user")
	// ErrCorruptRecord indicates persisted state that could not be decoded.
	ErrCorruptRecord = errors.New("corrupt assignment record")
	// ErrPersistenceFailure indicates a durable write that did not complete
	// even after a retry; the triggering mutation was rolled back.
	ErrPersistenceFailure = errors.New("persistence failure")
)
