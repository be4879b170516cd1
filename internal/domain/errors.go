package domain

import "errors"

// Error kinds. Every sentinel below unwraps to exactly one of them.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

var (
	// ErrUserNotFound is returned when the user document does not exist.
	ErrUserNotFound = kindError{"user not found", ErrNotFound}
	// ErrQuizNotFound indicates the quiz document does not exist.
	ErrQuizNotFound = kindError{"quiz not found", ErrNotFound}
	// ErrCollectionNotFound indicates a quiz references a missing collection.
	ErrCollectionNotFound = kindError{"collection not found", ErrNotFound}
	// ErrPendingQuizNotFound is returned when unassigning a quiz that is not pending.
	ErrPendingQuizNotFound = kindError{"quiz is not assigned to user", ErrNotFound}
	// ErrQuizAlreadyPending rejects a duplicate manual assignment.
	ErrQuizAlreadyPending = kindError{"quiz already assigned to user", ErrConflict}
	// ErrQuizAlreadySkipped rejects a second skip of the same quiz.
	ErrQuizAlreadySkipped = kindError{"quiz already removed from future assignments", ErrConflict}
)

type kindError struct {
	msg  string
	kind error
}

func (e kindError) Error() string { return e.msg }
func (e kindError) Unwrap() error { return e.kind }

// ValidationError rejects a request before anything is read or written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
