package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no session exists for a task ID.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned for any status change outside the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// allowedTransitions is the full lifecycle: a session moves strictly forward
// through PENDING -> IN_PROGRESS -> {COMPLETED | FAILED}, or fails straight
// from PENDING when the call never connects.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  nil,
	StatusFailed:     nil,
}

// CanTransition reports whether moving from one status to the next is legal.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns a descriptive ErrInvalidTransition when the move is
// not in the table.
func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
