package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrPollClosed     = errors.New("poll is closed")
	ErrInternal       = errors.New("internal server error")
)

// ValidationError reports malformed input before any mutation is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError reports an attempt to grow a poll past its option cap.
type CapacityError struct {
	PollID int64
	Limit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("poll %d already has the maximum of %d options", e.PollID, e.Limit)
}
