package votes

import (
	"errors"
	"fmt"
)

var (
	ErrSubjectNotFound  = errors.New("Subject not found")
	ErrLocationNotFound = errors.New("Location not found")
	ErrVotingClosed     = errors.New("Voting is closed for this event")
	ErrNoSubjects       = errors.New("subject_ids must be a non-empty array")
)

// ValidationError is returned for malformed input; the message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RateLimitError is returned when the same source votes on the same subject
// again inside the vote window.
type RateLimitError struct {
	RetryAfter int // seconds, always >= 1
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before voting again.", e.RetryAfter)
}
