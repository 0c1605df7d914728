package recovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by LoadMostRecent when the user has no plans.
	ErrNotFound = errors.New("no recovery plan found")
	// ErrNoActivePlan is returned when an operation needs an Active session.
	ErrNoActivePlan = errors.New("no active recovery plan")
	// ErrInvalidDay is returned when a day other than currentDay+1 is requested.
	ErrInvalidDay = errors.New("invalid plan day")
	// ErrGenerationInProgress is returned while another generation for the
	// same session has not finished.
	ErrGenerationInProgress = errors.New("plan generation already in progress")
)

// GenerationFailedError wraps a failed language model call. The cause is a
// *llm.RemoteServiceError or *llm.NoCandidatesError.
type GenerationFailedError struct {
	Day int
	Err error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("failed to generate day %d plan: %v", e.Day, e.Err)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}
