package extract

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Attempt-level sentinel errors. Both are retryable up to the attempt bound.
var (
	// ErrEmptyResponse reports the model returned empty or whitespace-only
	// text. The response is never handed to the repair parser.
	ErrEmptyResponse = eris.New("extract: model returned empty response")

	// ErrNoOffers reports the parsed wrapper object had no usable offers
	// collection (absent, wrong type, or zero length).
	ErrNoOffers = eris.New("extract: response has no offers collection")
)

// AllRecordsInvalidError reports that a response parsed successfully but
// every candidate record failed validation. Fatal to the attempt; the
// per-record warnings explain what was dropped and why.
type AllRecordsInvalidError struct {
	Candidates int
	Warnings   []string
}

func (e *AllRecordsInvalidError) Error() string {
	return fmt.Sprintf("extract: all %d candidate records failed validation", e.Candidates)
}

// RetriesExhaustedError is terminal: every attempt failed. It wraps the
// last underlying cause and records which stage it failed at, so operators
// can tell a transport failure from a malformed payload.
type RetriesExhaustedError struct {
	Attempts int
	Stage    string
	Cause    error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("extract: exhausted %d attempts, last failure at %s stage: %v", e.Attempts, e.Stage, e.Cause)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Cause
}
