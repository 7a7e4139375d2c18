package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/lecturemate/backend/internal/acquisition"
)

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// FailureMessage is the human-readable reason stored on a failed lecture.
func FailureMessage(err error) string {
	var ae *acquisition.Error
	switch {
	case errors.Is(err, ErrEmptyTranscript):
		return "No transcript text found"
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Processing was interrupted"
	}
	var se *StageError
	if errors.As(err, &se) {
		return fmt.Sprintf("Failed to generate %s", se.Stage)
	}
	return "Processing failed"
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Retryable reports whether a failed Run left the lecture untouched and may be retried.
// Failures that already marked the lecture failed are final.
func Retryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
