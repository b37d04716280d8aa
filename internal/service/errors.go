package service

import (
	"errors"
	"fmt"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// Sentinel errors shared by the note service operations. Callers check for
// these with errors.Is(); the API layer maps them to HTTP status codes.
var (
	// ErrNoteNotFound indicates that the note does not exist. Maps to 404.
	ErrNoteNotFound = errors.New("note not found")

	// ErrNoteNotRetryable indicates a retry was requested for a note that is
	// not in the failed state. Maps to 409.
	ErrNoteNotRetryable = errors.New("note is not in a failed state")

	// ErrNoteTerminal indicates an enqueue was requested for a note that
	// already reached done or failed. Terminal notes only re-enter the
	// pipeline through an explicit retry. Maps to 409.
	ErrNoteTerminal = errors.New("note already reached a terminal state")

	// ErrActiveJob indicates the note already has a pending or processing job
	// where only one may exist. Maps to 409.
	ErrActiveJob = errors.New("note already has an active job")
)

// NoteServiceError wraps unexpected errors from the note service with the
// operation that failed.
type NoteServiceError struct {
	Operation string // "submit_note", "retry_note", ...
	Message   string
	Err       error
}

// Error implements the error interface for NoteServiceError.
func (e *NoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("note service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("note service %s failed: %s", e.Operation, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *NoteServiceError) Unwrap() error {
	return e.Err
}

// NewNoteServiceError creates a new NoteServiceError. Known sentinel
// conditions are mapped to the service sentinels and returned directly
// without wrapping, so callers get a stable errors.Is target.
func NewNoteServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNoteNotFound),
		errors.Is(err, ErrNoteNotRetryable),
		errors.Is(err, ErrNoteTerminal),
		errors.Is(err, ErrActiveJob):
		return err
	case errors.Is(err, store.ErrNoteNotFound):
		return ErrNoteNotFound
	case errors.Is(err, store.ErrActiveJobExists):
		return ErrActiveJob
	case errors.Is(err, domain.ErrNoteNotRetryable):
		return ErrNoteNotRetryable
	}

	return &NoteServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
