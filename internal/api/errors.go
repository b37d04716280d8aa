package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/service"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// MapErrorToStatusCode translates service and store errors into HTTP status
// codes. Anything unrecognized is a 500 so internal failures never masquerade
// as client mistakes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrNoteNotFound),
		errors.Is(err, store.ErrNoteNotFound):
		return http.StatusNotFound

	// The note's current state rejects the operation.
	case errors.Is(err, service.ErrNoteNotRetryable),
		errors.Is(err, service.ErrNoteTerminal),
		errors.Is(err, service.ErrActiveJob):
		return http.StatusConflict

	case errors.Is(err, domain.ErrEmptyNoteAudioRef),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client-facing message for an error. Known
// errors get a specific message; everything else collapses into a generic one
// so internal details never leak through a response body.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrNoteNotFound),
		errors.Is(err, store.ErrNoteNotFound):
		return "Note not found"

	case errors.Is(err, service.ErrNoteNotRetryable):
		return "Note is not in a failed state"

	case errors.Is(err, service.ErrNoteTerminal):
		return "Note has already finished processing"

	case errors.Is(err, service.ErrActiveJob):
		return "Note already has an active job"

	case errors.Is(err, domain.ErrEmptyNoteAudioRef):
		return "Audio reference is required"

	case errors.Is(err, domain.ErrInvalidPriority):
		return "Invalid priority"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short client-safe
// message naming the offending field, without echoing the submitted value
// back.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	// Report the first violation only; one actionable problem at a time.
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe.Tag()))
}

// validationTagMessage maps validation tags to user-friendly phrasing.
func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
