package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store implementation. Callers branch on
// them with errors.Is; the postgres stores attach operation context by
// wrapping them in a StoreError.
var (
	// ErrNotFound is the generic form of the entity-specific not-found
	// errors below. IsNotFoundError matches all of them.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate signals that a write would violate a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity signals that an entity failed domain validation
	// before reaching the database. The wrapped error names the field.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed signals a transaction that could not begin or
	// commit. The work inside may or may not have run; callers must treat
	// the outcome as unknown.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrNoteNotFound reports a lookup for a note that does not exist.
	ErrNoteNotFound = fmt.Errorf("%w: note", ErrNotFound)

	// ErrJobNotFound reports a lookup for a job that does not exist.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrActiveJobExists reports that a note already has a pending or
	// processing job. The partial unique index on jobs enforces this;
	// admitting the same note twice maps here.
	ErrActiveJobExists = fmt.Errorf("%w: active job for note", ErrDuplicate)

	// ErrClaimConflict reports a claim that lost the race: another worker
	// holds the job, or it already left the pending state. It does not
	// wrap ErrDuplicate; claim races are routine and the queue moves on.
	ErrClaimConflict = errors.New("job claim conflict")
)

// IsNotFoundError reports whether err is, or wraps, a not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is, or wraps, a duplicate error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError names the entity and operation that failed so a log line can
// say which write broke without the caller assembling that context by hand.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %s", e.Operation, e.Entity, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError around err. A nil err is allowed when
// the failure has no underlying cause worth keeping.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
