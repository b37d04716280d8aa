package store

import (
	"context"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore defines the interface for provider attempt audit records.
// Records are append-only; they are never updated or deleted.
// Version: 1.0
type AttemptStore interface {
	// Record saves a provider attempt.
	Record(ctx context.Context, attempt *domain.ProviderAttempt) error

	// ListByJobID retrieves every attempt made for a job ordered by start time.
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*domain.ProviderAttempt, error)

	// ListByNoteID retrieves every attempt made for a note across all of its
	// jobs, ordered by start time.
	ListByNoteID(ctx context.Context, noteID uuid.UUID) ([]*domain.ProviderAttempt, error)
}
