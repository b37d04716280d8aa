package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/google/uuid"
)

// JobStore defines the interface for processing job persistence.
// Version: 1.0
type JobStore interface {
	// CreateJob saves a new job to the store.
	// Returns ErrActiveJobExists if the note already has a pending or
	// processing job; callers treat that as a successful no-op enqueue.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// GetActiveByNoteID retrieves the pending or processing job for a note,
	// if one exists. Returns ErrJobNotFound otherwise.
	GetActiveByNoteID(ctx context.Context, noteID uuid.UUID) (*domain.Job, error)

	// ClaimJob atomically moves a pending job to processing, stamps the claim
	// time and increments the attempt count. Returns the updated job.
	// Returns ErrClaimConflict if the job is not pending, which means another
	// worker claimed it first or it was already resolved.
	ClaimJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// MarkCompleted moves a processing job to completed and clears its claim.
	// Returns ErrJobNotFound if the job does not exist.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed moves a processing job to failed and records the final error.
	// Returns ErrJobNotFound if the job does not exist.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// GetPendingJobs retrieves all pending jobs ordered by priority then
	// enqueue time. Used on startup to reload the in-memory queue.
	GetPendingJobs(ctx context.Context) ([]*domain.Job, error)

	// ResetExpiredClaims atomically moves processing jobs whose claim is older
	// than the given age back to pending and returns the reset jobs. Each
	// expired job is returned by exactly one caller even when sweeps overlap.
	ResetExpiredClaims(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
