package job

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
)

// Job type constants
const (
	// TypeNotePipeline represents the job type for running the full note
	// processing pipeline: transcription, extraction and embedding
	TypeNotePipeline = "note_pipeline"
)

// Job represents a unit of background work to be processed
// Version: 1.0
type Job interface {
	// ID returns the job's unique identifier, matching its stored record
	ID() uuid.UUID

	// NoteID returns the note this job processes
	NoteID() uuid.UUID

	// Type returns the job type identifier
	Type() string

	// Priority returns the scheduling priority
	Priority() domain.JobPriority

	// EnqueuedAt returns when the job was first enqueued, used for FIFO
	// ordering within a priority level
	EnqueuedAt() time.Time

	// Execute runs the job logic
	Execute(ctx context.Context) error
}

// QueueReader provides dequeue access to the job queue
// allowing workers to consume jobs without the ability to enqueue
// Version: 1.0
type QueueReader interface {
	// Dequeue blocks until a job is available, the context is done or the
	// queue is closed and drained
	Dequeue(ctx context.Context) (Job, error)

	// Len returns the number of jobs currently waiting
	Len() int
}

// QueueWriter provides enqueue access to the job queue
// allowing services to submit jobs for processing
// Version: 1.0
type QueueWriter interface {
	// Enqueue adds a job to the queue, failing when the queue is full
	// or already closed
	Enqueue(job Job) error

	// Close closes the job queue, preventing further job submission
	Close()
}

// Store defines the persistence the runner needs for job lifecycle
// Version: 1.0
type Store interface {
	// ClaimJob atomically moves a pending job to processing and returns the
	// updated record. Returns store.ErrClaimConflict if the job is not
	// pending anymore.
	ClaimJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// MarkCompleted moves a processing job to completed
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed moves a processing job to failed with the final error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// GetPendingJobs retrieves all pending jobs ordered by priority then
	// enqueue time
	GetPendingJobs(ctx context.Context) ([]*domain.Job, error)

	// ResetExpiredClaims moves processing jobs whose claim is older than the
	// given age back to pending and returns them. An age of zero resets every
	// processing job.
	ResetExpiredClaims(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error)
}

// Factory rebuilds executable jobs from stored records, used when reloading
// the queue after a restart or a claim sweep
// Version: 1.0
type Factory interface {
	FromRecord(rec *domain.Job) (Job, error)
}
