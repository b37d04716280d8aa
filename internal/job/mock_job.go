package job

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
)

// MockJob is a simple implementation of the Job interface for testing
type MockJob struct {
	JobID         uuid.UUID
	JobNoteID     uuid.UUID
	JobType       string
	JobPriority   domain.JobPriority
	JobEnqueuedAt time.Time
	ExecuteFn     func(ctx context.Context) error
}

// NewMockJob creates a new MockJob for the given note with a no-op Execute
func NewMockJob(id, noteID uuid.UUID, priority domain.JobPriority) *MockJob {
	return &MockJob{
		JobID:         id,
		JobNoteID:     noteID,
		JobType:       TypeNotePipeline,
		JobPriority:   priority,
		JobEnqueuedAt: time.Now().UTC(),
		ExecuteFn:     func(ctx context.Context) error { return nil },
	}
}

// ID returns the job's unique identifier
func (j *MockJob) ID() uuid.UUID {
	return j.JobID
}

// NoteID returns the note this job processes
func (j *MockJob) NoteID() uuid.UUID {
	return j.JobNoteID
}

// Type returns the job type identifier
func (j *MockJob) Type() string {
	return j.JobType
}

// Priority returns the scheduling priority
func (j *MockJob) Priority() domain.JobPriority {
	return j.JobPriority
}

// EnqueuedAt returns when the job was first enqueued
func (j *MockJob) EnqueuedAt() time.Time {
	return j.JobEnqueuedAt
}

// Execute runs the job logic
func (j *MockJob) Execute(ctx context.Context) error {
	return j.ExecuteFn(ctx)
}

// CreateMockJob is a helper that creates a MockJob with fresh IDs
func CreateMockJob(priority domain.JobPriority) *MockJob {
	return NewMockJob(uuid.New(), uuid.New(), priority)
}
