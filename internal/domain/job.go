package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a queued pipeline job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobPriority orders jobs in the queue. Higher values are dequeued first;
// ties break by enqueue time.
type JobPriority int

// Job priority levels accepted on submission.
const (
	JobPriorityLow    JobPriority = 0
	JobPriorityNormal JobPriority = 1
	JobPriorityHigh   JobPriority = 2
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobNoteID   = errors.New("job note ID cannot be empty")
	ErrEmptyJobAudioRef = errors.New("job audio reference cannot be empty")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrInvalidPriority  = errors.New("invalid job priority")
)

// Job is one unit of pipeline work tied to a single uploaded note. The queue
// owns a job exclusively until a worker claims it; the claiming worker owns it
// until a terminal status or until the claim expires and the sweeper resets it.
type Job struct {
	ID           uuid.UUID   `json:"id"`
	NoteID       uuid.UUID   `json:"note_id"`
	AudioRef     string      `json:"audio_ref"`
	Priority     JobPriority `json:"priority"`
	Status       JobStatus   `json:"status"`
	AttemptCount int         `json:"attempt_count"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
	ClaimedAt    *time.Time  `json:"claimed_at,omitempty"`
	LastError    *string     `json:"last_error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewJob creates a pending job for the given note.
func NewJob(noteID uuid.UUID, audioRef string, priority JobPriority) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:         uuid.New(),
		NoteID:     noteID,
		AudioRef:   audioRef,
		Priority:   priority,
		Status:     JobStatusPending,
		EnqueuedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.NoteID == uuid.Nil {
		return ErrEmptyJobNoteID
	}

	if j.AudioRef == "" {
		return ErrEmptyJobAudioRef
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if !isValidJobPriority(j.Priority) {
		return ErrInvalidPriority
	}

	return nil
}

// IsActive reports whether the job still occupies the single active slot for
// its note (pending or claimed by a worker).
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// isValidJobPriority checks if the given priority is a known level.
func isValidJobPriority(p JobPriority) bool {
	switch p {
	case JobPriorityLow, JobPriorityNormal, JobPriorityHigh:
		return true
	default:
		return false
	}
}
