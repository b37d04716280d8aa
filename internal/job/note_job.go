package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// Common errors
var (
	ErrNilPipeline = errors.New("pipeline cannot be nil")
	ErrNilLogger   = errors.New("logger cannot be nil")
	ErrNilRecord   = errors.New("job record cannot be nil")
	ErrEmptyJobID  = errors.New("job ID cannot be empty")
	ErrEmptyNoteID = errors.New("note ID cannot be empty")
)

// Pipeline defines the interface for running the note processing pipeline.
// The job package only needs to start a run; stage progression, persistence
// and the wall clock budget live behind this boundary.
type Pipeline interface {
	// ProcessNote runs the full pipeline for the note, recording provider
	// attempts under the given job ID
	ProcessNote(ctx context.Context, jobID, noteID uuid.UUID) error
}

// NoteJob implements the Job interface for running the processing pipeline
// on one note
type NoteJob struct {
	id         uuid.UUID
	noteID     uuid.UUID
	priority   domain.JobPriority
	enqueuedAt time.Time
	traceID    string
	pipeline   Pipeline
	logger     *slog.Logger
}

// NewNoteJob creates a runtime job for a stored job record. traceID may be
// empty, in which case the job runs under a fresh trace.
func NewNoteJob(
	rec *domain.Job,
	traceID string,
	pipeline Pipeline,
	log *slog.Logger,
) (*NoteJob, error) {
	// Validate dependencies
	if pipeline == nil {
		return nil, ErrNilPipeline
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	// Validate the record
	if rec == nil {
		return nil, ErrNilRecord
	}
	if rec.ID == uuid.Nil {
		return nil, ErrEmptyJobID
	}
	if rec.NoteID == uuid.Nil {
		return nil, ErrEmptyNoteID
	}

	return &NoteJob{
		id:         rec.ID,
		noteID:     rec.NoteID,
		priority:   rec.Priority,
		enqueuedAt: rec.EnqueuedAt,
		traceID:    traceID,
		pipeline:   pipeline,
		logger:     log.With("job_type", TypeNotePipeline, "note_id", rec.NoteID),
	}, nil
}

// ID returns the job's unique identifier
func (j *NoteJob) ID() uuid.UUID {
	return j.id
}

// NoteID returns the note this job processes
func (j *NoteJob) NoteID() uuid.UUID {
	return j.noteID
}

// Type returns the job type identifier
func (j *NoteJob) Type() string {
	return TypeNotePipeline
}

// Priority returns the scheduling priority
func (j *NoteJob) Priority() domain.JobPriority {
	return j.priority
}

// EnqueuedAt returns when the job was first enqueued
func (j *NoteJob) EnqueuedAt() time.Time {
	return j.enqueuedAt
}

// Execute runs the pipeline for this job's note. It restores the trace the
// job was submitted under so background logs correlate with the original
// request, then delegates to the pipeline.
func (j *NoteJob) Execute(ctx context.Context) error {
	traceID := j.traceID
	if traceID == "" {
		traceID = track.NewTraceID()
	}
	ctx = track.WithTraceID(ctx, traceID)

	log := j.logger.With(slog.String("trace_id", traceID))
	ctx = logger.WithContext(ctx, log)

	// Check for cancellation before starting a long pipeline run
	if err := ctx.Err(); err != nil {
		log.Error("job cancelled by context", "error", err)
		return fmt.Errorf("job cancelled by context: %w", err)
	}

	log.Info("starting note pipeline job")

	if err := j.pipeline.ProcessNote(ctx, j.id, j.noteID); err != nil {
		log.Error("note pipeline failed", "error", err)
		return fmt.Errorf("note pipeline failed: %w", err)
	}

	log.Info("note pipeline job completed")
	return nil
}
