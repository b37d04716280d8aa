package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/job"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// NoteStatusInfo is the status projection returned to polling clients. It
// carries the failure reason and winning provider alongside the bare status
// so a client never needs the full note just to render progress.
type NoteStatusInfo struct {
	NoteID        uuid.UUID         `json:"note_id"`
	Status        domain.NoteStatus `json:"status"`
	ProviderUsed  *string           `json:"provider_used,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// jobRequestPayload is the event payload the job request handler consumes.
type jobRequestPayload struct {
	JobID      string    `json:"job_id"`
	NoteID     string    `json:"note_id"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NoteService provides note submission, status polling and retry operations.
// It persists job records before emitting job request events, so a lost event
// at worst delays processing until startup recovery re-enqueues the job.
type NoteService struct {
	db      *sql.DB
	notes   store.NoteStore
	jobs    store.JobStore
	tasks   store.TaskStore
	emitter events.EventEmitter
	logger  *slog.Logger

	// runTx is swappable so unit tests can run transactional paths without a
	// live database
	runTx func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewNoteService creates a new NoteService. Every dependency is required; a
// nil one is a wiring mistake and is reported as an error.
func NewNoteService(
	db *sql.DB,
	notes store.NoteStore,
	jobs store.JobStore,
	tasks store.TaskStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*NoteService, error) {
	if db == nil {
		return nil, errors.New("note service requires a database handle")
	}
	if notes == nil {
		return nil, errors.New("note service requires a note store")
	}
	if jobs == nil {
		return nil, errors.New("note service requires a job store")
	}
	if tasks == nil {
		return nil, errors.New("note service requires a task store")
	}
	if emitter == nil {
		return nil, errors.New("note service requires an event emitter")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NoteService{
		db:      db,
		notes:   notes,
		jobs:    jobs,
		tasks:   tasks,
		emitter: emitter,
		logger:  logger.With("component", "note_service"),
		runTx:   store.RunInTransaction,
	}, nil
}

// SubmitNote admits a new recording: it creates the note in the pending state
// together with its processing job in one transaction, then emits the job
// request event that puts the job on the queue.
func (s *NoteService) SubmitNote(
	ctx context.Context,
	audioRef string,
	priority domain.JobPriority,
) (*domain.Note, uuid.UUID, error) {
	note, err := domain.NewNote(audioRef)
	if err != nil {
		s.logger.Warn("rejected note submission", "error", err)
		return nil, uuid.Nil, NewNoteServiceError("submit_note", "invalid note", err)
	}

	rec, err := domain.NewJob(note.ID, audioRef, priority)
	if err != nil {
		s.logger.Warn("rejected note submission", "error", err, "note_id", note.ID)
		return nil, uuid.Nil, NewNoteServiceError("submit_note", "invalid job", err)
	}

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.notes.WithTx(tx).Create(ctx, note); err != nil {
			return NewNoteServiceError("submit_note", "failed to save note", err)
		}
		if err := s.jobs.WithTx(tx).CreateJob(ctx, rec); err != nil {
			return NewNoteServiceError("submit_note", "failed to save job", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to persist note submission",
			"error", err,
			"note_id", note.ID)
		return nil, uuid.Nil, err
	}

	s.logger.Info("note submitted",
		"note_id", note.ID,
		"job_id", rec.ID,
		"priority", int(rec.Priority))

	s.emitJobRequest(ctx, rec)
	return note, rec.ID, nil
}

// EnqueueExisting creates a processing job for a note that is already stored.
// When the note already has an active job the call is an idempotent no-op
// that returns the active job's ID, so double submission never costs a second
// transcription.
func (s *NoteService) EnqueueExisting(
	ctx context.Context,
	noteID uuid.UUID,
	priority domain.JobPriority,
) (uuid.UUID, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return uuid.Nil, NewNoteServiceError("enqueue_job", "failed to load note", err)
	}
	if note.IsTerminal() {
		return uuid.Nil, ErrNoteTerminal
	}

	rec, err := domain.NewJob(note.ID, note.AudioRef, priority)
	if err != nil {
		return uuid.Nil, NewNoteServiceError("enqueue_job", "invalid job", err)
	}

	if err := s.jobs.CreateJob(ctx, rec); err != nil {
		if errors.Is(err, store.ErrActiveJobExists) {
			active, lookupErr := s.jobs.GetActiveByNoteID(ctx, noteID)
			if lookupErr != nil {
				// The active job resolved between the insert and the lookup
				return uuid.Nil, NewNoteServiceError(
					"enqueue_job", "active job disappeared during enqueue", lookupErr)
			}
			s.logger.Debug("note already has an active job",
				"note_id", noteID,
				"job_id", active.ID)
			return active.ID, nil
		}
		return uuid.Nil, NewNoteServiceError("enqueue_job", "failed to save job", err)
	}

	s.logger.Info("job enqueued for existing note",
		"note_id", noteID,
		"job_id", rec.ID)

	s.emitJobRequest(ctx, rec)
	return rec.ID, nil
}

// GetNote retrieves a note by its ID.
func (s *NoteService) GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, NewNoteServiceError("get_note", "failed to load note", err)
	}
	return note, nil
}

// GetNoteStatus retrieves the processing status projection for a note.
func (s *NoteService) GetNoteStatus(ctx context.Context, noteID uuid.UUID) (*NoteStatusInfo, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, NewNoteServiceError("get_note_status", "failed to load note", err)
	}

	return &NoteStatusInfo{
		NoteID:        note.ID,
		Status:        note.Status,
		ProviderUsed:  note.ProviderUsed,
		FailureReason: note.FailureReason,
		UpdatedAt:     note.UpdatedAt,
	}, nil
}

// RetryNote resets a failed note back to pending, clears its derived fields
// and enqueues a fresh job, all in one transaction. Only failed notes can be
// retried. Retries run at normal priority.
func (s *NoteService) RetryNote(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return uuid.Nil, NewNoteServiceError("retry_note", "failed to load note", err)
	}

	if err := note.ResetForRetry(); err != nil {
		s.logger.Warn("rejected note retry",
			"error", err,
			"note_id", noteID,
			"status", note.Status)
		return uuid.Nil, NewNoteServiceError("retry_note", "note cannot be retried", err)
	}

	rec, err := domain.NewJob(note.ID, note.AudioRef, domain.JobPriorityNormal)
	if err != nil {
		return uuid.Nil, NewNoteServiceError("retry_note", "invalid job", err)
	}

	err = s.runTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.notes.WithTx(tx).Update(ctx, note); err != nil {
			return NewNoteServiceError("retry_note", "failed to reset note", err)
		}
		// Concurrent retries race on the active-job index; the loser rolls
		// back here and reports the conflict
		if err := s.jobs.WithTx(tx).CreateJob(ctx, rec); err != nil {
			return NewNoteServiceError("retry_note", "failed to save job", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to persist note retry",
			"error", err,
			"note_id", noteID)
		return uuid.Nil, err
	}

	s.logger.Info("note queued for retry",
		"note_id", noteID,
		"job_id", rec.ID)

	s.emitJobRequest(ctx, rec)
	return rec.ID, nil
}

// ListTasks retrieves the tasks extracted from a note, ordered by position.
func (s *NoteService) ListTasks(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error) {
	if _, err := s.notes.GetByID(ctx, noteID); err != nil {
		return nil, NewNoteServiceError("list_tasks", "failed to load note", err)
	}

	tasks, err := s.tasks.ListByNoteID(ctx, noteID)
	if err != nil {
		return nil, NewNoteServiceError("list_tasks", "failed to load tasks", err)
	}
	return tasks, nil
}

// emitJobRequest publishes the job request event for a persisted job record.
// Emission failures are logged, not returned: the record is already durable
// and pending, so startup recovery will enqueue it even if no handler does.
func (s *NoteService) emitJobRequest(ctx context.Context, rec *domain.Job) {
	payload := jobRequestPayload{
		JobID:      rec.ID.String(),
		NoteID:     rec.NoteID.String(),
		Priority:   int(rec.Priority),
		EnqueuedAt: rec.EnqueuedAt,
	}

	event, err := events.NewJobRequestEvent(ctx, job.TypeNotePipeline, payload)
	if err != nil {
		s.logger.Error("failed to build job request event",
			"error", err,
			"job_id", rec.ID)
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Warn("job request event not delivered, job stays pending until recovery",
			"error", err,
			"job_id", rec.ID,
			"note_id", rec.NoteID,
			"event_id", event.ID)
	}
}
