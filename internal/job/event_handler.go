package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
)

// Submitter accepts runtime jobs for background processing.
type Submitter interface {
	Submit(ctx context.Context, j Job) error
}

// JobRequestEventHandler implements the events.EventHandler interface to turn
// job request events into queued runtime jobs. Services emit those events
// after persisting the job record, which keeps them decoupled from the queue
// and worker machinery.
type JobRequestEventHandler struct {
	factory   *NoteJobFactory
	submitter Submitter
	logger    *slog.Logger
}

// NewJobRequestEventHandler creates a new event handler that uses the given
// factory to build jobs and submits them to the provided submitter.
func NewJobRequestEventHandler(
	factory *NoteJobFactory,
	submitter Submitter,
	logger *slog.Logger,
) *JobRequestEventHandler {
	return &JobRequestEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With("component", "job_request_event_handler"),
	}
}

// notePipelinePayload mirrors the payload services attach to note pipeline
// job request events.
type notePipelinePayload struct {
	JobID      string    `json:"job_id"`
	NoteID     string    `json:"note_id"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// HandleEvent processes job request events by building and submitting jobs.
func (h *JobRequestEventHandler) HandleEvent(
	ctx context.Context,
	event *events.JobRequestEvent,
) error {
	if event.Type != TypeNotePipeline {
		h.logger.Debug("skipping event, type not handled",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload notePipelinePayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("payload unmarshal failed", "error", err, "event_id", event.ID)
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		h.logger.Error("invalid job ID",
			"error", err,
			"job_id", payload.JobID,
			"event_id", event.ID)
		return fmt.Errorf("invalid job ID: %w", err)
	}

	noteID, err := uuid.Parse(payload.NoteID)
	if err != nil {
		h.logger.Error("invalid note ID",
			"error", err,
			"note_id", payload.NoteID,
			"event_id", event.ID)
		return fmt.Errorf("invalid note ID: %w", err)
	}

	enqueuedAt := payload.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = event.CreatedAt
	}

	rec := &domain.Job{
		ID:         jobID,
		NoteID:     noteID,
		Priority:   domain.JobPriority(payload.Priority),
		EnqueuedAt: enqueuedAt,
	}

	j, err := h.factory.ForEvent(rec, event.TraceID)
	if err != nil {
		h.logger.Error("failed to create job",
			"error", err,
			"job_id", jobID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create job: %w", err)
	}

	if err := h.submitter.Submit(ctx, j); err != nil {
		h.logger.Error("failed to submit job",
			"error", err,
			"job_id", jobID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit job: %w", err)
	}

	h.logger.Info("job submitted for processing",
		"job_id", jobID,
		"note_id", noteID,
		"event_id", event.ID)
	return nil
}

// Ensure JobRequestEventHandler implements events.EventHandler
var _ events.EventHandler = (*JobRequestEventHandler)(nil)
