package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/api/shared"
	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/redact"
	"github.com/echoscribe/echoscribe-api/internal/service"
)

// NoteService defines the note operations the HTTP layer depends on.
// Implemented by service.NoteService.
// Version: 1.0
type NoteService interface {
	// SubmitNote stores a new note with its processing job and returns both.
	SubmitNote(ctx context.Context, audioRef string, priority domain.JobPriority) (*domain.Note, uuid.UUID, error)

	// EnqueueExisting creates a processing job for an already stored note.
	EnqueueExisting(ctx context.Context, noteID uuid.UUID, priority domain.JobPriority) (uuid.UUID, error)

	// GetNote loads a single note.
	GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error)

	// GetNoteStatus loads the processing status projection of a note.
	GetNoteStatus(ctx context.Context, noteID uuid.UUID) (*service.NoteStatusInfo, error)

	// RetryNote resets a failed note and enqueues a fresh job for it.
	RetryNote(ctx context.Context, noteID uuid.UUID) (uuid.UUID, error)

	// ListTasks returns the tasks extracted from a note.
	ListTasks(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error)
}

// Compile-time check that the concrete service satisfies the handler's view
// of it. The check lives here because the service package must not import api.
var _ NoteService = (*service.NoteService)(nil)

// SubmitNoteRequest represents the request body for submitting a new note
type SubmitNoteRequest struct {
	AudioRef string `json:"audio_ref" validate:"required,min=1"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

// EnqueueNoteRequest represents the optional request body for re-enqueueing a
// stored note
type EnqueueNoteRequest struct {
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

// JobAcceptedResponse is returned whenever a request queued background work
type JobAcceptedResponse struct {
	NoteID string `json:"note_id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// NoteResponse represents the response data for a note. The embedding vector
// itself is not exposed, only its dimension.
type NoteResponse struct {
	ID            string     `json:"id"`
	AudioRef      string     `json:"audio_ref"`
	Status        string     `json:"status"`
	Transcript    *string    `json:"transcript,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	ProviderUsed  *string    `json:"provider_used,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	EmbeddingDims int        `json:"embedding_dims"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TaskResponse represents the response data for an extracted task
type TaskResponse struct {
	ID          string     `json:"id"`
	NoteID      string     `json:"note_id"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Assignees   []string   `json:"assignees"`
	Position    int        `json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NoteHandler handles note-related HTTP requests
type NoteHandler struct {
	noteService NoteService
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(noteService NoteService, logger *slog.Logger) *NoteHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for NoteHandler")
	}

	return &NoteHandler{
		noteService: noteService,
		validator:   validator.New(),
		logger:      logger.With(slog.String("component", "note_handler")),
	}
}

// SubmitNote handles POST /api/notes requests. Processing is asynchronous, so
// a successful submission returns 202 Accepted with the note and job IDs.
func (h *NoteHandler) SubmitNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SubmitNoteRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	note, jobID, err := h.noteService.SubmitNote(r.Context(), req.AudioRef, parsePriority(req.Priority))
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to submit note"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("note submission accepted",
		slog.String("note_id", note.ID.String()),
		slog.String("job_id", jobID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{
		NoteID: note.ID.String(),
		JobID:  jobID.String(),
		Status: string(domain.JobStatusPending),
	})
}

// GetNote handles GET /api/notes/{id} requests
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	noteID, ok := h.notePathID(w, r)
	if !ok {
		return
	}

	note, err := h.noteService.GetNote(r.Context(), noteID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to load note"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("note loaded", slog.String("note_id", noteID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, noteToResponse(note))
}

// GetNoteStatus handles GET /api/notes/{id}/status requests. The projection
// is small enough for clients to poll while processing runs.
func (h *NoteHandler) GetNoteStatus(w http.ResponseWriter, r *http.Request) {
	noteID, ok := h.notePathID(w, r)
	if !ok {
		return
	}

	info, err := h.noteService.GetNoteStatus(r.Context(), noteID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to load note status"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, info)
}

// RetryNote handles POST /api/notes/{id}/retry requests. Only failed notes can
// be retried; the reset note re-enters the pipeline at normal priority.
func (h *NoteHandler) RetryNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	noteID, ok := h.notePathID(w, r)
	if !ok {
		return
	}

	jobID, err := h.noteService.RetryNote(r.Context(), noteID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to retry note"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("note retry accepted",
		slog.String("note_id", noteID.String()),
		slog.String("job_id", jobID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{
		NoteID: noteID.String(),
		JobID:  jobID.String(),
		Status: string(domain.JobStatusPending),
	})
}

// EnqueueNote handles POST /api/notes/{id}/enqueue requests. It queues
// processing for a stored note that has no active job, for example after a
// job row was cleaned up manually. Re-enqueueing a note that already has an
// active job returns that job instead of creating a duplicate. The request
// body is optional.
func (h *NoteHandler) EnqueueNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	noteID, ok := h.notePathID(w, r)
	if !ok {
		return
	}

	var req EnqueueNoteRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	jobID, err := h.noteService.EnqueueExisting(r.Context(), noteID, parsePriority(req.Priority))
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to enqueue note"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("note enqueue accepted",
		slog.String("note_id", noteID.String()),
		slog.String("job_id", jobID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{
		NoteID: noteID.String(),
		JobID:  jobID.String(),
		Status: string(domain.JobStatusPending),
	})
}

// ListTasks handles GET /api/notes/{id}/tasks requests
func (h *NoteHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	noteID, ok := h.notePathID(w, r)
	if !ok {
		return
	}

	tasks, err := h.noteService.ListTasks(r.Context(), noteID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to load tasks"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// notePathID extracts and parses the {id} path parameter. On failure it writes
// the error response itself and returns false.
func (h *NoteHandler) notePathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	log := logger.FromContext(r.Context())

	pathID := chi.URLParam(r, "id")
	if pathID == "" {
		log.Warn("note ID not found in URL path")
		shared.RespondWithError(w, r, http.StatusBadRequest, "Note ID is required")
		return uuid.Nil, false
	}

	noteID, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid note ID format", slog.String("note_id", pathID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid note ID format")
		return uuid.Nil, false
	}

	return noteID, true
}

// parsePriority maps the wire priority name to its domain level. Validation
// has already rejected anything outside the known names; an absent priority
// means normal.
func parsePriority(priority string) domain.JobPriority {
	switch priority {
	case "low":
		return domain.JobPriorityLow
	case "high":
		return domain.JobPriorityHigh
	default:
		return domain.JobPriorityNormal
	}
}

// noteToResponse converts a domain.Note to a NoteResponse
func noteToResponse(note *domain.Note) NoteResponse {
	return NoteResponse{
		ID:            note.ID.String(),
		AudioRef:      note.AudioRef,
		Status:        string(note.Status),
		Transcript:    note.Transcript,
		Summary:       note.Summary,
		ProviderUsed:  note.ProviderUsed,
		FailureReason: note.FailureReason,
		EmbeddingDims: len(note.Embedding),
		CreatedAt:     note.CreatedAt,
		UpdatedAt:     note.UpdatedAt,
	}
}

// taskToResponse converts a domain.NoteTask to a TaskResponse
func taskToResponse(task *domain.NoteTask) TaskResponse {
	assignees := task.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	return TaskResponse{
		ID:          task.ID.String(),
		NoteID:      task.NoteID.String(),
		Description: task.Description,
		Priority:    string(task.Priority),
		Deadline:    task.Deadline,
		Assignees:   assignees,
		Position:    task.Position,
		CreatedAt:   task.CreatedAt,
	}
}
