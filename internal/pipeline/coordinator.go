package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/redact"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// TypeNoteTerminal is the event type emitted when a note reaches DONE or
// FAILED. A notification dispatcher can subscribe to it; the in-repo
// subscriber only logs.
const TypeNoteTerminal = "note_terminal"

// failWriteTimeout bounds the failure write that runs after the pipeline
// budget is already spent.
const failWriteTimeout = 10 * time.Second

// NoteTerminalPayload is the payload of TypeNoteTerminal events.
type NoteTerminalPayload struct {
	NoteID        string `json:"note_id"`
	Status        string `json:"status"`
	Provider      string `json:"provider,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// NotePersister is the persistence the coordinator needs between stages. The
// service layer implements it on top of the stores so multi-row writes
// happen in one transaction.
// Version: 1.0
type NotePersister interface {
	// GetNote loads the note.
	GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error)

	// SaveStatus persists the note's current status and failure fields.
	SaveStatus(ctx context.Context, note *domain.Note) error

	// SaveTranscript persists the transcript, the provider that produced it
	// and the advance to the extraction stage in one write.
	SaveTranscript(ctx context.Context, note *domain.Note) error

	// SaveExtraction persists the summary, replaces the note's tasks and
	// advances to the embedding stage, all in one transaction.
	SaveExtraction(ctx context.Context, note *domain.Note, tasks []*domain.NoteTask) error

	// SaveCompletion persists the embedding, which may be empty, and the
	// terminal DONE status.
	SaveCompletion(ctx context.Context, note *domain.Note) error
}

// Coordinator drives one note through the pipeline state machine. Every
// stage's output is persisted before the next stage starts, so a rerun after
// a crash resumes from the last completed stage; stage writes are idempotent
// so re-running a stage is safe.
type Coordinator struct {
	notes       NotePersister
	audio       AudioResolver
	transcriber *TranscriptionOrchestrator
	extractor   *StructuredExtractor
	embedder    *EmbeddingStage
	emitter     events.EventEmitter
	metrics     *track.Metrics
	budget      time.Duration
}

// NewCoordinator creates a pipeline coordinator. embedder may be nil, which
// disables the embedding stage; emitter and metrics may be nil. budget is
// the wall clock limit for one full run.
func NewCoordinator(
	notes NotePersister,
	audio AudioResolver,
	transcriber *TranscriptionOrchestrator,
	extractor *StructuredExtractor,
	embedder *EmbeddingStage,
	emitter events.EventEmitter,
	metrics *track.Metrics,
	budget time.Duration,
) (*Coordinator, error) {
	if notes == nil {
		return nil, errors.New("coordinator requires a note persister")
	}
	if audio == nil {
		return nil, errors.New("coordinator requires an audio resolver")
	}
	if transcriber == nil {
		return nil, errors.New("coordinator requires a transcription orchestrator")
	}
	if extractor == nil {
		return nil, errors.New("coordinator requires a structured extractor")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("coordinator wall clock budget must be positive, got %s", budget)
	}

	return &Coordinator{
		notes:       notes,
		audio:       audio,
		transcriber: transcriber,
		extractor:   extractor,
		embedder:    embedder,
		emitter:     emitter,
		metrics:     metrics,
		budget:      budget,
	}, nil
}

// ProcessNote runs the pipeline for one note under the wall clock budget.
// Terminal notes are left untouched; non-terminal notes resume from the
// stage recorded in their status.
func (c *Coordinator) ProcessNote(ctx context.Context, jobID, noteID uuid.UUID) error {
	log := logger.FromContext(ctx)

	start := time.Now()
	if c.metrics != nil {
		defer func() { c.metrics.Observe(track.LatencyPipeline, time.Since(start)) }()
	}

	// The whole run shares one wall clock budget
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	note, err := c.notes.GetNote(ctx, noteID)
	if err != nil {
		return fmt.Errorf("failed to load note: %w", err)
	}

	switch note.Status {
	case domain.NoteStatusDone:
		log.Info("note already processed, nothing to do")
		return nil
	case domain.NoteStatusFailed:
		log.Warn("note already failed, not reprocessing without an explicit retry")
		return nil
	}

	if note.Status == domain.NoteStatusPending {
		if err := c.advance(ctx, note, domain.NoteStatusTranscribing); err != nil {
			return c.fail(ctx, note, err)
		}
	}

	if note.Status == domain.NoteStatusTranscribing {
		if err := c.runTranscription(ctx, jobID, note); err != nil {
			return c.fail(ctx, note, err)
		}
	}

	if note.Status == domain.NoteStatusExtracting {
		if err := c.runExtraction(ctx, jobID, note); err != nil {
			return c.fail(ctx, note, err)
		}
	}

	if note.Status == domain.NoteStatusEmbedding {
		if err := c.runEmbedding(ctx, jobID, note); err != nil {
			return c.fail(ctx, note, err)
		}
	}

	log.Info("note pipeline finished",
		"status", note.Status,
		"duration", time.Since(start))
	c.emitTerminal(ctx, note)
	return nil
}

// advance moves the note along one state machine edge and persists it.
func (c *Coordinator) advance(ctx context.Context, note *domain.Note, next domain.NoteStatus) error {
	if err := note.TransitionTo(next); err != nil {
		return fmt.Errorf("cannot advance note from %s to %s: %w", note.Status, next, err)
	}
	if err := c.notes.SaveStatus(ctx, note); err != nil {
		return fmt.Errorf("failed to persist status %s: %w", next, err)
	}
	return nil
}

func (c *Coordinator) runTranscription(ctx context.Context, jobID uuid.UUID, note *domain.Note) error {
	log := logger.FromContext(ctx)
	start := time.Now()

	audio, err := c.audio.Resolve(ctx, note.AudioRef)
	if err != nil {
		return fmt.Errorf("failed to resolve audio source: %w", err)
	}

	result, err := c.transcriber.Transcribe(ctx, jobID, note.ID, audio)
	if c.metrics != nil {
		c.metrics.Observe(track.LatencyTranscription, time.Since(start))
	}
	if err != nil {
		return err
	}

	note.SetTranscript(result.Text, result.Provider)
	if err := note.TransitionTo(domain.NoteStatusExtracting); err != nil {
		return fmt.Errorf("cannot advance note to extraction: %w", err)
	}
	if err := c.notes.SaveTranscript(ctx, note); err != nil {
		return fmt.Errorf("failed to persist transcript: %w", err)
	}

	log.Info("transcription stage complete",
		"provider", result.Provider,
		"transcript_chars", len(result.Text))
	return nil
}

func (c *Coordinator) runExtraction(ctx context.Context, jobID uuid.UUID, note *domain.Note) error {
	log := logger.FromContext(ctx)

	if note.Transcript == nil {
		// The extracting status is only ever written together with the
		// transcript, so this row was modified outside the pipeline
		return errors.New("note is in extracting state without a transcript")
	}

	start := time.Now()
	result, err := c.extractor.Extract(ctx, jobID, note.ID, *note.Transcript)
	if c.metrics != nil {
		c.metrics.Observe(track.LatencyExtraction, time.Since(start))
	}
	if err != nil {
		return err
	}

	tasks, err := result.DomainTasks(note.ID)
	if err != nil {
		return fmt.Errorf("failed to build tasks from extraction: %w", err)
	}

	note.SetSummary(result.Summary)
	if err := note.TransitionTo(domain.NoteStatusEmbedding); err != nil {
		return fmt.Errorf("cannot advance note to embedding: %w", err)
	}
	if err := c.notes.SaveExtraction(ctx, note, tasks); err != nil {
		return fmt.Errorf("failed to persist extraction: %w", err)
	}

	log.Info("extraction stage complete", "task_count", len(tasks))
	return nil
}

// runEmbedding computes the note vector and completes the note. Provider
// failures here are logged and swallowed; only running out of budget or a
// failed completion write can still fail the note.
func (c *Coordinator) runEmbedding(ctx context.Context, jobID uuid.UUID, note *domain.Note) error {
	log := logger.FromContext(ctx)

	switch {
	case c.embedder == nil:
		log.Debug("no embedding provider configured, skipping stage")
	case note.Transcript == nil:
		log.Warn("note has no transcript to embed, skipping stage")
	default:
		start := time.Now()
		vector, err := c.embedder.Embed(ctx, jobID, note.ID, *note.Transcript)
		if c.metrics != nil {
			c.metrics.Observe(track.LatencyEmbedding, time.Since(start))
		}
		switch {
		case err == nil:
			note.SetEmbedding(vector)
		case ctx.Err() != nil:
			// Out of budget; report that rather than finish without a vector
			return err
		default:
			log.Warn("embedding failed, finishing note without a vector",
				"error", redact.Error(err))
		}
	}

	if err := note.TransitionTo(domain.NoteStatusDone); err != nil {
		return fmt.Errorf("cannot complete note: %w", err)
	}
	if err := c.notes.SaveCompletion(ctx, note); err != nil {
		return fmt.Errorf("failed to persist completion: %w", err)
	}
	return nil
}

// fail persists the failed terminal state and returns the error that caused
// it. Cancellation is passed through without persisting anything: the note
// keeps its current stage and the rerun after restart resumes there.
func (c *Coordinator) fail(ctx context.Context, note *domain.Note, cause error) error {
	log := logger.FromContext(ctx)

	switch ctx.Err() {
	case context.Canceled:
		return cause
	case context.DeadlineExceeded:
		cause = &TimeoutError{Budget: c.budget, Stage: stageOf(note.Status)}
	}

	reason := redact.Error(cause)
	if err := note.MarkFailed(reason); err != nil {
		log.Error("cannot mark note failed",
			"status", note.Status,
			"error", err)
		return cause
	}

	// The run's context may be past its deadline already; the failure write
	// gets a deadline of its own while keeping the run's values
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	if err := c.notes.SaveStatus(persistCtx, note); err != nil {
		log.Error("failed to persist note failure", "error", err)
	}

	log.Error("note pipeline failed", "reason", reason)
	c.emitTerminal(persistCtx, note)
	return cause
}

// stageOf maps a mid-pipeline note status to the stage running in it.
func stageOf(status domain.NoteStatus) string {
	switch status {
	case domain.NoteStatusTranscribing:
		return string(domain.StageTranscription)
	case domain.NoteStatusExtracting:
		return string(domain.StageExtraction)
	case domain.NoteStatusEmbedding:
		return string(domain.StageEmbedding)
	default:
		return ""
	}
}

func (c *Coordinator) emitTerminal(ctx context.Context, note *domain.Note) {
	if c.emitter == nil {
		return
	}

	payload := NoteTerminalPayload{
		NoteID: note.ID.String(),
		Status: string(note.Status),
	}
	if note.ProviderUsed != nil {
		payload.Provider = *note.ProviderUsed
	}
	if note.FailureReason != nil {
		payload.FailureReason = *note.FailureReason
	}

	event, err := events.NewJobRequestEvent(ctx, TypeNoteTerminal, payload)
	if err != nil {
		logger.FromContext(ctx).Error("failed to build terminal event", "error", err)
		return
	}
	if err := c.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Error("failed to emit terminal event", "error", err)
	}
}
