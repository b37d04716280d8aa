package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome classifies how a single provider attempt ended.
type AttemptOutcome string

// Possible attempt outcomes. RateLimited covers local admission denial (the
// provider was never called); Skipped covers providers never reached because
// an earlier one already succeeded.
const (
	AttemptOutcomeSuccess     AttemptOutcome = "success"
	AttemptOutcomeError       AttemptOutcome = "error"
	AttemptOutcomeRateLimited AttemptOutcome = "rate_limited"
	AttemptOutcomeSkipped     AttemptOutcome = "skipped"
)

// PipelineStage names the stage a provider attempt belongs to.
type PipelineStage string

// Pipeline stages that invoke providers.
const (
	StageTranscription PipelineStage = "transcription"
	StageExtraction    PipelineStage = "extraction"
	StageEmbedding     PipelineStage = "embedding"
)

// Common validation errors for ProviderAttempt
var (
	ErrEmptyAttemptID        = errors.New("attempt ID cannot be empty")
	ErrEmptyAttemptJobID     = errors.New("attempt job ID cannot be empty")
	ErrEmptyAttemptProvider  = errors.New("attempt provider cannot be empty")
	ErrInvalidAttemptOutcome = errors.New("invalid attempt outcome")
)

// ProviderAttempt is one append-only audit record of a provider being tried
// (or deliberately not tried) for a job. Rows are never mutated after write;
// they feed both failover decisions and observability.
type ProviderAttempt struct {
	ID         uuid.UUID      `json:"id"`
	JobID      uuid.UUID      `json:"job_id"`
	NoteID     uuid.UUID      `json:"note_id"`
	Provider   string         `json:"provider"`
	Stage      PipelineStage  `json:"stage"`
	Outcome    AttemptOutcome `json:"outcome"`
	ErrorKind  *string        `json:"error_kind,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
}

// NewProviderAttempt creates an audit record for one provider attempt.
func NewProviderAttempt(
	jobID, noteID uuid.UUID,
	provider string,
	stage PipelineStage,
	outcome AttemptOutcome,
	startedAt, endedAt time.Time,
) (*ProviderAttempt, error) {
	attempt := &ProviderAttempt{
		ID:        uuid.New(),
		JobID:     jobID,
		NoteID:    noteID,
		Provider:  provider,
		Stage:     stage,
		Outcome:   outcome,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}

	if err := attempt.Validate(); err != nil {
		return nil, err
	}

	return attempt, nil
}

// Validate checks if the ProviderAttempt has valid data.
func (a *ProviderAttempt) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAttemptID
	}

	if a.JobID == uuid.Nil {
		return ErrEmptyAttemptJobID
	}

	if a.Provider == "" {
		return ErrEmptyAttemptProvider
	}

	if !isValidAttemptOutcome(a.Outcome) {
		return ErrInvalidAttemptOutcome
	}

	return nil
}

// Duration returns how long the attempt took end to end.
func (a *ProviderAttempt) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}

// isValidAttemptOutcome checks if the given outcome is a known value.
func isValidAttemptOutcome(o AttemptOutcome) bool {
	switch o {
	case AttemptOutcomeSuccess, AttemptOutcomeError, AttemptOutcomeRateLimited, AttemptOutcomeSkipped:
		return true
	default:
		return false
	}
}
