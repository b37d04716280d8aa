package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NoteStatus represents the processing state of a note.
type NoteStatus string

// Possible note status values. A note advances strictly forward through the
// pipeline stages and can terminate at Failed from any non-terminal state.
// The only backward transition is the explicit retry reset Failed -> Pending.
const (
	NoteStatusPending      NoteStatus = "pending"
	NoteStatusTranscribing NoteStatus = "transcribing"
	NoteStatusExtracting   NoteStatus = "extracting"
	NoteStatusEmbedding    NoteStatus = "embedding"
	NoteStatusDone         NoteStatus = "done"
	NoteStatusFailed       NoteStatus = "failed"
)

// Common validation errors for Note
var (
	ErrEmptyNoteID             = errors.New("note ID cannot be empty")
	ErrEmptyNoteAudioRef       = errors.New("note audio reference cannot be empty")
	ErrInvalidNoteStatus       = errors.New("invalid note status")
	ErrInvalidStatusTransition = errors.New("invalid note status transition")
	ErrNoteNotRetryable        = errors.New("note is not in a failed state")
	ErrEmptyNoteFailureReason  = errors.New("failure reason cannot be empty")
)

// noteTransitions encodes the allowed forward edges of the status state
// machine. Failed is reachable from every non-terminal state and is handled
// separately in CanTransitionTo.
var noteTransitions = map[NoteStatus]NoteStatus{
	NoteStatusPending:      NoteStatusTranscribing,
	NoteStatusTranscribing: NoteStatusExtracting,
	NoteStatusExtracting:   NoteStatusEmbedding,
	NoteStatusEmbedding:    NoteStatusDone,
}

// Note represents one uploaded audio recording and everything the pipeline
// derives from it. The pipeline is the only writer of Status, Transcript,
// Summary and Embedding while a job is in flight.
type Note struct {
	ID            uuid.UUID  `json:"id"`
	AudioRef      string     `json:"audio_ref"`
	Status        NoteStatus `json:"status"`
	Transcript    *string    `json:"transcript,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	Embedding     []float32  `json:"embedding,omitempty"`
	ProviderUsed  *string    `json:"provider_used,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewNote creates a new Note in the pending state for the given audio
// reference. Returns an error if validation fails.
func NewNote(audioRef string) (*Note, error) {
	note := &Note{
		ID:        uuid.New(),
		AudioRef:  audioRef,
		Status:    NoteStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := note.Validate(); err != nil {
		return nil, err
	}

	return note, nil
}

// Validate checks if the Note has valid data.
func (n *Note) Validate() error {
	if n.ID == uuid.Nil {
		return ErrEmptyNoteID
	}

	if n.AudioRef == "" {
		return ErrEmptyNoteAudioRef
	}

	if !isValidNoteStatus(n.Status) {
		return ErrInvalidNoteStatus
	}

	return nil
}

// IsTerminal reports whether the note has reached a state from which the
// pipeline performs no further automatic transitions.
func (n *Note) IsTerminal() bool {
	return n.Status == NoteStatusDone || n.Status == NoteStatusFailed
}

// CanTransitionTo reports whether moving from the current status to next is a
// legal state machine edge. Failed is legal from any non-terminal state; the
// retry reset Failed -> Pending is legal; everything else must follow the
// forward chain.
func (n *Note) CanTransitionTo(next NoteStatus) bool {
	if !isValidNoteStatus(next) {
		return false
	}
	if next == NoteStatusFailed {
		return !n.IsTerminal()
	}
	if n.Status == NoteStatusFailed {
		return next == NoteStatusPending
	}
	return noteTransitions[n.Status] == next
}

// TransitionTo advances the note's status along a legal edge and stamps
// UpdatedAt. Returns ErrInvalidStatusTransition if the edge is not allowed.
func (n *Note) TransitionTo(next NoteStatus) error {
	if !n.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}

	n.Status = next
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed terminates the note with a human-readable failure reason.
// Already-obtained results (transcript, summary) are deliberately left intact
// so a downstream failure never destroys upstream output.
func (n *Note) MarkFailed(reason string) error {
	if reason == "" {
		return ErrEmptyNoteFailureReason
	}
	if err := n.TransitionTo(NoteStatusFailed); err != nil {
		return err
	}
	n.FailureReason = &reason
	return nil
}

// ResetForRetry performs the explicit retry transition Failed -> Pending and
// clears derived fields so the pipeline re-runs from scratch.
func (n *Note) ResetForRetry() error {
	if n.Status != NoteStatusFailed {
		return ErrNoteNotRetryable
	}
	if err := n.TransitionTo(NoteStatusPending); err != nil {
		return err
	}
	n.Transcript = nil
	n.Summary = nil
	n.Embedding = nil
	n.ProviderUsed = nil
	n.FailureReason = nil
	return nil
}

// SetTranscript records the transcription result and the provider that
// produced it.
func (n *Note) SetTranscript(transcript, provider string) {
	n.Transcript = &transcript
	n.ProviderUsed = &provider
	n.UpdatedAt = time.Now().UTC()
}

// SetSummary records the extracted summary.
func (n *Note) SetSummary(summary string) {
	n.Summary = &summary
	n.UpdatedAt = time.Now().UTC()
}

// SetEmbedding records the embedding vector.
func (n *Note) SetEmbedding(vector []float32) {
	n.Embedding = vector
	n.UpdatedAt = time.Now().UTC()
}

// isValidNoteStatus checks if the given status is a valid NoteStatus.
func isValidNoteStatus(status NoteStatus) bool {
	switch status {
	case NoteStatusPending, NoteStatusTranscribing, NoteStatusExtracting,
		NoteStatusEmbedding, NoteStatusDone, NoteStatusFailed:
		return true
	default:
		return false
	}
}
