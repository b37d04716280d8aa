package job

import (
	"log/slog"

	"github.com/echoscribe/echoscribe-api/internal/domain"
)

// NoteJobFactory creates NoteJob instances
type NoteJobFactory struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewNoteJobFactory creates a new factory for NoteJobs
func NewNoteJobFactory(pipeline Pipeline, logger *slog.Logger) *NoteJobFactory {
	return &NoteJobFactory{
		pipeline: pipeline,
		logger:   logger.With("component", "note_job_factory"),
	}
}

// FromRecord rebuilds an executable job from its stored record. Used on
// restart recovery and claim sweeps, where the original trace is gone.
func (f *NoteJobFactory) FromRecord(rec *domain.Job) (Job, error) {
	return NewNoteJob(rec, "", f.pipeline, f.logger)
}

// ForEvent creates an executable job for a freshly submitted record,
// carrying the trace of the request that triggered it.
func (f *NoteJobFactory) ForEvent(rec *domain.Job, traceID string) (Job, error) {
	return NewNoteJob(rec, traceID, f.pipeline, f.logger)
}
