package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/pipeline"
)

// NoteTerminalLogger subscribes to terminal note events and logs them. It
// stands in for the notification dispatcher that would alert the user; that
// dispatcher lives outside this repo and would register the same way.
type NoteTerminalLogger struct {
	logger *slog.Logger
}

// NewNoteTerminalLogger creates a handler that logs terminal note events.
func NewNoteTerminalLogger(logger *slog.Logger) *NoteTerminalLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteTerminalLogger{
		logger: logger.With("component", "note_terminal_logger"),
	}
}

// Ensure NoteTerminalLogger implements events.EventHandler
var _ events.EventHandler = (*NoteTerminalLogger)(nil)

// HandleEvent logs terminal note transitions and ignores every other event
// type.
func (l *NoteTerminalLogger) HandleEvent(ctx context.Context, event *events.JobRequestEvent) error {
	if event.Type != pipeline.TypeNoteTerminal {
		return nil
	}

	var payload pipeline.NoteTerminalPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal terminal event payload: %w", err)
	}

	if payload.Status == string(domain.NoteStatusFailed) {
		l.logger.Warn("note processing failed",
			"note_id", payload.NoteID,
			"reason", payload.FailureReason,
			"event_id", event.ID)
		return nil
	}

	l.logger.Info("note processing finished",
		"note_id", payload.NoteID,
		"status", payload.Status,
		"provider", payload.Provider,
		"event_id", event.ID)
	return nil
}
