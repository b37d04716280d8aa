package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/track"
)

// JobRequestEvent asks the job runner to execute background work. The payload
// stays opaque JSON so the emitting side never imports the job package.
type JobRequestEvent struct {
	ID uuid.UUID `json:"id"`

	// Type selects which factory consumes the payload.
	Type string `json:"type"`

	Payload json.RawMessage `json:"payload"`

	// TraceID carries the trace of the request that triggered the job, so
	// logs from background processing correlate with the original submission.
	TraceID string `json:"trace_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *JobRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewJobRequestEvent builds an event of the given type around payload, which
// must marshal to JSON. The trace ID, if present on ctx, rides along.
func NewJobRequestEvent(ctx context.Context, eventType string, payload any) (*JobRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &JobRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		TraceID:   track.GetTraceID(ctx),
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler consumes events delivered by an emitter.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *JobRequestEvent) error
}

// EventEmitter publishes events to whoever registered interest.
// Implementations decide delivery semantics; the in-memory emitter delivers
// synchronously on the emitting goroutine.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *JobRequestEvent) error
}
