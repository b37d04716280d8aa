package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/track"
)

func TestNewJobRequestEvent(t *testing.T) {
	type notePayload struct {
		NoteID   uuid.UUID `json:"note_id"`
		AudioRef string    `json:"audio_ref"`
	}

	payload := notePayload{NoteID: uuid.New(), AudioRef: "uploads/standup.ogg"}

	event, err := NewJobRequestEvent(context.Background(), "note_pipeline", payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "note_pipeline", event.Type)
	assert.Empty(t, event.TraceID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded notePayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewJobRequestEventCarriesTraceID(t *testing.T) {
	ctx := track.WithTraceID(context.Background(), "trace-123")

	event, err := NewJobRequestEvent(ctx, "note_pipeline", map[string]string{"note_id": uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, "trace-123", event.TraceID)
}

func TestNewJobRequestEventRejectsUnserializablePayload(t *testing.T) {
	_, err := NewJobRequestEvent(context.Background(), "note_pipeline", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestUnmarshalPayload(t *testing.T) {
	event, err := NewJobRequestEvent(context.Background(), "note_pipeline", map[string]string{"audio_ref": "uploads/a.wav"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, "uploads/a.wav", decoded["audio_ref"])
}
