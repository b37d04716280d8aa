package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptionUnavailableError(t *testing.T) {
	t.Parallel()

	err := &TranscriptionUnavailableError{Providers: []string{"openai", "assemblyai"}}
	assert.Equal(t, "transcription unavailable: all providers failed (openai, assemblyai)", err.Error())
	assert.True(t, IsTranscriptionUnavailable(err))
	assert.True(t, IsTranscriptionUnavailable(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsTranscriptionUnavailable(errors.New("other")))

	empty := &TranscriptionUnavailableError{}
	assert.Contains(t, empty.Error(), "no providers attempted")
}

func TestExtractionInvalidError(t *testing.T) {
	t.Parallel()

	cause := errors.New("response is not valid JSON")
	err := &ExtractionInvalidError{Attempts: 3, Err: cause}

	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsExtractionInvalid(err))
	assert.True(t, IsExtractionInvalid(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsExtractionInvalid(cause))
}

func TestInvalidInputError(t *testing.T) {
	t.Parallel()

	err := &InvalidInputError{Reason: "transcript exceeds the cap", Length: 120000}
	assert.Contains(t, err.Error(), "transcript exceeds the cap")
	assert.Contains(t, err.Error(), "120000")
	assert.True(t, IsInvalidInput(err))
	assert.False(t, IsInvalidInput(errors.New("other")))
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := &TimeoutError{Budget: 5 * time.Minute, Stage: "extraction"}
	assert.Equal(t, "pipeline exceeded wall clock budget of 5m0s during extraction", err.Error())
	assert.True(t, IsTimeout(err))
	assert.True(t, IsTimeout(fmt.Errorf("wrapped: %w", err)))

	noStage := &TimeoutError{Budget: time.Minute}
	assert.Equal(t, "pipeline exceeded wall clock budget of 1m0s", noStage.Error())
}

func TestStageOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "transcription", stageOf("transcribing"))
	assert.Equal(t, "extraction", stageOf("extracting"))
	assert.Equal(t, "embedding", stageOf("embedding"))
	assert.Equal(t, "", stageOf("pending"))
}
