package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/provider"
)

const validExtractionResponse = `{
  "summary": "The team agreed the launch slips one week and assigned follow-ups.",
  "tasks": [
    {
      "description": "Update the release notes for the new date",
      "priority": "high",
      "deadline": "2026-09-01",
      "assignees": ["Dana"]
    },
    {
      "description": "Book the retro room",
      "priority": "low"
    }
  ],
  "confidence": 0.9
}`

// staticExtractor returns a mock that always answers with response.
func staticExtractor(name, response string) *mockExtractor {
	return &mockExtractor{
		name: name,
		ExtractTasksFn: func(ctx context.Context, prompt string) (string, error) {
			return response, nil
		},
	}
}

// newTestExtractor wires a StructuredExtractor around the mock with an open
// limiter and no retries.
func newTestExtractor(t *testing.T, mock *mockExtractor, recorder *mockRecorder, maxAttempts int) *StructuredExtractor {
	t.Helper()
	x, err := NewStructuredExtractor(
		mock,
		openLimiter(mock.name),
		singleAttemptExecutor(t),
		recorder,
		nil,
		config.ExtractionConfig{MaxAttempts: maxAttempts, MaxInputChars: 100000},
	)
	require.NoError(t, err)
	return x
}

func TestNewStructuredExtractor(t *testing.T) {
	t.Parallel()

	mock := staticExtractor("gemini", validExtractionResponse)
	limiter := openLimiter("gemini")
	executor := singleAttemptExecutor(t)
	recorder := newMockRecorder()
	cfg := config.ExtractionConfig{MaxAttempts: 3, MaxInputChars: 100000}

	t.Run("valid dependencies", func(t *testing.T) {
		x, err := NewStructuredExtractor(mock, limiter, executor, recorder, nil, cfg)
		require.NoError(t, err)
		assert.NotNil(t, x)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewStructuredExtractor(nil, limiter, executor, recorder, nil, cfg)
		assert.Error(t, err)
	})

	t.Run("nil limiter", func(t *testing.T) {
		_, err := NewStructuredExtractor(mock, nil, executor, recorder, nil, cfg)
		assert.Error(t, err)
	})

	t.Run("nil executor", func(t *testing.T) {
		_, err := NewStructuredExtractor(mock, limiter, nil, recorder, nil, cfg)
		assert.Error(t, err)
	})

	t.Run("nil recorder", func(t *testing.T) {
		_, err := NewStructuredExtractor(mock, limiter, executor, nil, nil, cfg)
		assert.Error(t, err)
	})

	t.Run("zero max attempts", func(t *testing.T) {
		_, err := NewStructuredExtractor(mock, limiter, executor, recorder, nil,
			config.ExtractionConfig{MaxAttempts: 0, MaxInputChars: 100000})
		assert.Error(t, err)
	})

	t.Run("zero max input chars", func(t *testing.T) {
		_, err := NewStructuredExtractor(mock, limiter, executor, recorder, nil,
			config.ExtractionConfig{MaxAttempts: 3, MaxInputChars: 0})
		assert.Error(t, err)
	})
}

func TestExtractValidResponse(t *testing.T) {
	t.Parallel()

	mock := staticExtractor("gemini", validExtractionResponse)
	recorder := newMockRecorder()
	x := newTestExtractor(t, mock, recorder, 3)

	jobID, noteID := uuid.New(), uuid.New()
	result, err := x.Extract(quietCtx(), jobID, noteID, "we discussed the launch")

	require.NoError(t, err)
	assert.Equal(t, "The team agreed the launch slips one week and assigned follow-ups.", result.Summary)
	require.Len(t, result.Tasks, 2)
	assert.Equal(t, "high", result.Tasks[0].Priority)
	assert.Equal(t, []string{"Dana"}, result.Tasks[0].Assignees)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 0.9, *result.Confidence)

	prompts := mock.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "we discussed the launch")
	assert.NotContains(t, prompts[0], "previous response was rejected")

	attempts := recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.StageExtraction, attempts[0].Stage)
	assert.Equal(t, domain.AttemptOutcomeSuccess, attempts[0].Outcome)
	require.NotNil(t, attempts[0].Confidence)
	assert.Equal(t, 0.9, *attempts[0].Confidence)
}

func TestExtractSalvagesJSONFromProse(t *testing.T) {
	t.Parallel()

	wrapped := "Sure! Here is the structured output you asked for:\n```json\n" +
		validExtractionResponse + "\n```\nLet me know if you need anything else."
	mock := staticExtractor("gemini", wrapped)
	x := newTestExtractor(t, mock, newMockRecorder(), 1)

	result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "we discussed the launch")

	require.NoError(t, err)
	assert.Len(t, result.Tasks, 2)
}

func TestExtractRePromptsWithFeedback(t *testing.T) {
	t.Parallel()

	responses := []string{
		"I could not find any tasks in this transcript, sorry!",
		validExtractionResponse,
	}
	call := 0
	mock := &mockExtractor{
		name: "gemini",
		ExtractTasksFn: func(ctx context.Context, prompt string) (string, error) {
			response := responses[call]
			call++
			return response, nil
		},
	}
	recorder := newMockRecorder()
	x := newTestExtractor(t, mock, recorder, 3)

	result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "we discussed the launch")

	require.NoError(t, err)
	assert.Len(t, result.Tasks, 2)

	prompts := mock.Prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "previous response was rejected")
	assert.Contains(t, prompts[1], "previous response was rejected")
	assert.Contains(t, prompts[1], "no JSON object")

	attempts := recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, domain.AttemptOutcomeError, attempts[0].Outcome)
	require.NotNil(t, attempts[0].ErrorKind)
	assert.Equal(t, kindInvalidOutput, *attempts[0].ErrorKind)
	assert.Equal(t, domain.AttemptOutcomeSuccess, attempts[1].Outcome)
}

func TestExtractRePromptBudgetExhausted(t *testing.T) {
	t.Parallel()

	mock := staticExtractor("gemini", `{"tasks": "this is not the schema"}`)
	recorder := newMockRecorder()
	x := newTestExtractor(t, mock, recorder, 3)

	result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "we discussed the launch")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsExtractionInvalid(err))

	var invalid *ExtractionInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 3, invalid.Attempts)
	assert.Error(t, invalid.Err)

	assert.Len(t, mock.Prompts(), 3)
	assert.Len(t, recorder.Attempts(), 3)
}

func TestExtractRejectsBadSchema(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		response string
	}{
		{
			name:     "missing summary",
			response: `{"tasks": []}`,
		},
		{
			name:     "unknown priority",
			response: `{"summary": "ok", "tasks": [{"description": "do it", "priority": "urgent"}]}`,
		},
		{
			name:     "empty task description",
			response: `{"summary": "ok", "tasks": [{"description": "", "priority": "low"}]}`,
		},
		{
			name:     "unparseable deadline",
			response: `{"summary": "ok", "tasks": [{"description": "do it", "priority": "low", "deadline": "soonish"}]}`,
		},
		{
			name:     "confidence out of range",
			response: `{"summary": "ok", "tasks": [], "confidence": 1.5}`,
		},
		{
			name:     "no JSON at all",
			response: "the transcript was lovely",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock := staticExtractor("gemini", tc.response)
			x := newTestExtractor(t, mock, newMockRecorder(), 1)

			result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "we discussed the launch")

			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsExtractionInvalid(err))
		})
	}
}

func TestExtractAcceptsEmptyTaskList(t *testing.T) {
	t.Parallel()

	mock := staticExtractor("gemini", `{"summary": "Nothing actionable, just thinking out loud.", "tasks": []}`)
	x := newTestExtractor(t, mock, newMockRecorder(), 1)

	result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "thinking out loud")

	require.NoError(t, err)
	assert.Empty(t, result.Tasks)
	assert.Nil(t, result.Confidence)
}

func TestExtractInputGates(t *testing.T) {
	t.Parallel()

	mock := staticExtractor("gemini", validExtractionResponse)
	x, err := NewStructuredExtractor(
		mock,
		openLimiter("gemini"),
		singleAttemptExecutor(t),
		newMockRecorder(),
		nil,
		config.ExtractionConfig{MaxAttempts: 3, MaxInputChars: 5},
	)
	require.NoError(t, err)

	t.Run("empty transcript", func(t *testing.T) {
		result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("over the character cap", func(t *testing.T) {
		result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "aaaaaa")
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("cap counts characters not bytes", func(t *testing.T) {
		// Five runes, ten bytes. Must be admitted under a five character cap.
		_, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "ééééé")
		require.NoError(t, err)
	})

	assert.Equal(t, 1, len(mock.Prompts()), "rejected input must never reach the provider")
}

func TestExtractTransportErrorReturnsImmediately(t *testing.T) {
	t.Parallel()

	transportErr := provider.Permanent("gemini", errors.New("API key rejected"))
	mock := &mockExtractor{
		name: "gemini",
		ExtractTasksFn: func(ctx context.Context, prompt string) (string, error) {
			return "", transportErr
		},
	}
	recorder := newMockRecorder()
	x := newTestExtractor(t, mock, recorder, 3)

	result, err := x.Extract(quietCtx(), uuid.New(), uuid.New(), "we discussed the launch")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, provider.IsPermanent(err))
	assert.False(t, IsExtractionInvalid(err), "call failures must not consume the re-prompt budget")
	assert.Len(t, mock.Prompts(), 1)

	attempts := recorder.Attempts()
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].ErrorKind)
	assert.Equal(t, provider.KindPermanent, *attempts[0].ErrorKind)
}

func TestDomainTasks(t *testing.T) {
	t.Parallel()

	noteID := uuid.New()
	confidence := 0.8
	result := &ExtractionResult{
		Summary: "Launch slips a week.",
		Tasks: []ExtractedTask{
			{Description: "Update release notes", Priority: "high", Deadline: "2026-09-01", Assignees: []string{"Dana", "Lee"}},
			{Description: "Book the retro room", Priority: "low"},
		},
		Confidence: &confidence,
	}

	tasks, err := result.DomainTasks(noteID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, noteID, tasks[0].NoteID)
	assert.Equal(t, domain.TaskPriorityHigh, tasks[0].Priority)
	assert.Equal(t, 0, tasks[0].Position)
	require.NotNil(t, tasks[0].Deadline)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *tasks[0].Deadline)
	assert.Equal(t, []string{"Dana", "Lee"}, tasks[0].Assignees)

	assert.Equal(t, domain.TaskPriorityLow, tasks[1].Priority)
	assert.Equal(t, 1, tasks[1].Position)
	assert.Nil(t, tasks[1].Deadline)
}

func TestDomainTasksRejectsInvalidPriority(t *testing.T) {
	t.Parallel()

	result := &ExtractionResult{
		Summary: "ok",
		Tasks:   []ExtractedTask{{Description: "do it", Priority: "someday"}},
	}

	_, err := result.DomainTasks(uuid.New())
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare object", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "fenced object", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "prose around object", in: `Here you go: {"a": 1} hope that helps`, want: `{"a": 1}`},
		{name: "nested braces", in: `{"a": {"b": 2}}`, want: `{"a": {"b": 2}}`},
		{name: "no object", in: "nothing here", want: ""},
		{name: "only a closing brace", in: "}", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	t.Parallel()

	first := buildExtractionPrompt("the transcript", nil)
	assert.True(t, strings.HasSuffix(first, "the transcript"))
	assert.NotContains(t, first, "previous response was rejected")

	second := buildExtractionPrompt("the transcript", errors.New("response is not valid JSON"))
	assert.Contains(t, second, "previous response was rejected: response is not valid JSON")
	assert.True(t, strings.HasSuffix(second, "the transcript"))
}
