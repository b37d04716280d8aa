package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/ratelimit"
	"github.com/echoscribe/echoscribe-api/internal/retry"
)

// quietCtx returns a context whose logger discards everything, so pipeline
// tests do not spam the test output.
func quietCtx() context.Context {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger.WithContext(context.Background(), log)
}

// openLimiter returns a limiter whose buckets are big enough to never deny.
func openLimiter(names ...string) *ratelimit.Limiter {
	l := ratelimit.New()
	for _, name := range names {
		l.Register(name, 1000, 1000)
	}
	return l
}

// singleAttemptExecutor returns an executor that never retries, so provider
// mocks see exactly one call per orchestration step.
func singleAttemptExecutor(t *testing.T) *retry.Executor {
	t.Helper()
	return executorWithAttempts(t, 1)
}

func executorWithAttempts(t *testing.T, attempts int) *retry.Executor {
	t.Helper()
	exec, err := retry.NewExecutor(retry.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		Multiplier:     1,
	})
	require.NoError(t, err, "failed to build test executor")
	return exec
}

// mockResolver implements AudioResolver, defaulting to an in-memory source.
type mockResolver struct {
	ResolveFn func(ctx context.Context, ref string) (provider.AudioSource, error)
}

func (m *mockResolver) Resolve(ctx context.Context, ref string) (provider.AudioSource, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, ref)
	}
	return &mockAudioSource{ref: ref, mimeType: "audio/mp4", data: "audio-bytes"}, nil
}

// mockAudioSource is an in-memory AudioSource.
type mockAudioSource struct {
	ref      string
	mimeType string
	data     string
}

func (m *mockAudioSource) Ref() string      { return m.ref }
func (m *mockAudioSource) MIMEType() string { return m.mimeType }

func (m *mockAudioSource) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.data)), nil
}

func testAudio() *mockAudioSource {
	return &mockAudioSource{ref: "file:///audio/standup.m4a", mimeType: "audio/mp4", data: "audio-bytes"}
}

// mockTranscriber implements provider.Transcriber with an overridable
// function field and a call counter.
type mockTranscriber struct {
	name         string
	TranscribeFn func(ctx context.Context, audio provider.AudioSource) (*provider.TranscriptResult, error)
	calls        int
}

func (m *mockTranscriber) Name() string { return m.name }

func (m *mockTranscriber) Transcribe(ctx context.Context, audio provider.AudioSource) (*provider.TranscriptResult, error) {
	m.calls++
	return m.TranscribeFn(ctx, audio)
}

// mockRecorder implements AttemptRecorder, remembering every audit row.
type mockRecorder struct {
	mu       sync.Mutex
	RecordFn func(ctx context.Context, attempt *domain.ProviderAttempt) error
	recorded []*domain.ProviderAttempt
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{}
}

func (m *mockRecorder) Record(ctx context.Context, attempt *domain.ProviderAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordFn != nil {
		return m.RecordFn(ctx, attempt)
	}
	m.recorded = append(m.recorded, attempt)
	return nil
}

// Attempts returns a copy of the recorded rows in write order.
func (m *mockRecorder) Attempts() []*domain.ProviderAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ProviderAttempt, len(m.recorded))
	copy(out, m.recorded)
	return out
}

// ForProvider returns the recorded rows for one provider, in write order.
func (m *mockRecorder) ForProvider(name string) []*domain.ProviderAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ProviderAttempt
	for _, a := range m.recorded {
		if a.Provider == name {
			out = append(out, a)
		}
	}
	return out
}

// mockExtractor implements provider.Extractor, capturing each prompt.
type mockExtractor struct {
	name           string
	ExtractTasksFn func(ctx context.Context, prompt string) (string, error)
	mu             sync.Mutex
	prompts        []string
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) ExtractTasks(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.ExtractTasksFn(ctx, prompt)
}

func (m *mockExtractor) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// mockEmbedder implements provider.Embedder, capturing each input.
type mockEmbedder struct {
	name        string
	EmbedTextFn func(ctx context.Context, input string) ([]float32, error)
	mu          sync.Mutex
	inputs      []string
}

func (m *mockEmbedder) Name() string { return m.name }

func (m *mockEmbedder) EmbedText(ctx context.Context, input string) ([]float32, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	return m.EmbedTextFn(ctx, input)
}

func (m *mockEmbedder) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// mockPersister implements NotePersister over a single in-memory note. The
// journal records every save in call order as "method:status".
type mockPersister struct {
	mu   sync.Mutex
	note *domain.Note

	GetNoteFn        func(ctx context.Context, noteID uuid.UUID) (*domain.Note, error)
	SaveStatusFn     func(ctx context.Context, note *domain.Note) error
	SaveTranscriptFn func(ctx context.Context, note *domain.Note) error
	SaveExtractionFn func(ctx context.Context, note *domain.Note, tasks []*domain.NoteTask) error
	SaveCompletionFn func(ctx context.Context, note *domain.Note) error

	journal    []string
	savedTasks []*domain.NoteTask
}

func newMockPersister(note *domain.Note) *mockPersister {
	return &mockPersister{note: note}
}

func (m *mockPersister) GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error) {
	if m.GetNoteFn != nil {
		return m.GetNoteFn(ctx, noteID)
	}
	return m.note, nil
}

func (m *mockPersister) SaveStatus(ctx context.Context, note *domain.Note) error {
	if m.SaveStatusFn != nil {
		return m.SaveStatusFn(ctx, note)
	}
	m.log("save_status", note)
	return nil
}

func (m *mockPersister) SaveTranscript(ctx context.Context, note *domain.Note) error {
	if m.SaveTranscriptFn != nil {
		return m.SaveTranscriptFn(ctx, note)
	}
	m.log("save_transcript", note)
	return nil
}

func (m *mockPersister) SaveExtraction(ctx context.Context, note *domain.Note, tasks []*domain.NoteTask) error {
	if m.SaveExtractionFn != nil {
		return m.SaveExtractionFn(ctx, note, tasks)
	}
	m.mu.Lock()
	m.savedTasks = tasks
	m.mu.Unlock()
	m.log("save_extraction", note)
	return nil
}

func (m *mockPersister) SaveCompletion(ctx context.Context, note *domain.Note) error {
	if m.SaveCompletionFn != nil {
		return m.SaveCompletionFn(ctx, note)
	}
	m.log("save_completion", note)
	return nil
}

func (m *mockPersister) log(method string, note *domain.Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = append(m.journal, method+":"+string(note.Status))
}

func (m *mockPersister) Journal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.journal))
	copy(out, m.journal)
	return out
}

func (m *mockPersister) SavedTasks() []*domain.NoteTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savedTasks
}

// mockEmitter implements events.EventEmitter, remembering emitted events.
type mockEmitter struct {
	mu          sync.Mutex
	EmitEventFn func(ctx context.Context, event *events.JobRequestEvent) error
	emitted     []*events.JobRequestEvent
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.JobRequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	m.emitted = append(m.emitted, event)
	return nil
}

func (m *mockEmitter) Emitted() []*events.JobRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*events.JobRequestEvent, len(m.emitted))
	copy(out, m.emitted)
	return out
}
