package provider

import (
	"context"
	"io"
)

// Capability identifies one kind of work a provider can perform.
type Capability string

const (
	CapabilityTranscription Capability = "transcription"
	CapabilityExtraction    Capability = "extraction"
	CapabilityEmbedding     Capability = "embedding"
)

// Provider is the common surface of every external client. Name returns a
// stable identifier ("openai", "assemblyai", "whispercpp", "gemini") that is
// recorded on notes and attempt audit rows, so it must not change between
// releases.
type Provider interface {
	Name() string
}

// AudioSource supplies the audio for a transcription attempt. Ref returns the
// opaque storage reference recorded on the note; Open returns the raw audio
// bytes for providers that upload content instead of passing the reference
// along. Open may be called more than once, each call returning an
// independent reader.
type AudioSource interface {
	Ref() string
	MIMEType() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// TranscriptResult is the outcome of a successful transcription call.
type TranscriptResult struct {
	// Text is the full transcript. Providers return an error rather than an
	// empty Text; a transcript with nothing in it is never a success.
	Text string

	// Confidence is the provider-reported confidence in [0,1], or 0 when the
	// provider does not report one.
	Confidence float64

	// Language is the detected BCP-47 language tag, empty when unknown.
	Language string
}

// Transcriber converts audio into text.
type Transcriber interface {
	Provider

	// Transcribe converts the given audio to text. Errors are classified via
	// the package error types so callers can decide whether to retry, back
	// off or fail over to the next provider.
	Transcribe(ctx context.Context, audio AudioSource) (*TranscriptResult, error)
}

// Extractor prompts a language model to turn a transcript into structured
// output. It returns the model's raw response text; parsing and schema
// validation belong to the caller, which owns the re-prompt loop for invalid
// responses.
type Extractor interface {
	Provider

	ExtractTasks(ctx context.Context, transcript string) (string, error)
}

// Embedder computes a dense vector representation of text.
type Embedder interface {
	Provider

	EmbedText(ctx context.Context, input string) ([]float32, error)
}
