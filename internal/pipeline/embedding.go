package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/ratelimit"
	"github.com/echoscribe/echoscribe-api/internal/retry"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// EmbeddingStage computes the note's vector representation. The coordinator
// treats its failures as non-fatal; a note still finishes without a vector.
// Oversized input is truncated to the provider window, not rejected.
type EmbeddingStage struct {
	embedder      provider.Embedder
	limiter       *ratelimit.Limiter
	executor      *retry.Executor
	attempts      AttemptRecorder
	metrics       *track.Metrics
	maxInputChars int
}

// NewEmbeddingStage creates the embedding stage. metrics may be nil.
func NewEmbeddingStage(
	embedder provider.Embedder,
	limiter *ratelimit.Limiter,
	executor *retry.Executor,
	attempts AttemptRecorder,
	metrics *track.Metrics,
	cfg config.EmbeddingConfig,
) (*EmbeddingStage, error) {
	if embedder == nil {
		return nil, errors.New("embedding stage requires an embedding provider")
	}
	if limiter == nil {
		return nil, errors.New("embedding stage requires a rate limiter")
	}
	if executor == nil {
		return nil, errors.New("embedding stage requires a retry executor")
	}
	if attempts == nil {
		return nil, errors.New("embedding stage requires an attempt recorder")
	}
	if cfg.MaxInputChars < 1 {
		return nil, fmt.Errorf("embedding max input chars must be at least 1, got %d", cfg.MaxInputChars)
	}

	return &EmbeddingStage{
		embedder:      embedder,
		limiter:       limiter,
		executor:      executor,
		attempts:      attempts,
		metrics:       metrics,
		maxInputChars: cfg.MaxInputChars,
	}, nil
}

// Embed returns the vector for the given text, truncated to the provider
// window when necessary.
func (s *EmbeddingStage) Embed(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	text string,
) ([]float32, error) {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(text) == "" {
		return nil, &InvalidInputError{Reason: "embedding input is empty"}
	}

	input := text
	if n := utf8.RuneCountInString(text); n > s.maxInputChars {
		input = string([]rune(text)[:s.maxInputChars])
		log.Debug("embedding input truncated",
			"original_chars", n,
			"max_chars", s.maxInputChars)
	}

	name := s.embedder.Name()
	if err := s.admit(ctx, jobID, noteID, name); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	var vector []float32
	err := s.executor.Do(ctx, func(ctx context.Context) error {
		v, perr := s.embedder.EmbedText(ctx, input)
		if perr != nil {
			return perr
		}
		vector = v
		return nil
	})
	ended := time.Now().UTC()

	if s.metrics != nil {
		s.metrics.Observe(track.ProviderLatency(name), ended.Sub(started))
	}

	if err != nil {
		s.record(ctx, jobID, noteID, name, domain.AttemptOutcomeError,
			provider.Kind(err), started, ended)
		if s.metrics != nil {
			s.metrics.Inc(track.ProviderCallCounter(name, "error"))
		}
		return nil, err
	}

	if len(vector) == 0 {
		s.record(ctx, jobID, noteID, name, domain.AttemptOutcomeError,
			kindInvalidOutput, started, ended)
		if s.metrics != nil {
			s.metrics.Inc(track.ProviderCallCounter(name, "invalid_output"))
		}
		return nil, fmt.Errorf("provider %s returned an empty embedding", name)
	}

	s.record(ctx, jobID, noteID, name, domain.AttemptOutcomeSuccess, "", started, ended)
	if s.metrics != nil {
		s.metrics.Inc(track.ProviderCallCounter(name, "success"))
	}
	log.Info("embedding computed", "dimensions", len(vector))
	return vector, nil
}

// admit takes a token for the embedding provider, waiting the bucket out on
// denial since this stage has no failover candidate.
func (s *EmbeddingStage) admit(ctx context.Context, jobID, noteID uuid.UUID, name string) error {
	err := s.limiter.Allow(name)
	if err == nil {
		return nil
	}

	now := time.Now().UTC()
	s.record(ctx, jobID, noteID, name, domain.AttemptOutcomeRateLimited,
		provider.KindRateLimited, now, now)
	if s.metrics != nil {
		s.metrics.Inc(track.ProviderCallCounter(name, "rate_limited"))
	}

	logger.FromContext(ctx).Info("embedding provider rate limited, waiting for a token",
		"provider", name)
	if werr := s.limiter.Wait(ctx, name); werr != nil {
		return fmt.Errorf("rate limit wait aborted: %w", werr)
	}
	return nil
}

func (s *EmbeddingStage) record(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	providerName string,
	outcome domain.AttemptOutcome,
	errKind string,
	startedAt, endedAt time.Time,
) {
	recordAttempt(ctx, s.attempts, jobID, noteID, providerName,
		domain.StageEmbedding, outcome, errKind, nil, startedAt, endedAt)
}
