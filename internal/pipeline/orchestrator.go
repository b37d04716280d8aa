package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/ratelimit"
	"github.com/echoscribe/echoscribe-api/internal/redact"
	"github.com/echoscribe/echoscribe-api/internal/retry"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// AttemptRecorder persists provider attempt audit rows. Satisfied by
// store.AttemptStore.
// Version: 1.0
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *domain.ProviderAttempt) error
}

// Transcription is a successful orchestration outcome: the transcript plus
// the provider that produced it.
type Transcription struct {
	provider.TranscriptResult
	Provider string
}

// TranscriptionOrchestrator runs the provider failover chain. Providers are
// tried in priority order and the first success wins; every attempt, denial
// and skip leaves an audit row.
type TranscriptionOrchestrator struct {
	chain    []provider.Transcriber
	limiter  *ratelimit.Limiter
	executor *retry.Executor
	attempts AttemptRecorder
	metrics  *track.Metrics
}

// NewTranscriptionOrchestrator creates an orchestrator over the given chain.
// The chain order is the failover priority order. metrics may be nil.
func NewTranscriptionOrchestrator(
	chain []provider.Transcriber,
	limiter *ratelimit.Limiter,
	executor *retry.Executor,
	attempts AttemptRecorder,
	metrics *track.Metrics,
) (*TranscriptionOrchestrator, error) {
	if len(chain) == 0 {
		return nil, errors.New("transcription orchestrator requires at least one provider")
	}
	if limiter == nil {
		return nil, errors.New("transcription orchestrator requires a rate limiter")
	}
	if executor == nil {
		return nil, errors.New("transcription orchestrator requires a retry executor")
	}
	if attempts == nil {
		return nil, errors.New("transcription orchestrator requires an attempt recorder")
	}

	providers := make([]provider.Transcriber, len(chain))
	copy(providers, chain)

	return &TranscriptionOrchestrator{
		chain:    providers,
		limiter:  limiter,
		executor: executor,
		attempts: attempts,
		metrics:  metrics,
	}, nil
}

// Transcribe tries each provider in priority order until one returns a
// transcript. Rate limit denials fail over to the next candidate, except on
// the last one, where the orchestrator waits the bucket out rather than fail
// the job over admission alone. When every provider has failed it returns a
// TranscriptionUnavailableError.
func (o *TranscriptionOrchestrator) Transcribe(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	audio provider.AudioSource,
) (*Transcription, error) {
	log := logger.FromContext(ctx)

	attempted := make([]string, 0, len(o.chain))
	for i, t := range o.chain {
		name := t.Name()
		last := i == len(o.chain)-1
		attempted = append(attempted, name)

		if err := o.limiter.Allow(name); err != nil {
			var retryAfter time.Duration
			var rle *provider.RateLimitError
			if errors.As(err, &rle) {
				retryAfter = rle.RetryAfter
			}

			now := time.Now().UTC()
			o.record(ctx, jobID, noteID, name, domain.AttemptOutcomeRateLimited,
				provider.KindRateLimited, nil, now, now)
			if o.metrics != nil {
				o.metrics.Inc(track.ProviderCallCounter(name, "rate_limited"))
			}

			if !last {
				log.Warn("provider rate limited, failing over",
					"provider", name,
					"retry_after", retryAfter)
				continue
			}

			// No candidates left. Waiting the bucket out is cheaper than
			// failing the whole job over local admission.
			log.Info("last provider rate limited, waiting for a token",
				"provider", name,
				"retry_after", retryAfter)
			if werr := o.limiter.Wait(ctx, name); werr != nil {
				return nil, fmt.Errorf("rate limit wait aborted: %w", werr)
			}
		}

		started := time.Now().UTC()
		var result *provider.TranscriptResult
		err := o.executor.Do(ctx, func(ctx context.Context) error {
			res, terr := t.Transcribe(ctx, audio)
			if terr != nil {
				return terr
			}
			if strings.TrimSpace(res.Text) == "" {
				return provider.Permanent(name, ErrEmptyTranscript)
			}
			result = res
			return nil
		})
		ended := time.Now().UTC()

		if o.metrics != nil {
			o.metrics.Observe(track.ProviderLatency(name), ended.Sub(started))
		}

		if err == nil {
			var confidence *float64
			if result.Confidence > 0 {
				confidence = &result.Confidence
			}
			o.record(ctx, jobID, noteID, name, domain.AttemptOutcomeSuccess,
				"", confidence, started, ended)
			if o.metrics != nil {
				o.metrics.Inc(track.ProviderCallCounter(name, "success"))
			}
			o.recordSkipped(ctx, jobID, noteID, i+1)

			log.Info("transcription succeeded",
				"provider", name,
				"confidence", result.Confidence,
				"transcript_chars", len(result.Text))

			return &Transcription{TranscriptResult: *result, Provider: name}, nil
		}

		o.record(ctx, jobID, noteID, name, domain.AttemptOutcomeError,
			provider.Kind(err), nil, started, ended)
		if o.metrics != nil {
			o.metrics.Inc(track.ProviderCallCounter(name, "error"))
		}

		if ctx.Err() != nil {
			// The budget is gone; trying further providers is pointless
			return nil, err
		}

		log.Warn("provider failed, failing over",
			"provider", name,
			"error", redact.Error(err))
	}

	return nil, &TranscriptionUnavailableError{Providers: attempted}
}

func (o *TranscriptionOrchestrator) record(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	providerName string,
	outcome domain.AttemptOutcome,
	errKind string,
	confidence *float64,
	startedAt, endedAt time.Time,
) {
	recordAttempt(ctx, o.attempts, jobID, noteID, providerName,
		domain.StageTranscription, outcome, errKind, confidence, startedAt, endedAt)
}

// recordSkipped writes skipped rows for chain members after the winning
// provider, so each run leaves a complete picture of the chain.
func (o *TranscriptionOrchestrator) recordSkipped(ctx context.Context, jobID, noteID uuid.UUID, from int) {
	for _, t := range o.chain[from:] {
		now := time.Now().UTC()
		o.record(ctx, jobID, noteID, t.Name(), domain.AttemptOutcomeSkipped, "", nil, now, now)
	}
}
