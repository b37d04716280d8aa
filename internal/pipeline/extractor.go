package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/ratelimit"
	"github.com/echoscribe/echoscribe-api/internal/retry"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// kindInvalidOutput is the audit label for model responses rejected by schema
// validation. The provider package kinds cover call failures; this one marks
// calls that succeeded but produced unusable output.
const kindInvalidOutput = "invalid_output"

// ExtractionResult is the shape the language model must produce. A result is
// only accepted after JSON parsing and schema validation both pass.
type ExtractionResult struct {
	Summary    string          `json:"summary" validate:"required,min=1"`
	Tasks      []ExtractedTask `json:"tasks" validate:"dive"`
	Confidence *float64        `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ExtractedTask is one actionable item in a model response.
type ExtractedTask struct {
	Description string   `json:"description" validate:"required,min=1"`
	Priority    string   `json:"priority" validate:"required,oneof=low medium high"`
	Deadline    string   `json:"deadline,omitempty"`
	Assignees   []string `json:"assignees,omitempty"`
}

// DomainTasks converts the validated result into domain tasks for the given
// note, preserving the extractor's ordering.
func (r *ExtractionResult) DomainTasks(noteID uuid.UUID) ([]*domain.NoteTask, error) {
	tasks := make([]*domain.NoteTask, 0, len(r.Tasks))
	for i, t := range r.Tasks {
		task, err := domain.NewNoteTask(noteID, t.Description, domain.TaskPriority(t.Priority), i)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if t.Deadline != "" {
			deadline, err := parseDeadline(t.Deadline)
			if err != nil {
				return nil, fmt.Errorf("task %d: %w", i, err)
			}
			deadline = deadline.UTC()
			task.Deadline = &deadline
		}
		if len(t.Assignees) > 0 {
			task.Assignees = append([]string(nil), t.Assignees...)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// StructuredExtractor turns a transcript into a validated ExtractionResult.
// Transport failures are handled by the retry executor; responses that parse
// or validate badly consume a separate re-prompt budget, with the validation
// failure fed back into the next prompt.
type StructuredExtractor struct {
	extractor     provider.Extractor
	limiter       *ratelimit.Limiter
	executor      *retry.Executor
	attempts      AttemptRecorder
	metrics       *track.Metrics
	validate      *validator.Validate
	maxAttempts   int
	maxInputChars int
}

// NewStructuredExtractor creates the extraction stage. metrics may be nil.
func NewStructuredExtractor(
	extractor provider.Extractor,
	limiter *ratelimit.Limiter,
	executor *retry.Executor,
	attempts AttemptRecorder,
	metrics *track.Metrics,
	cfg config.ExtractionConfig,
) (*StructuredExtractor, error) {
	if extractor == nil {
		return nil, errors.New("structured extractor requires an extraction provider")
	}
	if limiter == nil {
		return nil, errors.New("structured extractor requires a rate limiter")
	}
	if executor == nil {
		return nil, errors.New("structured extractor requires a retry executor")
	}
	if attempts == nil {
		return nil, errors.New("structured extractor requires an attempt recorder")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("extraction max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxInputChars < 1 {
		return nil, fmt.Errorf("extraction max input chars must be at least 1, got %d", cfg.MaxInputChars)
	}

	return &StructuredExtractor{
		extractor:     extractor,
		limiter:       limiter,
		executor:      executor,
		attempts:      attempts,
		metrics:       metrics,
		validate:      validator.New(),
		maxAttempts:   cfg.MaxAttempts,
		maxInputChars: cfg.MaxInputChars,
	}, nil
}

// Extract prompts the model with the transcript and returns the first
// response that passes validation. Input outside 1..maxInputChars characters
// is rejected before any provider call. When the re-prompt budget runs out it
// returns an ExtractionInvalidError wrapping the last validation failure.
func (x *StructuredExtractor) Extract(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	transcript string,
) (*ExtractionResult, error) {
	log := logger.FromContext(ctx)

	length := utf8.RuneCountInString(transcript)
	if length == 0 {
		return nil, &InvalidInputError{Reason: "transcript is empty"}
	}
	if length > x.maxInputChars {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("transcript exceeds the %d character extraction cap", x.maxInputChars),
			Length: length,
		}
	}

	name := x.extractor.Name()
	var lastInvalid error

	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		if err := x.admit(ctx, jobID, noteID, name); err != nil {
			return nil, err
		}

		prompt := buildExtractionPrompt(transcript, lastInvalid)

		started := time.Now().UTC()
		var raw string
		err := x.executor.Do(ctx, func(ctx context.Context) error {
			out, perr := x.extractor.ExtractTasks(ctx, prompt)
			if perr != nil {
				return perr
			}
			raw = out
			return nil
		})
		ended := time.Now().UTC()

		if x.metrics != nil {
			x.metrics.Observe(track.ProviderLatency(name), ended.Sub(started))
		}

		if err != nil {
			// Transport-level failure; the re-prompt budget is only for
			// responses that came back but did not validate
			x.record(ctx, jobID, noteID, name, domain.AttemptOutcomeError,
				provider.Kind(err), nil, started, ended)
			if x.metrics != nil {
				x.metrics.Inc(track.ProviderCallCounter(name, "error"))
			}
			return nil, err
		}

		result, verr := x.parseAndValidate(raw)
		if verr != nil {
			lastInvalid = verr
			x.record(ctx, jobID, noteID, name, domain.AttemptOutcomeError,
				kindInvalidOutput, nil, started, ended)
			if x.metrics != nil {
				x.metrics.Inc(track.ProviderCallCounter(name, "invalid_output"))
			}
			log.Warn("extraction output rejected, re-prompting",
				"attempt", attempt,
				"max_attempts", x.maxAttempts,
				"error", verr)
			continue
		}

		x.record(ctx, jobID, noteID, name, domain.AttemptOutcomeSuccess,
			"", result.Confidence, started, ended)
		if x.metrics != nil {
			x.metrics.Inc(track.ProviderCallCounter(name, "success"))
		}
		log.Info("extraction succeeded",
			"attempt", attempt,
			"task_count", len(result.Tasks))
		return result, nil
	}

	return nil, &ExtractionInvalidError{Attempts: x.maxAttempts, Err: lastInvalid}
}

// admit takes a token for the extraction provider. This stage has no
// failover candidate, so a denial waits the bucket out instead.
func (x *StructuredExtractor) admit(ctx context.Context, jobID, noteID uuid.UUID, name string) error {
	err := x.limiter.Allow(name)
	if err == nil {
		return nil
	}

	now := time.Now().UTC()
	x.record(ctx, jobID, noteID, name, domain.AttemptOutcomeRateLimited,
		provider.KindRateLimited, nil, now, now)
	if x.metrics != nil {
		x.metrics.Inc(track.ProviderCallCounter(name, "rate_limited"))
	}

	logger.FromContext(ctx).Info("extraction provider rate limited, waiting for a token",
		"provider", name)
	if werr := x.limiter.Wait(ctx, name); werr != nil {
		return fmt.Errorf("rate limit wait aborted: %w", werr)
	}
	return nil
}

// parseAndValidate decodes a model response and checks it against the result
// schema. The returned error is the feedback for the next re-prompt.
func (x *StructuredExtractor) parseAndValidate(raw string) (*ExtractionResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, errors.New("response contains no JSON object")
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := x.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("response failed schema validation: %w", err)
	}
	for i, task := range result.Tasks {
		if task.Deadline == "" {
			continue
		}
		if _, err := parseDeadline(task.Deadline); err != nil {
			return nil, fmt.Errorf("task %d has an invalid deadline %q", i, task.Deadline)
		}
	}
	return &result, nil
}

func (x *StructuredExtractor) record(
	ctx context.Context,
	jobID, noteID uuid.UUID,
	providerName string,
	outcome domain.AttemptOutcome,
	errKind string,
	confidence *float64,
	startedAt, endedAt time.Time,
) {
	recordAttempt(ctx, x.attempts, jobID, noteID, providerName,
		domain.StageExtraction, outcome, errKind, confidence, startedAt, endedAt)
}

// extractJSON returns the first top-level JSON object in the text. Models
// occasionally wrap their output in prose or code fences despite being told
// not to.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseDeadline parses a task deadline, accepting RFC 3339 timestamps and
// plain dates.
func parseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// extractionPrompt is the strict-schema instruction sent to the model. The
// transcript, and on re-prompts the previous rejection, are appended after it.
const extractionPrompt = `You are an assistant that turns voice note transcripts into structured notes.

Analyze the transcript and return ONLY a JSON object with this exact shape:

{
  "summary": "2-4 sentence summary of the transcript",
  "tasks": [
    {
      "description": "actionable item mentioned in the transcript",
      "priority": "low | medium | high",
      "deadline": "YYYY-MM-DD, omit when no deadline was mentioned",
      "assignees": ["names mentioned as responsible, omit when none"]
    }
  ],
  "confidence": 0.0
}

Rules:
- "summary" is required and must not be empty.
- "tasks" may be empty when the transcript contains no actionable items.
- "priority" must be exactly one of: low, medium, high.
- Do not invent tasks, deadlines or people that are not in the transcript.
- Return only the JSON object, with no surrounding text and no code fences.`

// buildExtractionPrompt assembles the prompt for one attempt. After a
// rejected response the rejection reason is included so the model can fix
// what was wrong instead of repeating it.
func buildExtractionPrompt(transcript string, lastInvalid error) string {
	var b strings.Builder
	b.WriteString(extractionPrompt)
	if lastInvalid != nil {
		b.WriteString("\n\nYour previous response was rejected: ")
		b.WriteString(lastInvalid.Error())
		b.WriteString("\nCorrect the problem and respond again with only the JSON object.")
	}
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)
	return b.String()
}
