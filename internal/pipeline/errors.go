package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyTranscript is the underlying cause recorded when a provider call
// succeeds but returns no text. Silence is never a successful transcription.
var ErrEmptyTranscript = errors.New("provider returned an empty transcript")

// TranscriptionUnavailableError reports that every provider in the failover
// chain was tried and none produced a transcript.
type TranscriptionUnavailableError struct {
	// Providers lists the chain in the order it was attempted.
	Providers []string
}

func (e *TranscriptionUnavailableError) Error() string {
	if len(e.Providers) == 0 {
		return "transcription unavailable: no providers attempted"
	}
	return fmt.Sprintf("transcription unavailable: all providers failed (%s)",
		strings.Join(e.Providers, ", "))
}

// IsTranscriptionUnavailable reports whether err means the whole provider
// chain was exhausted.
func IsTranscriptionUnavailable(err error) bool {
	var te *TranscriptionUnavailableError
	return errors.As(err, &te)
}

// ExtractionInvalidError reports that the language model kept producing
// output that failed JSON parsing or schema validation until the re-prompt
// budget ran out. It wraps the validation error from the final attempt.
type ExtractionInvalidError struct {
	Attempts int
	Err      error
}

func (e *ExtractionInvalidError) Error() string {
	return fmt.Sprintf("extraction output invalid after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExtractionInvalidError) Unwrap() error {
	return e.Err
}

// IsExtractionInvalid reports whether err means the extraction re-prompt
// budget was exhausted.
func IsExtractionInvalid(err error) bool {
	var ee *ExtractionInvalidError
	return errors.As(err, &ee)
}

// InvalidInputError reports input rejected before any provider was called,
// such as an empty transcript or one past the extraction size cap.
type InvalidInputError struct {
	Reason string
	Length int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid pipeline input: %s (length %d)", e.Reason, e.Length)
}

// IsInvalidInput reports whether err is an input rejection.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// TimeoutError reports that a run exceeded the pipeline's wall clock budget.
// Stage names the stage that was executing when the budget ran out.
type TimeoutError struct {
	Budget time.Duration
	Stage  string
}

func (e *TimeoutError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("pipeline exceeded wall clock budget of %s", e.Budget)
	}
	return fmt.Sprintf("pipeline exceeded wall clock budget of %s during %s", e.Budget, e.Stage)
}

// IsTimeout reports whether err is a wall clock budget violation.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
