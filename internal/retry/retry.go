// Package retry executes provider calls under a bounded exponential backoff
// policy. Each attempt runs inside its own timeout, transient failures are
// retried until the attempt budget runs out, and permanent failures stop the
// loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/provider"
	"github.com/echoscribe/echoscribe-api/internal/redact"
)

// Policy describes how an Executor runs an operation. Delays start at
// InitialBackoff, grow by Multiplier per retry with jitter, and are capped at
// one minute.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64

	// AttemptTimeout bounds each individual attempt. Zero means attempts are
	// bounded only by the caller's context.
	AttemptTimeout time.Duration
}

// Operation is a single attempt of some provider call. The context passed in
// carries the per-attempt timeout and must be honoured by the call.
type Operation func(ctx context.Context) error

// ExhaustedError is returned when every attempt failed with a retryable
// error. It wraps the error from the final attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err is an exhausted retry budget.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// Executor runs operations under a fixed Policy. It is stateless apart from
// the policy and safe for concurrent use.
type Executor struct {
	policy Policy
}

// NewExecutor creates an Executor after validating the policy.
func NewExecutor(policy Policy) (*Executor, error) {
	if policy.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry policy: max attempts must be at least 1, got %d", policy.MaxAttempts)
	}
	if policy.InitialBackoff <= 0 {
		return nil, fmt.Errorf("retry policy: initial backoff must be positive, got %s", policy.InitialBackoff)
	}
	if policy.Multiplier < 1 {
		return nil, fmt.Errorf("retry policy: multiplier must be at least 1, got %g", policy.Multiplier)
	}
	if policy.AttemptTimeout < 0 {
		return nil, fmt.Errorf("retry policy: attempt timeout must not be negative, got %s", policy.AttemptTimeout)
	}
	return &Executor{policy: policy}, nil
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails permanently, exhausts the attempt
// budget, or ctx is done.
//
// The error returned is one of:
//   - nil when an attempt succeeded
//   - the operation's error unchanged when it was not retryable
//   - ctx.Err(), possibly via the operation, when the caller's context ended
//   - an ExhaustedError wrapping the final attempt's error otherwise
func (e *Executor) Do(ctx context.Context, op Operation) error {
	log := logger.FromContext(ctx)

	var attempts int
	wrapped := func() error {
		attempts++

		attemptCtx := ctx
		if e.policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.policy.AttemptTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if !provider.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		log.Debug("retrying after failure",
			slog.Int("attempt", attempts),
			slog.Duration("backoff", next),
			slog.String("error", redact.Error(err)))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.InitialBackoff
	b.Multiplier = e.policy.Multiplier
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(e.policy.MaxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(wrapped, policy, notify)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// The caller's context ended; the budget was cut short, not exhausted.
		return err
	}
	if !provider.Retryable(err) {
		return err
	}
	return &ExhaustedError{Attempts: attempts, Err: err}
}
