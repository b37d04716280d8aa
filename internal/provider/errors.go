package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error kind labels recorded on attempt audit rows.
const (
	KindTransient   = "transient"
	KindPermanent   = "permanent"
	KindRateLimited = "rate_limited"
	KindCapability  = "capability"
)

// TransientError indicates a provider call failed in a way that may resolve
// on retry, such as a timeout, a 5xx response or a dropped connection.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient provider error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError for the named provider.
func Transient(provider string, err error) error {
	return &TransientError{Provider: provider, Err: err}
}

// PermanentError indicates a provider call failed in a way retrying cannot
// fix, such as a malformed request, an authentication failure or unsupported
// input.
type PermanentError struct {
	Provider string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent provider error: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError for the named provider.
func Permanent(provider string, err error) error {
	return &PermanentError{Provider: provider, Err: err}
}

// RateLimitError indicates a call was denied because the provider's token
// bucket is empty. RetryAfter, when positive, is how long until a token is
// expected to be available.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limit exceeded, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limit exceeded", e.Provider)
}

// CapabilityError indicates a provider was asked for work it cannot perform.
// An empty Provider means no configured provider supports the capability.
type CapabilityError struct {
	Provider   string
	Capability Capability
}

func (e *CapabilityError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("no provider supports capability %q", e.Capability)
	}
	return fmt.Sprintf("provider %q does not support capability %q", e.Provider, e.Capability)
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsRateLimited reports whether err is a rate limit denial.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsCapability reports whether err is a capability mismatch.
func IsCapability(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// Retryable reports whether a failed call is worth trying again. Unclassified
// errors count as retryable; a provider opts out by returning a
// PermanentError or CapabilityError. Context cancellation is never retryable
// because it means the caller has given up.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsPermanent(err) || IsCapability(err) {
		return false
	}
	return true
}

// Kind returns the audit label for a provider error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRateLimited(err):
		return KindRateLimited
	case IsCapability(err):
		return KindCapability
	case IsPermanent(err):
		return KindPermanent
	default:
		return KindTransient
	}
}
