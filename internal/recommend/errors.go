package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GenerationErrorKind classifies why a generation attempt failed.
type GenerationErrorKind string

const (
	// GenerationBackendUnavailable means the LLM backend could not be reached
	// or returned a server-side failure.
	GenerationBackendUnavailable GenerationErrorKind = "backend_unavailable"
	// GenerationRateLimited means the backend rejected the request for quota
	// or throttling reasons.
	GenerationRateLimited GenerationErrorKind = "rate_limited"
	// GenerationTimeout means the call exceeded its deadline.
	GenerationTimeout GenerationErrorKind = "timeout"
	// GenerationMalformedOutput means the backend responded but the output is
	// unusable (e.g. blank). Retrying will not help.
	GenerationMalformedOutput GenerationErrorKind = "malformed_output"
)

// GenerationError wraps a failed generation attempt with its classification.
type GenerationError struct {
	// Kind classifies the failure.
	Kind GenerationErrorKind
	// Err is the underlying cause. May be nil for malformed output.
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ClassifyGenerationError wraps err in a GenerationError with the kind
// inferred from the failure mode. Deadline errors map to Timeout, throttling
// responses to RateLimited, everything else to BackendUnavailable.
func ClassifyGenerationError(err error) *GenerationError {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &GenerationError{Kind: GenerationTimeout, Err: err}
	case isRateLimitMessage(err):
		return &GenerationError{Kind: GenerationRateLimited, Err: err}
	default:
		return &GenerationError{Kind: GenerationBackendUnavailable, Err: err}
	}
}

// isRateLimitMessage sniffs throttling out of backend error text. The eino
// model wrappers surface provider errors as opaque strings, so matching on
// the usual markers is the best available signal.
func isRateLimitMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}

// IsRetryableGeneration reports whether the error is worth another attempt.
// Malformed output is final — the backend answered, it just answered badly.
func IsRetryableGeneration(err error) bool {
	var ge *GenerationError
	if !errors.As(err, &ge) {
		return true
	}
	return ge.Kind != GenerationMalformedOutput
}
