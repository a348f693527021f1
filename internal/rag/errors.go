package rag

import (
	"context"
	"errors"
	"fmt"
)

// IndexErrorKind classifies vector store failures.
type IndexErrorKind string

const (
	// IndexDimensionMismatch means an upserted or queried vector's length
	// differs from the store's configured dimension. This is a configuration
	// error and must never be retried.
	IndexDimensionMismatch IndexErrorKind = "dimension_mismatch"
	// IndexNotFound means a referenced entry does not exist.
	IndexNotFound IndexErrorKind = "not_found"
)

// IndexError is returned by VectorStore implementations for contract
// violations the caller must surface rather than retry.
type IndexError struct {
	// Kind classifies the failure.
	Kind IndexErrorKind
	// Detail is a human-readable explanation.
	Detail string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s: %s", e.Kind, e.Detail)
}

// EmbeddingErrorKind classifies embedding backend failures.
type EmbeddingErrorKind string

const (
	// EmbeddingBackendUnavailable means the embedding backend failed or was
	// unreachable. Retryable.
	EmbeddingBackendUnavailable EmbeddingErrorKind = "backend_unavailable"
	// EmbeddingTimeout means the call exceeded its deadline. Retryable, and
	// distinct from a backend error so operators can tell the two apart.
	EmbeddingTimeout EmbeddingErrorKind = "timeout"
)

// EmbeddingError wraps a failure from an embedding backend.
type EmbeddingError struct {
	// Kind classifies the failure.
	Kind EmbeddingErrorKind
	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// ClassifyEmbeddingError wraps a raw backend error into an EmbeddingError,
// mapping context deadline expiry to the Timeout kind.
func ClassifyEmbeddingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &EmbeddingError{Kind: EmbeddingTimeout, Err: err}
	}
	return &EmbeddingError{Kind: EmbeddingBackendUnavailable, Err: err}
}

// IsRetryableEmbedding reports whether err is an EmbeddingError whose kind
// may be retried with backoff.
func IsRetryableEmbedding(err error) bool {
	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		return false
	}
	return ee.Kind == EmbeddingBackendUnavailable || ee.Kind == EmbeddingTimeout
}
