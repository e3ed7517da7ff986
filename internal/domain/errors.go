package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed request rejected before any collaborator call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrIndexUnavailable signals that the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrCollectionMissing signals that the target collection has not been initialized.
	ErrCollectionMissing = errors.New("collection missing")
	// ErrFilterOnlyNotSupported signals that the index backend cannot run a search without a vector.
	ErrFilterOnlyNotSupported = errors.New("filter-only search not supported by backend")

	// ErrRerankUnavailable signals a reranking (scoring) failure.
	ErrRerankUnavailable = errors.New("rerank unavailable")
	// ErrCacheFailure signals a response cache failure. Never surfaced to clients.
	ErrCacheFailure = errors.New("cache failure")
	// ErrTimeout signals that a stage exceeded the request budget.
	ErrTimeout = errors.New("timeout")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrDetectionUnavailable signals an object detection failure.
	ErrDetectionUnavailable = errors.New("detection unavailable")
)

// InvalidInputError carries the offending field for client errors.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NewInvalidInput creates an invalid input error for a field.
func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
