package client

import (
	"errors"
	"fmt"
)

// Error classes matched by APIError via errors.Is.
var (
	ErrNotFound     = errors.New("lumina: not found")
	ErrInvalidInput = errors.New("lumina: invalid input")
	ErrUnauthorized = errors.New("lumina: unauthorized")
	ErrTimeout      = errors.New("lumina: timeout")
	ErrUnavailable  = errors.New("lumina: unavailable")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("lumina: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("lumina: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the error code to one of the package error classes.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return ErrNotFound
	case "bad_request", "validation_failed", "vector_dim_mismatch",
		"unsupported_media_type", "request_too_large":
		return ErrInvalidInput
	case "unauthorized":
		return ErrUnauthorized
	case "timeout":
		return ErrTimeout
	case "index_unavailable", "collection_missing", "rerank_unavailable",
		"embedding_provider_error", "detection_unavailable":
		return ErrUnavailable
	}
	return nil
}
