// Package errors provides standardized error handling for the session core.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input validation (never reaches the network)
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Backend transport
	ErrCodeBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"
	ErrCodeBackendStatus      ErrorCode = "BACKEND_STATUS"
	ErrCodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"

	// Per-capability failures
	ErrCodeDetectionFailed      ErrorCode = "DETECTION_FAILED"
	ErrCodeRecommendationFailed ErrorCode = "RECOMMENDATION_FAILED"
	ErrCodeExternalSearchFailed ErrorCode = "EXTERNAL_SEARCH_FAILED"
	ErrCodeGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationInFlight   ErrorCode = "GENERATION_IN_FLIGHT"
	ErrCodeChatFailed           ErrorCode = "CHAT_FAILED"

	// Persistence
	ErrCodePersistenceCorrupt ErrorCode = "PERSISTENCE_CORRUPT"
	ErrCodePersistenceFailed  ErrorCode = "PERSISTENCE_FAILED"

	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// ErrStaleResponse marks a response that arrived for a superseded request.
// It is not a failure: coordinators drop the response and callers treat the
// invocation as a no-op.
var ErrStaleResponse = stderrors.New("stale response discarded")

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input validation error.
// Validation errors are surfaced before any network call is attempted.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Required input missing or invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendUnreachableError creates a retryable transport error.
func NewBackendUnreachableError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnreachable,
		Message:   "Backend service unreachable",
		Details:   fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendStatusError creates a retryable non-2xx response error.
func NewBackendStatusError(endpoint string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendStatus,
		Message:   "Backend service returned an error status",
		Details:   fmt.Sprintf("endpoint: %s, status: %d", endpoint, status),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError creates a retryable decode error.
func NewMalformedResponseError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Backend response could not be decoded",
		Details:   fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDetectionFailedError wraps a failed detection call.
func NewDetectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDetectionFailed,
		Message:   "Furniture detection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecommendationFailedError wraps a failed similarity-search call.
func NewRecommendationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecommendationFailed,
		Message:   "Similarity search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalSearchFailedError wraps a failed shopping-search call. The
// search orchestrator degrades this leg to empty results instead of failing.
func NewExternalSearchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalSearchFailed,
		Message:   "External shopping search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError wraps a failed redesign generation call.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Design generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationInFlightError rejects a generation request while one is
// already pending. There is no queuing for the expensive generative call.
func NewGenerationInFlightError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationInFlight,
		Message:   "A generation request is already in flight",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChatFailedError wraps a failed chat turn.
func NewChatFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChatFailed,
		Message:   "Chat request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceCorruptError records malformed durable data. The collection
// degrades to empty; it is never fatal.
func NewPersistenceCorruptError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceCorrupt,
		Message:   "Stored collection is malformed, resetting to empty",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailedError wraps a durable-store access failure.
func NewPersistenceFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Durable store access failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the error code, normalizing unknown errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeUnknown
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidationFailed
}

// IsStale reports whether err marks a discarded stale response.
func IsStale(err error) bool {
	return stderrors.Is(err, ErrStaleResponse)
}

// IsRetryable reports whether the caller may re-invoke the operation.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// Normalize wraps an arbitrary error into a StandardError if it is not one.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeUnknown,
		Message:   "Unclassified error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
