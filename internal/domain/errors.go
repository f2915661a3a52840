package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeUnsupportedMedia ErrorCode = "UNSUPPORTED_MEDIA_TYPE"

	// Field level validation codes
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Quiz specific errors
	CodeQuizNotFound    ErrorCode = "QUIZ_NOT_FOUND"
	CodeNoContent       ErrorCode = "NO_CONTENT"
	CodeGeneration      ErrorCode = "GENERATION_ERROR"
	CodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
	CodeQueueFull       ErrorCode = "QUEUE_FULL"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a detail that is returned to clients alongside the error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Context: e.Context,
	})
}

func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewQuizNotFoundError(quizID string) *DomainError {
	return NewError(CodeQuizNotFound, "Quiz not found", nil).WithContext("quiz_id", quizID)
}

func NewForbiddenError(message string) *DomainError {
	return NewError(CodeForbidden, message, nil)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeValidation, message, nil)
}

func NewUnsupportedMediaTypeError(contentType string) *DomainError {
	return NewError(CodeUnsupportedMedia, "Unsupported content type", nil).WithContext("content_type", contentType)
}

// NewNoContentError signals that no usable text could be obtained from the input.
func NewNoContentError(cause error) *DomainError {
	return NewError(CodeNoContent, "No content to generate a quiz from", cause)
}

// NewGenerationError wraps a model failure. The cause may carry an *UpstreamError.
func NewGenerationError(cause error) *DomainError {
	return NewError(CodeGeneration, "Quiz generation failed", cause)
}

func NewMalformedOutputError(detail string, cause error) *DomainError {
	return NewError(CodeMalformedOutput, "Model returned malformed output", cause).WithContext("detail", detail)
}

func NewQueueFullError() *DomainError {
	return NewError(CodeQueueFull, "Generation queue is full, try again later", nil)
}

// UpstreamError annotates a model provider failure with the HTTP status class it maps to.
type UpstreamError struct {
	Status     int
	RetryAfter int // seconds, 0 when unknown
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
