package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Conflict reasons reported by ConflictError.
const (
	ConflictLimitExceeded = "flashcard_limit_exceeded"
	ConflictDuplicate     = "duplicate_flashcard"
)

// FieldError is a single failed field. Index is the position inside a
// batch, or -1 outside of one.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError indicates invalid input. Code is a short machine-readable
// reason ("validation_error", "missing_required_fields", ...).
type ValidationError struct {
	Code    string
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Is allows errors.Is() to match against ErrValidation
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a plain validation error with the generic code.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Code: "validation_error", Message: fmt.Sprintf(format, args...)}
}

// BatchValidationError lists every failing field of every failing item in a
// batch. It is reported as 422 so callers can tell it apart from a malformed
// request.
type BatchValidationError struct {
	Errors []FieldError
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s) found in batch", len(e.Errors))
}

func (e *BatchValidationError) StatusCode() int { return http.StatusUnprocessableEntity }

func (e *BatchValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError represents a resource conflict. Reason tells limit-exceeded
// apart from duplicate content.
type ConflictError struct {
	Message      string
	Reason       string
	ResourceType string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PayloadTooLargeError is returned when a batch carries more items than allowed.
type PayloadTooLargeError struct {
	Message string
}

func (e *PayloadTooLargeError) Error() string { return e.Message }

func (e *PayloadTooLargeError) StatusCode() int { return http.StatusRequestEntityTooLarge }

func (e *PayloadTooLargeError) Is(target error) bool { return target == ErrPayloadTooLarge }
