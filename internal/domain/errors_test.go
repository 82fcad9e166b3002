package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{"validation", NewValidationError("bad %s", "input"), ErrValidation, http.StatusBadRequest},
		{"batch", &BatchValidationError{Errors: []FieldError{{Index: 0, Field: "front"}}}, ErrValidation, http.StatusUnprocessableEntity},
		{"conflict", &ConflictError{Message: "dup", Reason: ConflictDuplicate}, ErrConflict, http.StatusConflict},
		{"too large", &PayloadTooLargeError{Message: "too many"}, ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}

			var httpErr HTTPError
			if !errors.As(wrapped, &httpErr) {
				t.Fatalf("%T does not implement HTTPError", tt.err)
			}
			if httpErr.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", httpErr.StatusCode(), tt.status)
			}
		})
	}
}

func TestBatchValidationError_Message(t *testing.T) {
	err := &BatchValidationError{Errors: []FieldError{{Index: 0}, {Index: 3}}}
	if got, want := err.Error(), "2 validation error(s) found in batch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
