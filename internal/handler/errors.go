package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// problemTitles gives each problem type a human-readable title.
var problemTitles = map[string]string{
	"validation_error":         "Validation Failed",
	"missing_required_fields":  "Missing Required Fields",
	"no_updates_provided":      "No Updates Provided",
	"empty_batch":              "Empty Batch",
	"invalid_json":             "Invalid JSON",
	"invalid_id":               "Invalid Flashcard ID",
	"flashcard_not_found":      "Flashcard Not Found",
	"flashcard_limit_exceeded": "Flashcard Limit Exceeded",
	"duplicate_flashcard":      "Duplicate Flashcard",
	"payload_too_large":        "Payload Too Large",
	"batch_validation_error":   "Batch Validation Failed",
	"unauthorized":             "Unauthorized",
	"forbidden":                "Forbidden",
	"not_found":                "Not Found",
	"conflict":                 "Conflict",
	"internal_server_error":    "Internal Server Error",
}

// respondProblem writes a problem whose instance is the request path.
func respondProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string, extras map[string]interface{}) {
	title, ok := problemTitles[code]
	if !ok {
		title = http.StatusText(status)
	}
	httputil.RespondProblem(w, httputil.ProblemDetail{
		Type:     code,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		Extra:    extras,
	})
}

// handleError converts domain errors to problem responses. Unknown errors
// are logged and reported without detail.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		batchErr    *domain.BatchValidationError
		validErr    *domain.ValidationError
		conflictErr *domain.ConflictError
		tooLargeErr *domain.PayloadTooLargeError
	)

	switch {
	case errors.As(err, &batchErr):
		respondProblem(w, r, http.StatusUnprocessableEntity, "batch_validation_error", batchErr.Error(),
			map[string]interface{}{"errors": batchErr.Errors})
	case errors.As(err, &validErr):
		respondProblem(w, r, http.StatusBadRequest, validErr.Code, validErr.Message, nil)
	case errors.Is(err, domain.ErrValidation):
		respondProblem(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &conflictErr):
		code := conflictErr.Reason
		if code == "" {
			code = "conflict"
		}
		respondProblem(w, r, http.StatusConflict, code, conflictErr.Error(), nil)
	case errors.As(err, &tooLargeErr):
		respondProblem(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", tooLargeErr.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		respondProblem(w, r, http.StatusNotFound, "not_found", "Resource not found", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		respondProblem(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
	case errors.Is(err, domain.ErrForbidden):
		respondProblem(w, r, http.StatusForbidden, "forbidden", "Forbidden", nil)
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"user_id", httputil.GetUserID(r),
			"error", err,
		)
		respondProblem(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred", nil)
	}
}
