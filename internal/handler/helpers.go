package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
)

// parseUUID validates and parses a UUID string
func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

// pathID reads the {id} path value and checks it is a UUID. On failure it
// writes the 400 response and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := parseUUID(id); err != nil {
		respondProblem(w, r, http.StatusBadRequest, "invalid_id", "Flashcard ID must be a valid UUID", nil)
		return "", false
	}
	return id, true
}

// decodeFailure reports a body decoding error: wrong field types are
// validation errors, oversize bodies are 413, anything else is invalid JSON.
func decodeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var typeErr *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		respondProblem(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
	case errors.As(err, &typeErr):
		fe := typeErrorField(typeErr, -1)
		respondProblem(w, r, http.StatusBadRequest, "validation_error", fe.Field+": "+fe.Message, nil)
	default:
		respondProblem(w, r, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON", nil)
	}
}

// typeErrorField describes a JSON type mismatch as a field error.
func typeErrorField(e *json.UnmarshalTypeError, index int) domain.FieldError {
	field := e.Field
	if field == "" {
		field = "root"
	}
	return domain.FieldError{
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf("Expected %s, received %s", e.Type.Kind(), e.Value),
	}
}

// respondCached writes data as JSON with caching headers and answers a
// matching If-None-Match with 304. An empty etag is derived from the body.
func respondCached(w http.ResponseWriter, r *http.Request, data interface{}, cacheControl, etag string) {
	payload, err := json.Marshal(data)
	if err != nil {
		respondProblem(w, r, http.StatusInternalServerError, "internal_server_error", "failed to encode response", nil)
		return
	}

	if etag == "" {
		h := fnv.New64a()
		h.Write(payload)
		etag = fmt.Sprintf(`W/"%x"`, h.Sum64())
	}

	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("ETag", etag)

	if etagMatches(r.Header.Values("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// etagMatches applies the weak comparison If-None-Match calls for: any
// listed tag, or "*", matches regardless of a W/ prefix.
func etagMatches(header []string, etag string) bool {
	for _, line := range header {
		for _, candidate := range strings.Split(line, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "*" {
				return true
			}
			if candidate != "" && strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
				return true
			}
		}
	}
	return false
}
