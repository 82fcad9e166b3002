package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxBodyBytes caps request bodies. A full batch of 50 cards with 2000-char
// sides fits comfortably.
const MaxBodyBytes = 1 << 20

// ParseJSON decodes JSON from the request body into the given destination.
// It limits the request body size to prevent abuse.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

// QueryParam returns a pointer to the named query parameter, or nil when it
// is absent. An empty value counts as present.
func QueryParam(r *http.Request, name string) *string {
	values, ok := r.URL.Query()[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
