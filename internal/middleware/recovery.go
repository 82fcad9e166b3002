package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// Recovery middleware recovers from panics and returns a 500 problem
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					httputil.RespondProblem(w, httputil.ProblemDetail{
						Type:     "internal_server_error",
						Title:    "Internal Server Error",
						Status:   http.StatusInternalServerError,
						Detail:   "An unexpected error occurred",
						Instance: r.URL.Path,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
