package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// publicPaths are reachable without a session.
var publicPaths = map[string]bool{
	"/":                 true,
	"/health":           true,
	"/auth/login":       true,
	"/auth/register":    true,
	"/auth/forgot":      true,
	"/auth/reset":       true,
	"/api/auth/session": true,
}

var publicPrefixes = []string{"/assets/"}

// IsPublicPath reports whether path bypasses the session gate.
func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SessionGate authenticates requests from the session cookies or a bearer
// header. Public paths pass through, with the user attached when the
// session is valid. When the session was refreshed the new pair is written
// back as cookies. Unauthenticated API calls get 401; page requests are
// redirected to the login page.
func SessionGate(sessions services.SessionService, cookieSecure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			public := IsPublicPath(r.URL.Path)

			accessToken, refreshToken := httputil.SessionTokens(r)
			if accessToken == "" && refreshToken == "" {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				reject(w, r)
				return
			}

			auth, err := sessions.Authenticate(r.Context(), accessToken, refreshToken)
			if err != nil {
				logger.Debug("session rejected", "path", r.URL.Path, "error", err)
				if public {
					next.ServeHTTP(w, r)
					return
				}
				reject(w, r)
				return
			}

			if auth.Refreshed != nil {
				httputil.SetSessionCookies(w, auth.Refreshed.AccessToken, auth.Refreshed.RefreshToken, cookieSecure)
				logger.Debug("session refreshed", "user_id", auth.Claims.GetUserID())
			}

			next.ServeHTTP(w, httputil.WithClaims(r, auth.Claims))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httputil.RespondProblem(w, httputil.ProblemDetail{
			Type:     "unauthorized",
			Title:    "Unauthorized",
			Status:   http.StatusUnauthorized,
			Detail:   "Authentication required",
			Instance: r.URL.Path,
		})
		return
	}

	target := "/auth/login?redirectTo=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}
