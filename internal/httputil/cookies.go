package httputil

import (
	"net/http"

	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
)

// Cookie names shared with the browser client.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// SetSessionCookies writes both tokens. The browser client reads them, so
// they are not HttpOnly.
func SetSessionCookies(w http.ResponseWriter, accessToken, refreshToken string, secure bool) {
	maxAge := int(config.SessionCookieMaxAge.Seconds())
	pairs := [][2]string{
		{AccessTokenCookie, accessToken},
		{RefreshTokenCookie, refreshToken},
	}
	for _, kv := range pairs {
		http.SetCookie(w, &http.Cookie{
			Name:     kv[0],
			Value:    kv[1],
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: false,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ClearSessionCookies expires both token cookies.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SessionTokens reads the token pair from cookies. An Authorization bearer
// header overrides the access cookie for API clients.
func SessionTokens(r *http.Request) (accessToken, refreshToken string) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		accessToken = c.Value
	}
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && (h[:7] == "Bearer " || h[:7] == "bearer ") {
		accessToken = h[7:]
	}
	return accessToken, refreshToken
}
