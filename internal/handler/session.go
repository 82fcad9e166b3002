package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// SignOuter revokes a session at the identity provider.
type SignOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}

// SessionHandler turns client-side sign-ins into server cookies.
type SessionHandler struct {
	service      services.SessionService
	signOuter    SignOuter
	cookieSecure bool
	logger       *slog.Logger
}

// NewSessionHandler creates a new session handler. signOuter may be nil.
func NewSessionHandler(service services.SessionService, signOuter SignOuter, cookieSecure bool, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service:      service,
		signOuter:    signOuter,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// EstablishSession stores a verified token pair in cookies.
// POST /api/auth/session
func (h *SessionHandler) EstablishSession(w http.ResponseWriter, r *http.Request) {
	var req services.EstablishSessionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	user, err := h.service.EstablishSession(r.Context(), &req)
	if err != nil {
		var validErr *domain.ValidationError
		if errors.As(err, &validErr) {
			respondProblem(w, r, http.StatusBadRequest, "validation_error", validErr.Message, nil)
			return
		}
		if errors.Is(err, domain.ErrUnauthorized) {
			httputil.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("session verification failed", "error", err)
		httputil.RespondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to verify session after setting cookies",
		})
		return
	}

	httputil.SetSessionCookies(w, req.AccessToken, req.RefreshToken, h.cookieSecure)
	h.logger.Info("session established", "user_id", user.ID)

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// EndSession signs out and clears the cookies. Provider failures are logged
// only; the cookies are cleared regardless.
// DELETE /api/auth/session
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	accessToken, _ := httputil.SessionTokens(r)
	if accessToken != "" && h.signOuter != nil {
		if err := h.signOuter.SignOut(r.Context(), accessToken); err != nil {
			h.logger.Warn("provider sign-out failed", "error", err)
		}
	}

	httputil.ClearSessionCookies(w, h.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := httputil.GetClaims(r)
	if claims == nil {
		respondProblem(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        claims.GetUserID(),
		"email":     claims.Email,
		"role":      claims.Role,
		"sessionId": claims.SessionID,
	})
}
