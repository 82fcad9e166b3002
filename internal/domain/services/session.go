package services

import (
	"context"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
)

// EstablishSessionRequest is the token pair a client pushes after logging in
// with the identity provider.
type EstablishSessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authentication is the outcome of checking a request's session.
// Refreshed is set when the access token had expired and was renewed; the
// caller must write the new tokens back to the cookies.
type Authentication struct {
	Claims    *models.SupabaseClaims
	Refreshed *models.Session
}

// SessionService verifies and synchronizes identity-provider sessions.
type SessionService interface {
	// EstablishSession verifies the token pair and confirms with the provider
	// that the session is live. It does not touch cookies.
	EstablishSession(ctx context.Context, req *EstablishSessionRequest) (*models.AuthUser, error)

	// Authenticate checks an access token, refreshing it once with the
	// refresh token when it has expired.
	Authenticate(ctx context.Context, accessToken, refreshToken string) (*Authentication, error)
}
