// Package auth keeps server-side sessions in step with the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	identity "github.com/LukePietrzyk/10DevsLukasz/internal/auth"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
)

// ErrSessionNotVerified means the tokens were accepted but the provider could
// not confirm a live session for them.
var ErrSessionNotVerified = errors.New("failed to verify session after setting cookies")

// sessionService implements services.SessionService
type sessionService struct {
	verifier identity.JWTVerifier
	provider identity.IdentityProvider
	logger   *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(
	verifier identity.JWTVerifier,
	provider identity.IdentityProvider,
	logger *slog.Logger,
) services.SessionService {
	return &sessionService{
		verifier: verifier,
		provider: provider,
		logger:   logger,
	}
}

// EstablishSession verifies the pair and confirms the session with the provider.
func (s *sessionService) EstablishSession(ctx context.Context, req *services.EstablishSessionRequest) (*models.AuthUser, error) {
	err := validation.ValidateStruct(req,
		validation.Field(&req.AccessToken, validation.Required.Error("access_token is required")),
		validation.Field(&req.RefreshToken, validation.Required.Error("refresh_token is required")),
	)
	if err != nil {
		return nil, domain.NewValidationError("%v", err)
	}

	claims, err := s.verifier.VerifyToken(req.AccessToken)
	if err != nil {
		s.logger.Info("session rejected", "error", err)
		return nil, fmt.Errorf("invalid session tokens: %w", err)
	}

	user, err := s.provider.GetUser(ctx, req.AccessToken)
	if err != nil {
		s.logger.Error("session verification failed",
			"user_id", claims.GetUserID(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSessionNotVerified, err)
	}

	if user.ID != claims.GetUserID() {
		s.logger.Error("session user mismatch",
			"token_user_id", claims.GetUserID(),
			"provider_user_id", user.ID,
		)
		return nil, ErrSessionNotVerified
	}

	s.logger.Info("session established",
		"user_id", user.ID,
		"session_id", claims.SessionID,
	)

	return user, nil
}

// Authenticate verifies accessToken, falling back to one refresh when the
// token has expired (or is missing) and a refresh token is available.
func (s *sessionService) Authenticate(ctx context.Context, accessToken, refreshToken string) (*services.Authentication, error) {
	if accessToken != "" {
		claims, err := s.verifier.VerifyToken(accessToken)
		if err == nil {
			return &services.Authentication{Claims: claims}, nil
		}
		if !errors.Is(err, identity.ErrTokenExpired) || refreshToken == "" {
			return nil, err
		}
	} else if refreshToken == "" {
		return nil, fmt.Errorf("no session: %w", domain.ErrUnauthorized)
	}

	session, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		s.logger.Info("session refresh failed", "error", err)
		return nil, fmt.Errorf("%w: refresh failed: %v", domain.ErrUnauthorized, err)
	}

	claims, err := s.verifier.VerifyToken(session.AccessToken)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("session refreshed", "user_id", claims.GetUserID())

	return &services.Authentication{Claims: claims, Refreshed: session}, nil
}
