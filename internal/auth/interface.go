package auth

import (
	"context"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
)

// JWTVerifier validates access tokens issued by the identity provider.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Expired tokens fail with an error matching both domain.ErrUnauthorized
	// and ErrTokenExpired.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}

// IdentityProvider is the subset of the Supabase Auth (GoTrue) REST API the
// service and its clients use.
type IdentityProvider interface {
	// GetUser confirms the access token belongs to a live session.
	GetUser(ctx context.Context, accessToken string) (*models.AuthUser, error)

	// RefreshSession exchanges a refresh token for a new token pair.
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)

	// SignInWithPassword starts a session with e-mail and password.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)

	// SignOut revokes the session behind accessToken.
	SignOut(ctx context.Context, accessToken string) error
}

// AccountManager covers the self-service account calls made by clients:
// registration and password recovery.
type AccountManager interface {
	// SignUp registers an account. The result has no session while the
	// e-mail address awaits confirmation.
	SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error)

	// RecoverPassword sends a password-reset link that returns to redirectTo.
	RecoverPassword(ctx context.Context, email, redirectTo string) error

	// UpdatePassword changes the password of the user behind accessToken.
	UpdatePassword(ctx context.Context, accessToken, password string) (*models.AuthUser, error)
}
