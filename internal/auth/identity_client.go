package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
)

// ProviderError is a rejection returned by the identity provider. Message is
// the provider's human-readable text ("Invalid login credentials", ...),
// which clients translate for display.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Is lets 4xx rejections match domain.ErrUnauthorized.
func (e *ProviderError) Is(target error) bool {
	return target == domain.ErrUnauthorized && e.Status >= 400 && e.Status < 500
}

var (
	_ IdentityProvider = (*IdentityClient)(nil)
	_ AccountManager   = (*IdentityClient)(nil)
)

// IdentityClient talks to the Supabase Auth REST API with the anon key.
type IdentityClient struct {
	supabaseURL string
	anonKey     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewIdentityClient creates a client for supabaseURL (e.g. http://127.0.0.1:54321).
func NewIdentityClient(supabaseURL, anonKey string, logger *slog.Logger) *IdentityClient {
	return &IdentityClient{
		supabaseURL: strings.TrimRight(supabaseURL, "/"),
		anonKey:     anonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// GetUser fetches the user behind accessToken.
func (c *IdentityClient) GetUser(ctx context.Context, accessToken string) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("get user: %w", domain.ErrUnauthorized)
	}
	return &user, nil
}

// RefreshSession exchanges refreshToken for a new session.
func (c *IdentityClient) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &session); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("refresh session: empty access token: %w", domain.ErrUnauthorized)
	}

	c.logger.Debug("session refreshed")
	return &session, nil
}

// SignInWithPassword starts a session with e-mail and password.
func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session behind accessToken.
func (c *IdentityClient) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SignUp registers a new account. Projects that require e-mail confirmation
// answer with the bare user; otherwise the response is a full session.
func (c *IdentityClient) SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error) {
	body := map[string]string{"email": email, "password": password}

	var resp struct {
		models.Session
		models.AuthUser
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		session := resp.Session
		return &models.SignUpResult{User: session.User, Session: &session}, nil
	}
	user := resp.AuthUser
	return &models.SignUpResult{User: &user}, nil
}

// RecoverPassword e-mails a password-reset link. The link lands on
// redirectTo with a recovery session in its fragment.
func (c *IdentityClient) RecoverPassword(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.do(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// UpdatePassword sets a new password for the user behind accessToken.
func (c *IdentityClient) UpdatePassword(ctx context.Context, accessToken, password string) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, map[string]string{"password": password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *IdentityClient) do(ctx context.Context, method, path, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.supabaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseProviderError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseProviderError reads the several error shapes GoTrue has used over
// time: {msg, error_code}, {error, error_description} and {message}.
func parseProviderError(status int, body []byte) error {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorCode        string `json:"error_code"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)

	pe := &ProviderError{Status: status, Code: payload.ErrorCode}
	if pe.Code == "" {
		pe.Code = payload.Error
	}

	switch {
	case payload.Msg != "":
		pe.Message = payload.Msg
	case payload.ErrorDescription != "":
		pe.Message = payload.ErrorDescription
	case payload.Message != "":
		pe.Message = payload.Message
	case payload.Error != "":
		pe.Message = payload.Error
	default:
		pe.Message = fmt.Sprintf("identity provider returned status %d", status)
	}

	return pe
}

// AsProviderError unwraps err into a *ProviderError if it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
