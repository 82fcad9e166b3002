// Package authflow drives a password login through its three phases: token
// retrieval from the identity provider, cookie sync with the server, and
// verification of the server-side session. Registration and password
// recovery end in the same phases when the provider hands out a session.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	identity "github.com/LukePietrzyk/10DevsLukasz/internal/auth"
	"github.com/LukePietrzyk/10DevsLukasz/internal/client/api"
	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/i18n"
)

// State is a point in the login flow.
type State string

const (
	StateAnonymous          State = "anonymous"
	StateAuthenticating     State = "authenticating"
	StateSessionEstablished State = "session-established"
	StateSessionSynced      State = "session-synced"
	StateVerified           State = "verified"

	// StateAwaitingConfirmation follows a sign-up whose e-mail address has
	// not been confirmed yet. Logging in restarts the flow.
	StateAwaitingConfirmation State = "awaiting-confirmation"

	StateFailedTokenRetrieval State = "failed-token-retrieval"
	StateFailedSync           State = "failed-sync"
	StateFailedVerification   State = "failed-verification"
)

// Failed reports whether s is one of the failure states.
func (s State) Failed() bool {
	return s == StateFailedTokenRetrieval || s == StateFailedSync || s == StateFailedVerification
}

// transitions lists the allowed next states for each state. Every failure
// state may restart the flow.
var transitions = map[State][]State{
	StateAnonymous:            {StateAuthenticating},
	StateAuthenticating:       {StateSessionEstablished, StateFailedTokenRetrieval, StateAwaitingConfirmation},
	StateAwaitingConfirmation: {StateAuthenticating},
	StateSessionEstablished:   {StateSessionSynced, StateFailedSync},
	StateSessionSynced:        {StateVerified, StateFailedVerification},
	StateVerified:             {},
	StateFailedTokenRetrieval: {StateAuthenticating},
	StateFailedSync:           {StateAuthenticating},
	StateFailedVerification:   {StateAuthenticating},
}

var (
	// ErrInvalidTransition is returned when a phase is run out of order.
	ErrInvalidTransition = errors.New("invalid auth flow transition")

	// ErrInvalidRecoveryLink is returned for a reset link without a usable session.
	ErrInvalidRecoveryLink = errors.New("invalid recovery link")
)

// FlowError is a failed phase. Message is user-facing.
type FlowError struct {
	State   State
	Message string
	Err     error
}

func (e *FlowError) Error() string { return e.Message }

func (e *FlowError) Unwrap() error { return e.Err }

// Provider is the identity provider as seen by the client.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	identity.AccountManager
}

// SessionServer is the server side of the handoff.
type SessionServer interface {
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*models.AuthUser, error)
	Me(ctx context.Context) (*api.Me, error)
}

// Flow is one login attempt. It is safe for concurrent use.
type Flow struct {
	provider Provider
	server   SessionServer
	catalog  *i18n.Catalog
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	session *models.Session
	user    *api.Me
	message string
}

// New creates a flow in the anonymous state.
func New(provider Provider, server SessionServer, catalog *i18n.Catalog, logger *slog.Logger) *Flow {
	return &Flow{
		provider: provider,
		server:   server,
		catalog:  catalog,
		logger:   logger,
		state:    StateAnonymous,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the last user-facing error message.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// User returns the verified user, or nil before verification.
func (f *Flow) User() *api.Me {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateVerified {
		return nil
	}
	return f.user
}

// Login runs all three phases and stops at the first failure.
func (f *Flow) Login(ctx context.Context, email, password string) error {
	if err := f.Authenticate(ctx, email, password); err != nil {
		return err
	}
	if err := f.Sync(ctx); err != nil {
		return err
	}
	return f.Verify(ctx)
}

// ValidateCredentials checks the login form before any network call.
func (f *Flow) ValidateCredentials(email, password string) error {
	if err := f.validateEmail(email); err != nil {
		return err
	}
	return validation.Validate(password,
		validation.Required.Error(f.catalog.Message(i18n.LoginPasswordRequired)),
	)
}

// ValidateRegistration checks the sign-up form.
func (f *Flow) ValidateRegistration(email, password, confirm string) error {
	if err := f.validateEmail(email); err != nil {
		return err
	}
	return f.validateNewPassword(password, confirm)
}

func (f *Flow) validateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email),
		validation.Required.Error(f.catalog.Message(i18n.LoginEmailRequired)),
		is.EmailFormat.Error(f.catalog.Message(i18n.LoginEmailInvalid)),
	)
}

func (f *Flow) validateNewPassword(password, confirm string) error {
	tooShort := f.catalog.Message(i18n.PasswordTooShort, config.MinPasswordLength)
	err := validation.Validate(password,
		validation.Required.Error(tooShort),
		validation.RuneLength(config.MinPasswordLength, 0).Error(tooShort),
	)
	if err != nil {
		return err
	}
	return validation.Validate(confirm,
		validation.Required.Error(f.catalog.Message(i18n.PasswordConfirmRequired)),
		validation.In(password).Error(f.catalog.Message(i18n.PasswordMismatch)),
	)
}

// Authenticate obtains a token pair from the identity provider.
func (f *Flow) Authenticate(ctx context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ValidateCredentials(email, password); err != nil {
		return f.reject(err.Error(), err)
	}
	if err := f.start(); err != nil {
		return err
	}

	session, err := f.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return f.fail(StateFailedTokenRetrieval, f.providerMessage(err), err)
	}

	f.session = session
	return f.transition(StateSessionEstablished)
}

// Register signs a new account up. When the provider returns a session the
// flow goes on to sync and verify it like a login; otherwise it stops in
// awaiting-confirmation with the confirmation notice as its message.
func (f *Flow) Register(ctx context.Context, email, password, confirm string) error {
	established, err := f.SignUp(ctx, email, password, confirm)
	if err != nil || !established {
		return err
	}
	if err := f.Sync(ctx); err != nil {
		return err
	}
	return f.Verify(ctx)
}

// SignUp is the token phase of Register. It reports whether a session was
// established.
func (f *Flow) SignUp(ctx context.Context, email, password, confirm string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ValidateRegistration(email, password, confirm); err != nil {
		return false, f.reject(err.Error(), err)
	}
	if err := f.start(); err != nil {
		return false, err
	}

	result, err := f.provider.SignUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return false, f.fail(StateFailedTokenRetrieval, f.providerMessage(err), err)
	}

	if result.Session == nil {
		if err := f.transition(StateAwaitingConfirmation); err != nil {
			return false, err
		}
		f.message = f.catalog.Message(i18n.RegisterConfirmEmail)
		return false, nil
	}

	f.session = result.Session
	if f.session.User == nil {
		f.session.User = result.User
	}
	return true, f.transition(StateSessionEstablished)
}

// RequestPasswordReset asks the provider to e-mail a reset link that returns
// to redirectTo. It does not move the flow; the outcome is in Message.
func (f *Flow) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.validateEmail(email); err != nil {
		return f.reject(err.Error(), err)
	}
	if err := f.provider.RecoverPassword(ctx, strings.TrimSpace(email), redirectTo); err != nil {
		f.logger.Warn("password reset request failed", "error", err)
		return f.reject(f.providerMessage(err), err)
	}

	f.message = f.catalog.Message(i18n.ResetLinkSent)
	return nil
}

// CompleteRecovery sets a new password with the session carried by a reset
// link, then syncs and verifies that session.
func (f *Flow) CompleteRecovery(ctx context.Context, link, password, confirm string) error {
	if err := f.ResetPassword(ctx, link, password, confirm); err != nil {
		return err
	}
	if err := f.Sync(ctx); err != nil {
		return err
	}
	return f.Verify(ctx)
}

// ResetPassword is the token phase of CompleteRecovery.
func (f *Flow) ResetPassword(ctx context.Context, link, password, confirm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.validateNewPassword(password, confirm); err != nil {
		return f.reject(err.Error(), err)
	}
	session, err := ParseRecoveryLink(link)
	if err != nil {
		return f.reject(f.catalog.Message(i18n.ResetLinkInvalid), err)
	}
	if err := f.start(); err != nil {
		return err
	}

	user, err := f.provider.UpdatePassword(ctx, session.AccessToken, password)
	if err != nil {
		return f.fail(StateFailedTokenRetrieval, f.providerMessage(err), err)
	}

	session.User = user
	f.session = session
	f.message = f.catalog.Message(i18n.ResetPasswordUpdated)
	return f.transition(StateSessionEstablished)
}

// ChangePassword sets a new password for the verified user. The flow stays
// verified either way.
func (f *Flow) ChangePassword(ctx context.Context, password, confirm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateVerified {
		return fmt.Errorf("%w: change password from %s", ErrInvalidTransition, f.state)
	}
	if err := f.validateNewPassword(password, confirm); err != nil {
		return f.reject(err.Error(), err)
	}

	if _, err := f.provider.UpdatePassword(ctx, f.session.AccessToken, password); err != nil {
		f.logger.Warn("password change failed", "error", err)
		return f.reject(f.providerMessage(err), err)
	}

	f.message = f.catalog.Message(i18n.ResetPasswordUpdated)
	return nil
}

// ParseRecoveryLink reads the session the identity provider appends to the
// redirect URL of a reset e-mail:
// .../auth/reset#access_token=...&refresh_token=...&type=recovery
func ParseRecoveryLink(link string) (*models.Session, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecoveryLink, err)
	}
	values, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecoveryLink, err)
	}

	if desc := values.Get("error_description"); desc != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecoveryLink, desc)
	}
	if t := values.Get("type"); t != "" && t != "recovery" {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidRecoveryLink, t)
	}
	session := &models.Session{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		TokenType:    values.Get("token_type"),
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing tokens", ErrInvalidRecoveryLink)
	}
	return session, nil
}

// Sync hands the token pair to the server so it can set session cookies.
func (f *Flow) Sync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSessionEstablished {
		return fmt.Errorf("%w: sync from %s", ErrInvalidTransition, f.state)
	}

	if _, err := f.server.EstablishSession(ctx, f.session.AccessToken, f.session.RefreshToken); err != nil {
		return f.fail(StateFailedSync, f.catalog.Message(i18n.SessionSyncFailed), err)
	}
	return f.transition(StateSessionSynced)
}

// Verify asks the server who it thinks the caller is. The flow reaches
// verified only when the server sees the user that signed in.
func (f *Flow) Verify(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSessionSynced {
		return fmt.Errorf("%w: verify from %s", ErrInvalidTransition, f.state)
	}

	me, err := f.server.Me(ctx)
	if err != nil {
		return f.fail(StateFailedVerification, f.catalog.Message(i18n.SessionVerifyFailed), err)
	}
	if f.session.User != nil && f.session.User.ID != "" && f.session.User.ID != me.ID {
		return f.fail(StateFailedVerification, f.catalog.Message(i18n.SessionVerifyFailed),
			fmt.Errorf("server session belongs to %s, signed in as %s", me.ID, f.session.User.ID))
	}

	f.user = me
	return f.transition(StateVerified)
}

// Reset returns the flow to anonymous, dropping any tokens.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateAnonymous
	f.session, f.user = nil, nil
	f.message = ""
}

// start enters authenticating and forgets the previous attempt.
func (f *Flow) start() error {
	if err := f.transition(StateAuthenticating); err != nil {
		return err
	}
	f.message = ""
	f.session, f.user = nil, nil
	return nil
}

// providerMessage translates a provider rejection for display.
func (f *Flow) providerMessage(err error) string {
	providerMsg := ""
	if pe, ok := identity.AsProviderError(err); ok {
		providerMsg = pe.Message
	}
	return f.catalog.AuthError(providerMsg)
}

// reject records a failure that leaves the state unchanged.
func (f *Flow) reject(message string, cause error) error {
	f.message = message
	return &FlowError{State: f.state, Message: message, Err: cause}
}

func (f *Flow) transition(to State) error {
	for _, allowed := range transitions[f.state] {
		if allowed == to {
			f.logger.Debug("auth flow transition", "from", f.state, "to", to)
			f.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, to)
}

func (f *Flow) fail(to State, message string, cause error) error {
	if err := f.transition(to); err != nil {
		return err
	}
	f.message = message
	f.logger.Warn("auth flow failed", "state", to, "error", cause)
	return &FlowError{State: to, Message: message, Err: cause}
}
