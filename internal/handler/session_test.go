package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

type stubSessionService struct {
	user *models.AuthUser
	err  error
}

func (s *stubSessionService) EstablishSession(context.Context, *services.EstablishSessionRequest) (*models.AuthUser, error) {
	return s.user, s.err
}

func (s *stubSessionService) Authenticate(context.Context, string, string) (*services.Authentication, error) {
	return nil, domain.ErrUnauthorized
}

type stubSignOuter struct {
	token string
	err   error
}

func (s *stubSignOuter) SignOut(_ context.Context, accessToken string) error {
	s.token = accessToken
	return s.err
}

func TestEstablishSession(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		wantStatus  int
		wantCookies bool
		wantError   string
		wantProblem string
	}{
		{name: "ok", body: `{"access_token":"a","refresh_token":"r"}`, wantStatus: http.StatusOK, wantCookies: true},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest, wantError: "Invalid JSON"},
		{
			name:        "missing token",
			body:        `{"access_token":"a"}`,
			err:         domain.NewValidationError("refresh_token: refresh_token is required."),
			wantStatus:  http.StatusBadRequest,
			wantProblem: "refresh_token: refresh_token is required.",
		},
		{
			name:       "rejected token",
			body:       `{"access_token":"a","refresh_token":"r"}`,
			err:        fmt.Errorf("invalid session tokens: %w", domain.ErrUnauthorized),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid session tokens: unauthorized",
		},
		{
			name:       "not verified",
			body:       `{"access_token":"a","refresh_token":"r"}`,
			err:        errors.New("provider down"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to verify session after setting cookies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSessionService{user: &models.AuthUser{ID: "user-1", Email: "ala@example.com"}, err: tt.err}
			h := NewSessionHandler(svc, nil, false, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.EstablishSession(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			cookies := rec.Result().Cookies()
			if tt.wantCookies != (len(cookies) == 2) {
				t.Fatalf("cookies = %v", cookies)
			}

			if tt.wantProblem != "" {
				if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("Content-Type = %q", ct)
				}
				var problem httputil.ProblemDetail
				if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if problem.Type != "validation_error" || problem.Detail != tt.wantProblem || problem.Status != http.StatusBadRequest {
					t.Errorf("problem = %+v", problem)
				}
				return
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantError != "" {
				if body["error"] != tt.wantError {
					t.Errorf("error = %v, want %q", body["error"], tt.wantError)
				}
				return
			}
			if body["success"] != true {
				t.Errorf("success = %v", body["success"])
			}
			for _, c := range cookies {
				if c.Path != "/" {
					t.Errorf("cookie %s path = %q", c.Name, c.Path)
				}
			}
		})
	}
}

func TestEndSession(t *testing.T) {
	signOuter := &stubSignOuter{err: errors.New("already gone")}
	h := NewSessionHandler(&stubSessionService{}, signOuter, true, discardLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: httputil.AccessTokenCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	h.EndSession(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if signOuter.token != "tok" {
		t.Errorf("sign-out token = %q", signOuter.token)
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s not expired: MaxAge=%d", c.Name, c.MaxAge)
		}
	}
}

func TestMe(t *testing.T) {
	h := NewSessionHandler(&stubSessionService{}, nil, false, discardLogger())

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	claims := &models.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Email:            "ala@example.com",
		Role:             "authenticated",
	}
	req := httputil.WithClaims(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), claims)
	rec = httptest.NewRecorder()
	h.Me(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "user-1" || body["email"] != "ala@example.com" {
		t.Errorf("body = %v", body)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"up", nil, http.StatusOK},
		{"down", errors.New("refused"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(stubPinger{tt.err}, discardLogger()).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
