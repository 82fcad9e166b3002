// Package api is a typed client for the flashcard REST API. Sessions are
// carried in a cookie jar exactly as a browser would carry them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// APIError is a non-2xx response. Problem is filled for problem+json bodies;
// the session endpoint answers {error} instead, which lands in Problem.Detail.
type APIError struct {
	Status  int
	Problem httputil.ProblemDetail
}

func (e *APIError) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Problem.Type, e.Problem.Detail)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Detail returns the problem detail, if any.
func (e *APIError) Detail() string {
	return e.Problem.Detail
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ListParams are the list query parameters. Zero values are omitted.
type ListParams struct {
	Page     int
	PageSize int
	Limit    int
	Search   string
	Subject  string
	Sort     string
	Order    string
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	setInt := func(name string, v int) {
		if v != 0 {
			q.Set(name, strconv.Itoa(v))
		}
	}
	setStr := func(name, v string) {
		if v != "" {
			q.Set(name, v)
		}
	}
	setInt("page", p.Page)
	setInt("pageSize", p.PageSize)
	setInt("limit", p.Limit)
	setStr("search", p.Search)
	setStr("subject", p.Subject)
	setStr("sort", p.Sort)
	setStr("order", p.Order)
	return q
}

// Me is the body of GET /api/auth/me.
type Me struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
}

// Client talks to one API server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *slog.Logger
	RefetchDelay time.Duration
}

// NewClient creates a client with its own cookie jar.
func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:       logger,
		RefetchDelay: config.RefetchDelay,
	}, nil
}

// EstablishSession pushes a token pair to the server, which answers by
// setting the session cookies in the jar.
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*models.AuthUser, error) {
	var resp struct {
		Success bool             `json:"success"`
		User    *models.AuthUser `json:"user"`
	}
	body := services.EstablishSessionRequest{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/session", body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// EndSession logs out and drops the cookies.
func (c *Client) EndSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/auth/session", nil, nil)
}

// Me returns the user the server sees for the current cookies.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListFlashcards fetches one page.
func (c *Client) ListFlashcards(ctx context.Context, params ListParams) (*models.Page[models.Flashcard], error) {
	path := "/api/flashcards"
	if q := params.query().Encode(); q != "" {
		path += "?" + q
	}
	var page models.Page[models.Flashcard]
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetFlashcard fetches one card.
func (c *Client) GetFlashcard(ctx context.Context, id string) (*models.Flashcard, error) {
	var card models.Flashcard
	if err := c.do(ctx, http.MethodGet, "/api/flashcards/"+url.PathEscape(id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateFlashcard creates one card.
func (c *Client) CreateFlashcard(ctx context.Context, req services.CreateFlashcardRequest) (*models.Flashcard, error) {
	var card models.Flashcard
	if err := c.do(ctx, http.MethodPost, "/api/flashcards", req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateFlashcardsBatch creates several cards in one request.
func (c *Client) CreateFlashcardsBatch(ctx context.Context, cards []services.CreateFlashcardRequest) (*services.BatchCreateResponse, error) {
	body := struct {
		Flashcards []services.CreateFlashcardRequest `json:"flashcards"`
	}{Flashcards: cards}

	var resp services.BatchCreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/flashcards/batch", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateFlashcard sends fields as PUT when full, PATCH otherwise. A nil map
// value is sent as JSON null and clears the field.
func (c *Client) UpdateFlashcard(ctx context.Context, id string, fields map[string]any, full bool) (*models.Flashcard, error) {
	method := http.MethodPatch
	if full {
		method = http.MethodPut
	}
	var card models.Flashcard
	if err := c.do(ctx, method, "/api/flashcards/"+url.PathEscape(id), fields, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DeleteFlashcard removes a card.
func (c *Client) DeleteFlashcard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/flashcards/"+url.PathEscape(id), nil, nil)
}

// WaitForRefetch pauses for RefetchDelay so a following list reflects the
// last mutation.
func (c *Client) WaitForRefetch(ctx context.Context) error {
	if c.RefetchDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.RefetchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do sends one request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var problem httputil.ProblemDetail
	if err := json.Unmarshal(body, &problem); err == nil && problem.Type != "" {
		apiErr.Problem = problem
		return apiErr
	}

	var plain struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &plain); err == nil && plain.Error != "" {
		apiErr.Problem = httputil.ProblemDetail{Status: status, Detail: plain.Error}
	}
	return apiErr
}
