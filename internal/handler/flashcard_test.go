package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

const testCardID = "0f8fad5b-d9cb-469f-a165-70867728950e"

// stubFlashcardService records the last request and returns canned results.
type stubFlashcardService struct {
	card      *models.Flashcard
	page      *models.Page[models.Flashcard]
	batch     *services.BatchCreateResponse
	err       error
	listReq   *services.ListFlashcardsRequest
	batchReq  *services.BatchCreateRequest
	updateReq *services.UpdateFlashcardRequest
	userID    string
}

func (s *stubFlashcardService) ListFlashcards(_ context.Context, userID string, req *services.ListFlashcardsRequest) (*models.Page[models.Flashcard], error) {
	s.userID, s.listReq = userID, req
	return s.page, s.err
}

func (s *stubFlashcardService) GetFlashcard(_ context.Context, _, userID string) (*models.Flashcard, error) {
	s.userID = userID
	return s.card, s.err
}

func (s *stubFlashcardService) CreateFlashcard(_ context.Context, userID string, _ *services.CreateFlashcardRequest) (*models.Flashcard, error) {
	s.userID = userID
	return s.card, s.err
}

func (s *stubFlashcardService) CreateFlashcardsBatch(_ context.Context, _ string, req *services.BatchCreateRequest) (*services.BatchCreateResponse, error) {
	s.batchReq = req
	return s.batch, s.err
}

func (s *stubFlashcardService) UpdateFlashcard(_ context.Context, _, _ string, req *services.UpdateFlashcardRequest) (*models.Flashcard, error) {
	s.updateReq = req
	return s.card, s.err
}

func (s *stubFlashcardService) DeleteFlashcard(context.Context, string, string) error {
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMux(svc services.FlashcardService) *http.ServeMux {
	h := NewFlashcardHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/flashcards", h.ListFlashcards)
	mux.HandleFunc("POST /api/flashcards", h.CreateFlashcard)
	mux.HandleFunc("POST /api/flashcards/batch", h.CreateFlashcardsBatch)
	mux.HandleFunc("GET /api/flashcards/{id}", h.GetFlashcard)
	mux.HandleFunc("PUT /api/flashcards/{id}", h.ReplaceFlashcard)
	mux.HandleFunc("PATCH /api/flashcards/{id}", h.PatchFlashcard)
	mux.HandleFunc("DELETE /api/flashcards/{id}", h.DeleteFlashcard)
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = httputil.WithUserID(req, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httputil.ProblemDetail {
	t.Helper()
	var p httputil.ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v (body %s)", err, rec.Body.String())
	}
	return p
}

func sampleCard() *models.Flashcard {
	return &models.Flashcard{
		ID:           testCardID,
		Front:        "Stolica Polski",
		Back:         "Warszawa",
		Source:       models.SourceManual,
		NextReviewAt: "2026-10-16",
		EaseFactor:   2.5,
		CreatedAt:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 10, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestListFlashcards_PassesQueryAndCaches(t *testing.T) {
	svc := &stubFlashcardService{page: &models.Page[models.Flashcard]{
		Data: []models.Flashcard{*sampleCard()}, Page: 1, PageSize: 50, Total: 1, TotalPages: 1,
	}}
	mux := newTestMux(svc)

	rec := serve(mux, http.MethodGet, "/api/flashcards?search=abc&pageSize=10&sort=front", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=60" {
		t.Errorf("Cache-Control = %q", got)
	}
	etag := rec.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Errorf("ETag = %q, want weak tag", etag)
	}
	if svc.userID != "user-1" {
		t.Errorf("userID = %q", svc.userID)
	}
	if svc.listReq.Search == nil || *svc.listReq.Search != "abc" {
		t.Errorf("search not passed: %+v", svc.listReq.Search)
	}
	if svc.listReq.Page != nil {
		t.Errorf("absent page should be nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/flashcards?search=abc&pageSize=10&sort=front", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httputil.WithUserID(req, "user-1"))
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", rec.Code)
	}
}

func TestListFlashcards_InvalidQuery(t *testing.T) {
	svc := &stubFlashcardService{err: domain.NewValidationError("page: must be no less than 1")}
	rec := serve(newTestMux(svc), http.MethodGet, "/api/flashcards?page=0", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	p := decodeProblem(t, rec)
	if p.Type != "validation_error" || p.Title != "Invalid Query Parameters" {
		t.Errorf("problem = %+v", p)
	}
	if p.Instance != "/api/flashcards" {
		t.Errorf("instance = %q", p.Instance)
	}
}

func TestGetFlashcard(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"found", "/api/flashcards/" + testCardID, nil, http.StatusOK, ""},
		{"invalid id", "/api/flashcards/not-a-uuid", nil, http.StatusBadRequest, "invalid_id"},
		{"not found", "/api/flashcards/" + testCardID, domain.ErrNotFound, http.StatusNotFound, "flashcard_not_found"},
		{"store failure", "/api/flashcards/" + testCardID, io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFlashcardService{card: sampleCard(), err: tt.err}
			rec := serve(newTestMux(svc), http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantType == "" {
				if got := rec.Header().Get("Cache-Control"); got != "private, max-age=300" {
					t.Errorf("Cache-Control = %q", got)
				}
				if got := rec.Header().Get("ETag"); got != `"2026-10-02T12:00:00Z"` {
					t.Errorf("ETag = %q", got)
				}
				return
			}
			if p := decodeProblem(t, rec); p.Type != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type, tt.wantType)
			}
		})
	}
}

func TestGetFlashcard_NotFoundDetail(t *testing.T) {
	svc := &stubFlashcardService{err: domain.ErrNotFound}
	rec := serve(newTestMux(svc), http.MethodGet, "/api/flashcards/"+testCardID, "")

	p := decodeProblem(t, rec)
	if want := "Flashcard with ID " + testCardID + " was not found"; p.Detail != want {
		t.Errorf("detail = %q, want %q", p.Detail, want)
	}
}

func TestCreateFlashcard(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"created", `{"front":"a","back":"b"}`, nil, http.StatusCreated, ""},
		{"malformed json", `{"front":`, nil, http.StatusBadRequest, "invalid_json"},
		{"wrong type", `{"front":1,"back":"b"}`, nil, http.StatusBadRequest, "validation_error"},
		{"validation", `{"front":"","back":"b"}`, domain.NewValidationError("front: Front text is required"), http.StatusBadRequest, "validation_error"},
		{"limit", `{"front":"a","back":"b"}`, &domain.ConflictError{Message: "limit", Reason: domain.ConflictLimitExceeded}, http.StatusConflict, "flashcard_limit_exceeded"},
		{"duplicate", `{"front":"a","back":"b"}`, &domain.ConflictError{Message: "dup", Reason: domain.ConflictDuplicate}, http.StatusConflict, "duplicate_flashcard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFlashcardService{card: sampleCard(), err: tt.err}
			rec := serve(newTestMux(svc), http.MethodPost, "/api/flashcards", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantType == "" {
				if got := rec.Header().Get("Location"); got != "/api/flashcards/"+testCardID {
					t.Errorf("Location = %q", got)
				}
				return
			}
			if p := decodeProblem(t, rec); p.Type != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type, tt.wantType)
			}
		})
	}
}

func TestCreateFlashcardsBatch_DecodesItems(t *testing.T) {
	svc := &stubFlashcardService{batch: &services.BatchCreateResponse{Created: 2}}
	body := `{"flashcards":[{"front":"a","back":"b"},{"front":7,"back":"c"},{"front":"d","back":"e"}]}`

	rec := serve(newTestMux(svc), http.MethodPost, "/api/flashcards/batch", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Created-Count"); got != "2" {
		t.Errorf("X-Created-Count = %q", got)
	}

	req := svc.batchReq
	if len(req.Flashcards) != 3 {
		t.Fatalf("items = %d, want 3", len(req.Flashcards))
	}
	if len(req.DecodeErrors) != 1 {
		t.Fatalf("decode errors = %+v", req.DecodeErrors)
	}
	if fe := req.DecodeErrors[0]; fe.Index != 1 || fe.Field != "front" {
		t.Errorf("decode error = %+v", fe)
	}
	if req.Flashcards[1].Front != "" || req.Flashcards[1].Back != "" {
		t.Errorf("undecodable slot should be zero: %+v", req.Flashcards[1])
	}
	if req.Flashcards[2].Front != "d" {
		t.Errorf("item 2 = %+v", req.Flashcards[2])
	}
}

func TestCreateFlashcardsBatch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"missing flashcards", `{}`, nil, http.StatusBadRequest, "validation_error"},
		{"not an array", `{"flashcards":{"front":"a"}}`, nil, http.StatusBadRequest, "validation_error"},
		{"empty", `{"flashcards":[]}`, &domain.ValidationError{Code: "empty_batch", Message: "At least one flashcard is required"}, http.StatusBadRequest, "empty_batch"},
		{"too large", `{"flashcards":[]}`, &domain.PayloadTooLargeError{Message: "Cannot create more than 50 flashcards in a single batch"}, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"item errors", `{"flashcards":[{"front":"","back":""}]}`, &domain.BatchValidationError{Errors: []domain.FieldError{{Index: 0, Field: "front", Message: "Front text is required"}}}, http.StatusUnprocessableEntity, "batch_validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFlashcardService{err: tt.err}
			rec := serve(newTestMux(svc), http.MethodPost, "/api/flashcards/batch", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			p := decodeProblem(t, rec)
			if p.Type != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type, tt.wantType)
			}
			if tt.wantType == "batch_validation_error" {
				if _, ok := p.Extra["errors"]; !ok {
					t.Errorf("batch problem has no errors member: %s", rec.Body.String())
				}
			}
		})
	}
}

func TestUpdateFlashcard_TriState(t *testing.T) {
	svc := &stubFlashcardService{card: sampleCard()}
	mux := newTestMux(svc)

	rec := serve(mux, http.MethodPatch, "/api/flashcards/"+testCardID, `{"subject":null,"back":"nowy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	req := svc.updateReq
	if req.Full {
		t.Error("PATCH should not be a full update")
	}
	if req.Front.Present {
		t.Error("front should be absent")
	}
	if !req.Subject.Present || req.Subject.Value != nil {
		t.Errorf("subject = %+v, want present null", req.Subject)
	}
	if !req.Back.Present || req.Back.Value == nil || *req.Back.Value != "nowy" {
		t.Errorf("back = %+v", req.Back)
	}

	serve(mux, http.MethodPut, "/api/flashcards/"+testCardID, `{"front":"a","back":"b"}`)
	if !svc.updateReq.Full {
		t.Error("PUT should be a full update")
	}
}

func TestUpdateFlashcard_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		err        error
		wantStatus int
		wantType   string
	}{
		{"put missing sides", http.MethodPut, &domain.ValidationError{Code: "missing_required_fields", Message: "PUT requests require both 'front' and 'back' fields"}, http.StatusBadRequest, "missing_required_fields"},
		{"patch nothing", http.MethodPatch, &domain.ValidationError{Code: "no_updates_provided", Message: "At least one field must be provided for update"}, http.StatusBadRequest, "no_updates_provided"},
		{"not owned", http.MethodPatch, domain.ErrNotFound, http.StatusNotFound, "flashcard_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFlashcardService{err: tt.err}
			rec := serve(newTestMux(svc), tt.method, "/api/flashcards/"+testCardID, `{}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			p := decodeProblem(t, rec)
			if p.Type != tt.wantType {
				t.Errorf("type = %q, want %q", p.Type, tt.wantType)
			}
			if p.Title != problemTitles[tt.wantType] {
				t.Errorf("title = %q", p.Title)
			}
		})
	}
}

func TestDeleteFlashcard(t *testing.T) {
	rec := serve(newTestMux(&stubFlashcardService{}), http.MethodDelete, "/api/flashcards/"+testCardID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}

	rec = serve(newTestMux(&stubFlashcardService{err: domain.ErrNotFound}), http.MethodDelete, "/api/flashcards/"+testCardID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
