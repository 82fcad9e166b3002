package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
)

// FlashcardHandler serves the flashcard REST resource.
type FlashcardHandler struct {
	service services.FlashcardService
	logger  *slog.Logger
}

// NewFlashcardHandler creates a new flashcard handler
func NewFlashcardHandler(service services.FlashcardService, logger *slog.Logger) *FlashcardHandler {
	return &FlashcardHandler{
		service: service,
		logger:  logger,
	}
}

// updateBody is the JSON shape shared by PUT and PATCH.
type updateBody struct {
	Front        httputil.OptionalString `json:"front"`
	Back         httputil.OptionalString `json:"back"`
	Subject      httputil.OptionalString `json:"subject"`
	Source       httputil.OptionalString `json:"source"`
	GenerationID httputil.OptionalString `json:"generationId"`
}

// ListFlashcards returns one page of the caller's cards.
// GET /api/flashcards
func (h *FlashcardHandler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	req := &services.ListFlashcardsRequest{
		Page:     httputil.QueryParam(r, "page"),
		PageSize: httputil.QueryParam(r, "pageSize"),
		Limit:    httputil.QueryParam(r, "limit"),
		Search:   httputil.QueryParam(r, "search"),
		Subject:  httputil.QueryParam(r, "subject"),
		Sort:     httputil.QueryParam(r, "sort"),
		Order:    httputil.QueryParam(r, "order"),
	}

	page, err := h.service.ListFlashcards(r.Context(), userID, req)
	if err != nil {
		var validErr *domain.ValidationError
		if errors.As(err, &validErr) {
			httputil.RespondProblem(w, httputil.ProblemDetail{
				Type:     validErr.Code,
				Title:    "Invalid Query Parameters",
				Status:   http.StatusBadRequest,
				Detail:   validErr.Message,
				Instance: r.URL.Path,
			})
			return
		}
		h.internalError(w, r, err, "An unexpected error occurred while fetching flashcards")
		return
	}

	respondCached(w, r, page, "private, max-age=60", "")
}

// GetFlashcard returns a single card.
// GET /api/flashcards/{id}
func (h *FlashcardHandler) GetFlashcard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	card, err := h.service.GetFlashcard(r.Context(), id, httputil.GetUserID(r))
	if err != nil {
		h.fail(w, r, id, err, "An unexpected error occurred while fetching the flashcard")
		return
	}

	etag := fmt.Sprintf("%q", card.UpdatedAt.UTC().Format(time.RFC3339Nano))
	respondCached(w, r, card, "private, max-age=300", etag)
}

// CreateFlashcard creates one card.
// POST /api/flashcards
func (h *FlashcardHandler) CreateFlashcard(w http.ResponseWriter, r *http.Request) {
	var req services.CreateFlashcardRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		decodeFailure(w, r, err)
		return
	}

	card, err := h.service.CreateFlashcard(r.Context(), httputil.GetUserID(r), &req)
	if err != nil {
		h.fail(w, r, "", err, "An unexpected error occurred while creating the flashcard")
		return
	}

	w.Header().Set("Location", "/api/flashcards/"+card.ID)
	httputil.RespondJSON(w, http.StatusCreated, card)
}

// CreateFlashcardsBatch creates up to MaxBatchSize cards at once.
// POST /api/flashcards/batch
func (h *FlashcardHandler) CreateFlashcardsBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Flashcards json.RawMessage `json:"flashcards"`
	}
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		decodeFailure(w, r, err)
		return
	}

	raw := bytes.TrimSpace(body.Flashcards)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		respondProblem(w, r, http.StatusBadRequest, "validation_error", "flashcards: Required", nil)
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		respondProblem(w, r, http.StatusBadRequest, "validation_error", "flashcards: Expected array", nil)
		return
	}

	req := &services.BatchCreateRequest{
		Flashcards: make([]services.CreateFlashcardRequest, len(items)),
	}
	for i, item := range items {
		if err := json.Unmarshal(item, &req.Flashcards[i]); err != nil {
			req.Flashcards[i] = services.CreateFlashcardRequest{}
			req.DecodeErrors = append(req.DecodeErrors, itemDecodeError(err, i))
		}
	}

	resp, err := h.service.CreateFlashcardsBatch(r.Context(), httputil.GetUserID(r), req)
	if err != nil {
		h.fail(w, r, "", err, "An unexpected error occurred while creating flashcards")
		return
	}

	w.Header().Set("X-Created-Count", strconv.Itoa(resp.Created))
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// ReplaceFlashcard requires both sides.
// PUT /api/flashcards/{id}
func (h *FlashcardHandler) ReplaceFlashcard(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// PatchFlashcard applies a partial update.
// PATCH /api/flashcards/{id}
func (h *FlashcardHandler) PatchFlashcard(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *FlashcardHandler) update(w http.ResponseWriter, r *http.Request, full bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body updateBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		decodeFailure(w, r, err)
		return
	}

	req := &services.UpdateFlashcardRequest{
		Front:        services.OptionalString(body.Front),
		Back:         services.OptionalString(body.Back),
		Subject:      services.OptionalString(body.Subject),
		Source:       services.OptionalString(body.Source),
		GenerationID: services.OptionalString(body.GenerationID),
		Full:         full,
	}

	card, err := h.service.UpdateFlashcard(r.Context(), id, httputil.GetUserID(r), req)
	if err != nil {
		h.fail(w, r, id, err, "An unexpected error occurred while updating the flashcard")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, card)
}

// DeleteFlashcard removes a card.
// DELETE /api/flashcards/{id}
func (h *FlashcardHandler) DeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteFlashcard(r.Context(), id, httputil.GetUserID(r)); err != nil {
		h.fail(w, r, id, err, "An unexpected error occurred while deleting the flashcard")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fail maps a service error. Not-found is reported against the card id and
// unexpected errors carry the operation-specific detail.
func (h *FlashcardHandler) fail(w http.ResponseWriter, r *http.Request, id string, err error, internalDetail string) {
	if errors.Is(err, domain.ErrNotFound) {
		respondProblem(w, r, http.StatusNotFound, "flashcard_not_found",
			fmt.Sprintf("Flashcard with ID %s was not found", id), nil)
		return
	}
	if isDomainError(err) {
		handleError(w, r, h.logger, err)
		return
	}
	h.internalError(w, r, err, internalDetail)
}

func (h *FlashcardHandler) internalError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	h.logger.Error("flashcard request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"user_id", httputil.GetUserID(r),
		"error", err,
	)
	respondProblem(w, r, http.StatusInternalServerError, "internal_server_error", detail, nil)
}

// isDomainError reports whether err maps to a 4xx response.
func isDomainError(err error) bool {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	for _, target := range []error{domain.ErrValidation, domain.ErrConflict, domain.ErrUnauthorized, domain.ErrForbidden, domain.ErrPayloadTooLarge} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// itemDecodeError describes why one batch item could not be decoded.
func itemDecodeError(err error, index int) domain.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErrorField(typeErr, index)
	}
	return domain.FieldError{Index: index, Field: "root", Message: "Invalid flashcard"}
}
