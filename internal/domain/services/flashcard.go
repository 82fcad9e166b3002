package services

import (
	"context"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
)

// ListFlashcardsRequest carries raw query parameters. A nil field means the
// parameter was absent; parsing and range checks happen in the service.
type ListFlashcardsRequest struct {
	Page     *string
	PageSize *string
	Limit    *string
	Search   *string
	Subject  *string
	Sort     *string
	Order    *string
}

// CreateFlashcardRequest is one card to create.
type CreateFlashcardRequest struct {
	Front        string                 `json:"front"`
	Back         string                 `json:"back"`
	Subject      *string                `json:"subject,omitempty"`
	Source       models.FlashcardSource `json:"source,omitempty"`
	GenerationID *string                `json:"generationId,omitempty"`
}

// BatchCreateRequest holds the decoded batch items. DecodeErrors lists items
// the transport could not decode; their slots in Flashcards are zero values
// that are skipped during validation, and the decode failures are reported
// together with the validation failures of the other items.
type BatchCreateRequest struct {
	Flashcards   []CreateFlashcardRequest
	DecodeErrors []domain.FieldError
}

// BatchCreateResponse reports a successful batch.
type BatchCreateResponse struct {
	Created    int                `json:"created"`
	Flashcards []models.Flashcard `json:"flashcards"`
}

// OptionalString tracks tri-state semantics for updates (RFC 7396 PATCH).
// Transport-agnostic: the handler maps from httputil.OptionalString.
//   - Present=false: field absent from request (don't change)
//   - Present=true, Value=nil: field is null (clear)
//   - Present=true, Value=&"...": field has value
type OptionalString struct {
	Present bool
	Value   *string
}

// UpdateFlashcardRequest is a PUT (Full) or PATCH update.
type UpdateFlashcardRequest struct {
	Front        OptionalString
	Back         OptionalString
	Subject      OptionalString
	Source       OptionalString
	GenerationID OptionalString
	Full         bool
}

// HasUpdates reports whether any mutable field was supplied.
func (r *UpdateFlashcardRequest) HasUpdates() bool {
	return r.Front.Present || r.Back.Present || r.Subject.Present || r.Source.Present || r.GenerationID.Present
}

// FlashcardService defines business logic for flashcards. userID is always
// the authenticated caller.
type FlashcardService interface {
	ListFlashcards(ctx context.Context, userID string, req *ListFlashcardsRequest) (*models.Page[models.Flashcard], error)

	GetFlashcard(ctx context.Context, id, userID string) (*models.Flashcard, error)

	// CreateFlashcard enforces the per-user cap before inserting.
	CreateFlashcard(ctx context.Context, userID string, req *CreateFlashcardRequest) (*models.Flashcard, error)

	// CreateFlashcardsBatch validates every item, then inserts all or nothing.
	// Item failures are returned as *domain.BatchValidationError.
	CreateFlashcardsBatch(ctx context.Context, userID string, req *BatchCreateRequest) (*BatchCreateResponse, error)

	UpdateFlashcard(ctx context.Context, id, userID string, req *UpdateFlashcardRequest) (*models.Flashcard, error)

	// DeleteFlashcard returns domain.ErrNotFound rather than succeeding silently.
	DeleteFlashcard(ctx context.Context, id, userID string) error
}
