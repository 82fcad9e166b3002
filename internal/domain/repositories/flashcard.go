package repositories

import (
	"context"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
)

// FlashcardRepository defines data access for flashcards. Every method is
// scoped to userID; rows owned by someone else behave as if they did not exist.
type FlashcardRepository interface {
	// List returns one page of cards matching filter plus the total match count.
	List(ctx context.Context, userID string, filter *models.FlashcardFilter) ([]models.Flashcard, int, error)

	// GetByID returns domain.ErrNotFound when the card is missing or not owned.
	GetByID(ctx context.Context, id, userID string) (*models.Flashcard, error)

	// CountByUser returns how many cards the user owns.
	CountByUser(ctx context.Context, userID string) (int, error)

	// LockUser serializes card creation for one user until the surrounding
	// transaction ends. It is a no-op outside a transaction.
	LockUser(ctx context.Context, userID string) error

	// Create inserts a card and fills in ID and timestamps.
	// Returns *domain.ConflictError on duplicate content.
	Create(ctx context.Context, card *models.Flashcard) error

	// CreateBatch inserts all cards in a single statement.
	CreateBatch(ctx context.Context, cards []*models.Flashcard) error

	// Update persists the mutable fields of card.
	Update(ctx context.Context, card *models.Flashcard) error

	// Delete removes a card; domain.ErrNotFound if nothing was deleted.
	Delete(ctx context.Context, id, userID string) error
}
