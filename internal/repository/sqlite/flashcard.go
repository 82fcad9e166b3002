package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
)

// FlashcardRepository implements repositories.FlashcardRepository on gorm.
type FlashcardRepository struct {
	store *Store
}

// NewFlashcardRepository creates a repository backed by store.
func NewFlashcardRepository(store *Store) repositories.FlashcardRepository {
	return &FlashcardRepository{store: store}
}

func toModel(row *flashcardRow) models.Flashcard {
	return models.Flashcard{
		ID:           row.ID,
		UserID:       row.UserID,
		Front:        row.Front,
		Back:         row.Back,
		Subject:      row.Subject,
		Source:       models.FlashcardSource(row.Source),
		GenerationID: row.GenerationID,
		NextReviewAt: row.NextReviewAt,
		LastReviewAt: row.LastReviewAt,
		ReviewCount:  row.ReviewCount,
		EaseFactor:   row.EaseFactor,
		ContentHash:  row.ContentHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toRow(card *models.Flashcard) *flashcardRow {
	next := card.NextReviewAt
	if next == "" {
		next = time.Now().UTC().Format(time.DateOnly)
	}
	return &flashcardRow{
		ID:           card.ID,
		UserID:       card.UserID,
		Front:        card.Front,
		Back:         card.Back,
		Subject:      card.Subject,
		Source:       string(card.Source),
		GenerationID: card.GenerationID,
		NextReviewAt: next,
		LastReviewAt: card.LastReviewAt,
		ReviewCount:  card.ReviewCount,
		EaseFactor:   card.EaseFactor,
		ContentHash:  card.ContentHash,
		SearchFront:  searchText(card.Front),
		SearchBack:   searchText(card.Back),
		CreatedAt:    card.CreatedAt,
		UpdatedAt:    card.UpdatedAt,
	}
}

func translate(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &domain.ConflictError{
			Message:      "a flashcard with the same front and back already exists",
			Reason:       domain.ConflictDuplicate,
			ResourceType: "flashcard",
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func applyFilter(q *gorm.DB, userID string, filter *models.FlashcardFilter) *gorm.DB {
	q = q.Where("user_id = ?", userID)
	if filter.Search != "" {
		pattern := repositories.ContainsPattern(searchText(filter.Search))
		q = q.Where(`(search_front LIKE ? ESCAPE '\' OR search_back LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Subject != "" {
		q = q.Where("subject = ?", filter.Subject)
	}
	return q
}

// List returns one page of the user's cards plus the total number of matches.
func (r *FlashcardRepository) List(ctx context.Context, userID string, filter *models.FlashcardFilter) ([]models.Flashcard, int, error) {
	var total int64
	if err := applyFilter(r.store.conn(ctx), userID, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count flashcards: %w", err)
	}

	column := "created_at"
	if filter.Sort == models.SortNextReviewAt {
		column = "next_review_at"
	}
	dir := "DESC"
	if filter.Order == models.OrderAsc {
		dir = "ASC"
	}

	var rows []flashcardRow
	err := applyFilter(r.store.conn(ctx), userID, filter).
		Order(fmt.Sprintf("%s %s, id %s", column, dir, dir)).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list flashcards: %w", err)
	}

	cards := make([]models.Flashcard, 0, len(rows))
	for i := range rows {
		cards = append(cards, toModel(&rows[i]))
	}
	return cards, int(total), nil
}

// GetByID retrieves a card owned by userID
func (r *FlashcardRepository) GetByID(ctx context.Context, id, userID string) (*models.Flashcard, error) {
	var row flashcardRow
	err := r.store.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get flashcard: %w", err)
	}
	card := toModel(&row)
	return &card, nil
}

// CountByUser returns how many cards the user owns
func (r *FlashcardRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int64
	if err := r.store.conn(ctx).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count flashcards: %w", err)
	}
	return int(count), nil
}

// LockUser is a no-op: the store's TransactionManager already serializes writers.
func (r *FlashcardRepository) LockUser(ctx context.Context, userID string) error {
	return nil
}

// Create inserts a card and fills in server-assigned fields
func (r *FlashcardRepository) Create(ctx context.Context, card *models.Flashcard) error {
	row := toRow(card)
	row.ID = uuid.NewString()
	if err := r.store.conn(ctx).Create(row).Error; err != nil {
		return translate(err, "create flashcard")
	}
	*card = toModel(row)
	return nil
}

// CreateBatch inserts all cards in one INSERT statement
func (r *FlashcardRepository) CreateBatch(ctx context.Context, cards []*models.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	rows := make([]*flashcardRow, len(cards))
	for i, card := range cards {
		rows[i] = toRow(card)
		rows[i].ID = uuid.NewString()
	}

	if err := r.store.conn(ctx).Create(rows).Error; err != nil {
		return translate(err, "create flashcards")
	}

	for i, row := range rows {
		*cards[i] = toModel(row)
	}
	return nil
}

// Update persists the editable fields and bumps updated_at
func (r *FlashcardRepository) Update(ctx context.Context, card *models.Flashcard) error {
	now := time.Now().UTC()
	result := r.store.conn(ctx).
		Where("id = ? AND user_id = ?", card.ID, card.UserID).
		Updates(map[string]any{
			"front":         card.Front,
			"back":          card.Back,
			"subject":       card.Subject,
			"source":        string(card.Source),
			"generation_id": card.GenerationID,
			"content_hash":  card.ContentHash,
			"search_front":  searchText(card.Front),
			"search_back":   searchText(card.Back),
			"updated_at":    now,
		})
	if result.Error != nil {
		return translate(result.Error, "update flashcard")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("flashcard %s: %w", card.ID, domain.ErrNotFound)
	}

	updated, err := r.GetByID(ctx, card.ID, card.UserID)
	if err != nil {
		return err
	}
	*card = *updated
	return nil
}

// Delete removes a card owned by userID
func (r *FlashcardRepository) Delete(ctx context.Context, id, userID string) error {
	result := r.store.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&flashcardRow{})
	if result.Error != nil {
		return fmt.Errorf("delete flashcard: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
