package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
)

const flashcardColumns = `id::text, user_id::text, front, back, subject, source, generation_id::text,
	to_char(next_review_at, 'YYYY-MM-DD'), last_review_at, review_count, ease_factor,
	content_hash, created_at, updated_at`

// PostgresFlashcardRepository implements repositories.FlashcardRepository
type PostgresFlashcardRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFlashcardRepository creates a new PostgresFlashcardRepository
func NewFlashcardRepository(config *RepositoryConfig) repositories.FlashcardRepository {
	return &PostgresFlashcardRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(row rowScanner, card *models.Flashcard) error {
	var source string
	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.Front,
		&card.Back,
		&card.Subject,
		&source,
		&card.GenerationID,
		&card.NextReviewAt,
		&card.LastReviewAt,
		&card.ReviewCount,
		&card.EaseFactor,
		&card.ContentHash,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	card.Source = models.FlashcardSource(source)
	return err
}

// listWhere builds the WHERE clause shared by the page and count queries.
// $1 is always the user id.
func listWhere(filter *models.FlashcardFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{}
	paramIndex := 2

	if filter.Search != "" {
		conds = append(conds, fmt.Sprintf(`(front ILIKE $%d ESCAPE '\' OR back ILIKE $%d ESCAPE '\')`, paramIndex, paramIndex))
		args = append(args, repositories.ContainsPattern(filter.Search))
		paramIndex++
	}
	if filter.Subject != "" {
		conds = append(conds, fmt.Sprintf("subject = $%d", paramIndex))
		args = append(args, filter.Subject)
	}

	return strings.Join(conds, " AND "), args
}

// orderBy maps the validated sort onto SQL. id breaks ties so paging is stable.
func orderBy(filter *models.FlashcardFilter) string {
	column := "created_at"
	if filter.Sort == models.SortNextReviewAt {
		column = "next_review_at"
	}
	dir := "DESC"
	if filter.Order == models.OrderAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id %s", column, dir, dir)
}

// List returns one page of the user's cards plus the total number of matches.
func (r *PostgresFlashcardRepository) List(ctx context.Context, userID string, filter *models.FlashcardFilter) ([]models.Flashcard, int, error) {
	where, filterArgs := listWhere(filter)
	executor := GetExecutor(ctx, r.pool)

	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, r.tables.Flashcards, where)
	countArgs := append([]any{userID}, filterArgs...)

	var total int
	if err := executor.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flashcards: %w", err)
	}

	n := len(countArgs)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, flashcardColumns, r.tables.Flashcards, where, orderBy(filter), n+1, n+2)
	args := append(countArgs, filter.Limit, filter.Offset)

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		var card models.Flashcard
		if err := scanFlashcard(rows, &card); err != nil {
			return nil, 0, fmt.Errorf("scan flashcard: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate flashcards: %w", err)
	}

	return cards, total, nil
}

// GetByID retrieves a card owned by userID
func (r *PostgresFlashcardRepository) GetByID(ctx context.Context, id, userID string) (*models.Flashcard, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, flashcardColumns, r.tables.Flashcards)

	var card models.Flashcard
	executor := GetExecutor(ctx, r.pool)
	if err := scanFlashcard(executor.QueryRow(ctx, query, id, userID), &card); err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextRepresentation(err) {
			return nil, fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get flashcard: %w", err)
	}

	return &card, nil
}

// CountByUser returns how many cards the user owns
func (r *PostgresFlashcardRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE user_id = $1`, r.tables.Flashcards)

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count flashcards: %w", err)
	}
	return count, nil
}

// LockUser takes a transaction-scoped advisory lock keyed by table and user.
func (r *PostgresFlashcardRepository) LockUser(ctx context.Context, userID string) error {
	tx := GetTx(ctx)
	if tx == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.tables.Flashcards+":"+userID); err != nil {
		return fmt.Errorf("lock user flashcards: %w", err)
	}
	return nil
}

func reviewDate(card *models.Flashcard) (time.Time, error) {
	if card.NextReviewAt == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse(time.DateOnly, card.NextReviewAt)
}

func duplicateError() error {
	return &domain.ConflictError{
		Message:      "a flashcard with the same front and back already exists",
		Reason:       domain.ConflictDuplicate,
		ResourceType: "flashcard",
	}
}

// writeError maps constraint failures of an INSERT or UPDATE onto domain
// errors. The service validates first, so a CHECK or cast failure here means
// a row slipped past validation; it is still the caller's input.
func (r *PostgresFlashcardRepository) writeError(err error, op string) error {
	switch {
	case IsPgDuplicateError(err):
		return duplicateError()
	case IsPgCheckViolation(err):
		r.logger.Warn("flashcard check constraint rejected write", "op", op, "constraint", pgConstraint(err))
		return domain.NewValidationError("Flashcard data violates a storage constraint")
	case IsPgInvalidTextRepresentation(err):
		return domain.NewValidationError("Flashcard contains a malformed identifier")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create inserts a card and fills in server-assigned fields
func (r *PostgresFlashcardRepository) Create(ctx context.Context, card *models.Flashcard) error {
	next, err := reviewDate(card)
	if err != nil {
		return fmt.Errorf("parse next review date: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, front, back, subject, source, generation_id,
			next_review_at, review_count, ease_factor, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s
	`, r.tables.Flashcards, flashcardColumns)

	executor := GetExecutor(ctx, r.pool)
	err = scanFlashcard(executor.QueryRow(ctx, query,
		card.UserID,
		card.Front,
		card.Back,
		card.Subject,
		string(card.Source),
		card.GenerationID,
		next,
		card.ReviewCount,
		card.EaseFactor,
		card.ContentHash,
	), card)

	if err != nil {
		return r.writeError(err, "create flashcard")
	}

	return nil
}

// CreateBatch inserts all cards with one multi-row INSERT
func (r *PostgresFlashcardRepository) CreateBatch(ctx context.Context, cards []*models.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	const cols = 10
	values := make([]string, 0, len(cards))
	args := make([]any, 0, len(cards)*cols)
	for i, card := range cards {
		next, err := reviewDate(card)
		if err != nil {
			return fmt.Errorf("parse next review date: %w", err)
		}
		placeholders := make([]string, cols)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			card.UserID,
			card.Front,
			card.Back,
			card.Subject,
			string(card.Source),
			card.GenerationID,
			next,
			card.ReviewCount,
			card.EaseFactor,
			card.ContentHash,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, front, back, subject, source, generation_id,
			next_review_at, review_count, ease_factor, content_hash)
		VALUES %s
		RETURNING %s
	`, r.tables.Flashcards, strings.Join(values, ", "), flashcardColumns)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return r.writeError(err, "create flashcards")
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(cards) {
			break
		}
		if err := scanFlashcard(rows, cards[i]); err != nil {
			return fmt.Errorf("scan created flashcard: %w", err)
		}
		i++
	}
	// Constraint violations surface on iteration, not on Query.
	if err := rows.Err(); err != nil {
		return r.writeError(err, "create flashcards")
	}

	return nil
}

// Update persists the editable fields and bumps updated_at
func (r *PostgresFlashcardRepository) Update(ctx context.Context, card *models.Flashcard) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET front = $3, back = $4, subject = $5, source = $6, generation_id = $7,
			content_hash = $8, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING %s
	`, r.tables.Flashcards, flashcardColumns)

	executor := GetExecutor(ctx, r.pool)
	err := scanFlashcard(executor.QueryRow(ctx, query,
		card.ID,
		card.UserID,
		card.Front,
		card.Back,
		card.Subject,
		string(card.Source),
		card.GenerationID,
		card.ContentHash,
	), card)

	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("flashcard %s: %w", card.ID, domain.ErrNotFound)
		}
		return r.writeError(err, "update flashcard")
	}

	return nil
}

// Delete removes a card owned by userID
func (r *PostgresFlashcardRepository) Delete(ctx context.Context, id, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Flashcards)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, userID)
	if err != nil {
		if IsPgInvalidTextRepresentation(err) {
			return fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete flashcard: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
