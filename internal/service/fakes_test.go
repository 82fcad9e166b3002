package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo is an in-memory FlashcardRepository.
type memRepo struct {
	mu    sync.Mutex
	cards map[string]*models.Flashcard

	locked     int
	lastFilter *models.FlashcardFilter
}

func newMemRepo() *memRepo {
	return &memRepo{cards: map[string]*models.Flashcard{}}
}

// seed inserts n manual cards for userID without going through the service.
func (r *memRepo) seed(userID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		front := fmt.Sprintf("seed front %d", i)
		back := fmt.Sprintf("seed back %d", i)
		id := uuid.NewString()
		r.cards[id] = &models.Flashcard{
			ID: id, UserID: userID, Front: front, Back: back,
			Source: models.SourceManual, ContentHash: models.ContentHash(front, back),
		}
	}
}

func (r *memRepo) duplicate(card *models.Flashcard, pending []*models.Flashcard) bool {
	for _, c := range r.cards {
		if c.UserID == card.UserID && c.ContentHash == card.ContentHash && c.ID != card.ID {
			return true
		}
	}
	for _, c := range pending {
		if c != card && c.ContentHash == card.ContentHash {
			return true
		}
	}
	return false
}

func (r *memRepo) List(ctx context.Context, userID string, filter *models.FlashcardFilter) ([]models.Flashcard, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := *filter
	r.lastFilter = &f

	var matched []models.Flashcard
	for _, c := range r.cards {
		if c.UserID != userID {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Front), q) && !strings.Contains(strings.ToLower(c.Back), q) {
				continue
			}
		}
		if filter.Subject != "" && (c.Subject == nil || *c.Subject != filter.Subject) {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)
	return append([]models.Flashcard{}, matched[start:end]...), total, nil
}

func (r *memRepo) GetByID(ctx context.Context, id, userID string) (*models.Flashcard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cards {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) LockUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked++
	return nil
}

func dupErr() error {
	return &domain.ConflictError{Message: "duplicate", Reason: domain.ConflictDuplicate, ResourceType: "flashcard"}
}

func (r *memRepo) Create(ctx context.Context, card *models.Flashcard) error {
	return r.CreateBatch(ctx, []*models.Flashcard{card})
}

func (r *memRepo) CreateBatch(ctx context.Context, cards []*models.Flashcard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cards {
		if r.duplicate(c, cards) {
			return dupErr()
		}
	}
	for _, c := range cards {
		c.ID = uuid.NewString()
		cp := *c
		r.cards[c.ID] = &cp
	}
	return nil
}

func (r *memRepo) Update(ctx context.Context, card *models.Flashcard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[card.ID]
	if !ok || c.UserID != card.UserID {
		return fmt.Errorf("flashcard %s: %w", card.ID, domain.ErrNotFound)
	}
	if r.duplicate(card, nil) {
		return dupErr()
	}
	card.UpdatedAt = time.Now()
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
	}
	delete(r.cards, id)
	return nil
}

// passthroughTx runs fn directly and counts calls.
type passthroughTx struct {
	calls int
}

func (tx *passthroughTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	tx.calls++
	return fn(ctx)
}
