package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
)

var (
	sourceValues = []any{string(models.SourceManual), string(models.SourceAIFull), string(models.SourceAIEdited)}

	msgSource          = "Source must be one of: manual, ai-full, ai-edited"
	msgGenerationUUID  = "Generation ID must be a valid UUID"
	msgGenerationPair  = "Generation ID is required for AI-generated flashcards and must be null for manual ones"
	msgPagingExclusive = "Use either (page + pageSize) or limit, not both. Page and pageSize must be used together."
)

// flashcardService implements services.FlashcardService
type flashcardService struct {
	repo      repositories.FlashcardRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewFlashcardService creates a new flashcard service
func NewFlashcardService(
	repo repositories.FlashcardRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.FlashcardService {
	return &flashcardService{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// ListFlashcards returns one page of the caller's cards
func (s *flashcardService) ListFlashcards(ctx context.Context, userID string, req *services.ListFlashcardsRequest) (*models.Page[models.Flashcard], error) {
	q, err := parseListRequest(req)
	if err != nil {
		return nil, err
	}

	cards, total, err := s.repo.List(ctx, userID, &q.filter)
	if err != nil {
		return nil, err
	}

	return &models.Page[models.Flashcard]{
		Data:       cards,
		Page:       q.page,
		PageSize:   q.pageSize,
		Total:      total,
		TotalPages: models.TotalPages(total, q.pageSize),
	}, nil
}

// GetFlashcard retrieves one of the caller's cards
func (s *flashcardService) GetFlashcard(ctx context.Context, id, userID string) (*models.Flashcard, error) {
	return s.repo.GetByID(ctx, id, userID)
}

// CreateFlashcard validates req and inserts it if the caller is under the cap
func (s *flashcardService) CreateFlashcard(ctx context.Context, userID string, req *services.CreateFlashcardRequest) (*models.Flashcard, error) {
	card, fieldErrs, err := s.buildFlashcard(userID, req, -1)
	if err != nil {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		return nil, newValidationError("validation_error", fieldErrs)
	}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.checkLimit(ctx, userID, 1); err != nil {
			return err
		}
		return s.repo.Create(ctx, card)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("flashcard created",
		"id", card.ID,
		"source", card.Source,
		"user_id", userID,
	)

	return card, nil
}

// CreateFlashcardsBatch validates every item and inserts them all or none
func (s *flashcardService) CreateFlashcardsBatch(ctx context.Context, userID string, req *services.BatchCreateRequest) (*services.BatchCreateResponse, error) {
	n := len(req.Flashcards)
	if n == 0 {
		return nil, &domain.ValidationError{Code: "empty_batch", Message: "At least one flashcard is required"}
	}
	if n > config.MaxBatchSize {
		return nil, &domain.PayloadTooLargeError{
			Message: fmt.Sprintf("Cannot create more than %d flashcards in a single batch", config.MaxBatchSize),
		}
	}

	undecodable := make(map[int]bool, len(req.DecodeErrors))
	fieldErrs := append([]domain.FieldError(nil), req.DecodeErrors...)
	for _, e := range req.DecodeErrors {
		undecodable[e.Index] = true
	}

	cards := make([]*models.Flashcard, 0, n)
	for i := range req.Flashcards {
		if undecodable[i] {
			continue
		}
		card, errs, err := s.buildFlashcard(userID, &req.Flashcards[i], i)
		if err != nil {
			return nil, err
		}
		fieldErrs = append(fieldErrs, errs...)
		cards = append(cards, card)
	}

	if len(fieldErrs) > 0 {
		sortFieldErrors(fieldErrs)
		return nil, &domain.BatchValidationError{Errors: fieldErrs}
	}

	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.checkLimit(ctx, userID, n); err != nil {
			return err
		}
		return s.repo.CreateBatch(ctx, cards)
	})
	if err != nil {
		return nil, err
	}

	created := make([]models.Flashcard, len(cards))
	for i, card := range cards {
		created[i] = *card
	}

	s.logger.Info("flashcards batch created",
		"count", len(created),
		"user_id", userID,
	)

	return &services.BatchCreateResponse{Created: len(created), Flashcards: created}, nil
}

// UpdateFlashcard applies a PUT or PATCH to one of the caller's cards
func (s *flashcardService) UpdateFlashcard(ctx context.Context, id, userID string, req *services.UpdateFlashcardRequest) (*models.Flashcard, error) {
	if req.Full {
		if isBlank(req.Front) || isBlank(req.Back) {
			return nil, &domain.ValidationError{
				Code:    "missing_required_fields",
				Message: "PUT requests require both 'front' and 'back' fields",
			}
		}
	} else if !req.HasUpdates() {
		return nil, &domain.ValidationError{
			Code:    "no_updates_provided",
			Message: "At least one field must be provided for update",
		}
	}

	in := newUpdateInput(req)
	fieldErrs, err := flattenErrors(in.Validate(), -1)
	if err != nil {
		return nil, fmt.Errorf("validate update: %w", err)
	}
	if len(fieldErrs) > 0 {
		return nil, newValidationError("validation_error", fieldErrs)
	}

	card, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Front.Present {
		card.Front = in.Front
	}
	if req.Back.Present {
		card.Back = in.Back
	}
	if req.Subject.Present {
		card.Subject = optionalTrimmed(in.Subject)
	}
	if req.Source.Present {
		card.Source = models.FlashcardSource(in.Source)
	}
	if req.GenerationID.Present {
		card.GenerationID = optionalTrimmed(in.GenerationID)
	}

	if (req.Source.Present || req.GenerationID.Present) && !pairingValid(card.Source, card.GenerationID) {
		return nil, newValidationError("validation_error", []domain.FieldError{
			{Index: -1, Field: "generationId", Message: msgGenerationPair},
		})
	}

	card.ContentHash = models.ContentHash(card.Front, card.Back)

	if err := s.repo.Update(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("flashcard updated",
		"id", card.ID,
		"full", req.Full,
		"user_id", userID,
	)

	return card, nil
}

// DeleteFlashcard removes one of the caller's cards
func (s *flashcardService) DeleteFlashcard(ctx context.Context, id, userID string) error {
	// Verify the card exists first so a miss is reported, never swallowed
	if _, err := s.repo.GetByID(ctx, id, userID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.logger.Info("flashcard deleted",
		"id", id,
		"user_id", userID,
	)

	return nil
}

// checkLimit must run inside a transaction so the count stays valid until insert.
func (s *flashcardService) checkLimit(ctx context.Context, userID string, additional int) error {
	if err := s.repo.LockUser(ctx, userID); err != nil {
		return err
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}

	if count+additional > config.MaxFlashcardsPerUser {
		s.logger.Warn("flashcard limit reached",
			"user_id", userID,
			"current", count,
			"requested", additional,
		)
		return &domain.ConflictError{
			Message:      fmt.Sprintf("Flashcard limit exceeded. Maximum %d flashcards allowed per user.", config.MaxFlashcardsPerUser),
			Reason:       domain.ConflictLimitExceeded,
			ResourceType: "flashcard",
		}
	}

	return nil
}

// buildFlashcard validates req and returns the card to insert. index tags
// field errors (-1 outside a batch).
func (s *flashcardService) buildFlashcard(userID string, req *services.CreateFlashcardRequest, index int) (*models.Flashcard, []domain.FieldError, error) {
	in := newCreateInput(req)
	fieldErrs, err := flattenErrors(in.Validate(), index)
	if err != nil {
		return nil, nil, fmt.Errorf("validate flashcard: %w", err)
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	now := s.now().UTC()
	return &models.Flashcard{
		UserID:       userID,
		Front:        in.Front,
		Back:         in.Back,
		Subject:      optionalTrimmed(in.Subject),
		Source:       models.FlashcardSource(in.Source),
		GenerationID: optionalTrimmed(in.GenerationID),
		NextReviewAt: now.Format(time.DateOnly),
		ReviewCount:  0,
		EaseFactor:   config.DefaultEaseFactor,
		ContentHash:  models.ContentHash(in.Front, in.Back),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil, nil
}

// createInput is a create request after trimming and defaulting.
type createInput struct {
	Front        string `json:"front"`
	Back         string `json:"back"`
	Subject      string `json:"subject"`
	Source       string `json:"source"`
	GenerationID string `json:"generationId"`
}

func newCreateInput(req *services.CreateFlashcardRequest) *createInput {
	in := &createInput{
		Front:  strings.TrimSpace(req.Front),
		Back:   strings.TrimSpace(req.Back),
		Source: string(req.Source),
	}
	if req.Subject != nil {
		in.Subject = strings.TrimSpace(*req.Subject)
	}
	if in.Source == "" {
		in.Source = string(models.SourceManual)
	}
	if req.GenerationID != nil {
		in.GenerationID = strings.TrimSpace(*req.GenerationID)
	}
	return in
}

func (in *createInput) Validate() error {
	isAI := models.FlashcardSource(in.Source).IsAI()
	return validation.ValidateStruct(in,
		validation.Field(&in.Front, textRules("Front")...),
		validation.Field(&in.Back, textRules("Back")...),
		validation.Field(&in.Subject, subjectRule()),
		validation.Field(&in.Source, validation.In(sourceValues...).Error(msgSource)),
		validation.Field(&in.GenerationID,
			is.UUID.Error(msgGenerationUUID),
			validation.When(isAI, validation.Required.Error(msgGenerationPair)).
				Else(validation.Empty.Error(msgGenerationPair)),
		),
	)
}

// updateInput holds the trimmed values of the fields present in an update.
type updateInput struct {
	Front        string `json:"front"`
	Back         string `json:"back"`
	Subject      string `json:"subject"`
	Source       string `json:"source"`
	GenerationID string `json:"generationId"`

	req *services.UpdateFlashcardRequest
}

func newUpdateInput(req *services.UpdateFlashcardRequest) *updateInput {
	return &updateInput{
		Front:        trimmedValue(req.Front),
		Back:         trimmedValue(req.Back),
		Subject:      trimmedValue(req.Subject),
		Source:       trimmedValue(req.Source),
		GenerationID: trimmedValue(req.GenerationID),
		req:          req,
	}
}

func (in *updateInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Front, validation.When(in.req.Front.Present, textRules("Front")...)),
		validation.Field(&in.Back, validation.When(in.req.Back.Present, textRules("Back")...)),
		validation.Field(&in.Subject, validation.When(in.req.Subject.Present, subjectRule())),
		validation.Field(&in.Source, validation.When(in.req.Source.Present,
			validation.Required.Error(msgSource),
			validation.In(sourceValues...).Error(msgSource),
		)),
		validation.Field(&in.GenerationID, validation.When(in.req.GenerationID.Present,
			is.UUID.Error(msgGenerationUUID),
		)),
	)
}

func textRules(label string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(label + " text is required"),
		validation.RuneLength(1, config.MaxFlashcardTextLength).
			Error(fmt.Sprintf("%s text cannot exceed %d characters", label, config.MaxFlashcardTextLength)),
	}
}

func subjectRule() validation.Rule {
	return validation.RuneLength(0, config.MaxSubjectLength).
		Error(fmt.Sprintf("Subject cannot exceed %d characters", config.MaxSubjectLength))
}

func pairingValid(source models.FlashcardSource, generationID *string) bool {
	if source.IsAI() {
		return generationID != nil
	}
	return generationID == nil
}

func isBlank(v services.OptionalString) bool {
	return !v.Present || v.Value == nil || *v.Value == ""
}

func trimmedValue(v services.OptionalString) string {
	if v.Value == nil {
		return ""
	}
	return strings.TrimSpace(*v.Value)
}

// optionalTrimmed maps "" to nil.
func optionalTrimmed(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// listQuery is a parsed list request.
type listQuery struct {
	filter   models.FlashcardFilter
	page     int
	pageSize int
}

type listInput struct {
	Page     *int   `json:"page"`
	PageSize *int   `json:"pageSize"`
	Limit    *int   `json:"limit"`
	Search   string `json:"search"`
	Subject  string `json:"subject"`
	Sort     string `json:"sort"`
	Order    string `json:"order"`
}

func (in *listInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Page, intRange(in.Page, 1, 0, "Page")),
		validation.Field(&in.PageSize, intRange(in.PageSize, 1, config.MaxPageSize, "Page size")),
		validation.Field(&in.Limit, intRange(in.Limit, 1, config.MaxListLimit, "Limit")),
		validation.Field(&in.Search, validation.RuneLength(0, config.MaxSearchLength).
			Error(fmt.Sprintf("Search term cannot exceed %d characters", config.MaxSearchLength))),
		validation.Field(&in.Subject, validation.RuneLength(0, config.MaxSubjectLength).
			Error(fmt.Sprintf("Subject filter cannot exceed %d characters", config.MaxSubjectLength))),
		validation.Field(&in.Sort, validation.In(string(models.SortCreatedAt), string(models.SortNextReviewAt)).
			Error("Sort must be one of: created_at, next_review_at")),
		validation.Field(&in.Order, validation.In(string(models.OrderAsc), string(models.OrderDesc)).
			Error("Order must be one of: asc, desc")),
	)
}

// intRange checks a supplied integer parameter. Zero counts as empty for
// ozzo's threshold rules, so Required catches it first.
func intRange(v *int, min, max int, label string) validation.Rule {
	minMsg := fmt.Sprintf("%s must be at least %d", label, min)
	rules := []validation.Rule{
		validation.Required.Error(minMsg),
		validation.Min(min).Error(minMsg),
	}
	if max > 0 {
		rules = append(rules, validation.Max(max).Error(fmt.Sprintf("%s cannot exceed %d", label, max)))
	}
	return validation.When(v != nil, rules...)
}

func parseIntParam(raw *string, field, label string, errs *[]domain.FieldError) *int {
	if raw == nil {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		*errs = append(*errs, domain.FieldError{Index: -1, Field: field, Message: label + " must be an integer"})
		return nil
	}
	return &v
}

// maxPage keeps the row offset within a 32-bit range for every store.
func maxPage(pageSize int) int {
	return math.MaxInt32/pageSize + 1
}

func trimmedParam(raw *string) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(*raw)
}

func parseListRequest(req *services.ListFlashcardsRequest) (*listQuery, error) {
	var fieldErrs []domain.FieldError

	in := &listInput{
		Page:     parseIntParam(req.Page, "page", "Page", &fieldErrs),
		PageSize: parseIntParam(req.PageSize, "pageSize", "Page size", &fieldErrs),
		Limit:    parseIntParam(req.Limit, "limit", "Limit", &fieldErrs),
		Search:   trimmedParam(req.Search),
		Subject:  trimmedParam(req.Subject),
		Sort:     trimmedParam(req.Sort),
		Order:    trimmedParam(req.Order),
	}

	ruleErrs, err := flattenErrors(in.Validate(), -1)
	if err != nil {
		return nil, fmt.Errorf("validate list query: %w", err)
	}
	fieldErrs = append(fieldErrs, ruleErrs...)

	if len(fieldErrs) == 0 {
		// Presence is judged on the raw parameters so a malformed value
		// still counts as supplied.
		hasPage := req.Page != nil || req.PageSize != nil
		if (hasPage && req.Limit != nil) || ((req.Page == nil) != (req.PageSize == nil)) {
			fieldErrs = append(fieldErrs, domain.FieldError{Index: -1, Field: "page", Message: msgPagingExclusive})
		} else if in.Page != nil && *in.Page > maxPage(*in.PageSize) {
			fieldErrs = append(fieldErrs, domain.FieldError{Index: -1, Field: "page",
				Message: fmt.Sprintf("Page cannot exceed %d", maxPage(*in.PageSize))})
		}
	}

	if len(fieldErrs) > 0 {
		sortFieldErrors(fieldErrs)
		return nil, newValidationError("validation_error", fieldErrs)
	}

	q := &listQuery{page: 1, pageSize: config.DefaultPageSize}
	switch {
	case in.Limit != nil:
		q.pageSize = *in.Limit
	case in.Page != nil:
		q.page = *in.Page
		q.pageSize = *in.PageSize
	}

	q.filter = models.FlashcardFilter{
		Search:  in.Search,
		Subject: in.Subject,
		Sort:    models.SortField(in.Sort),
		Order:   models.SortOrder(in.Order),
		Limit:   q.pageSize,
		Offset:  (q.page - 1) * q.pageSize,
	}
	if q.filter.Sort == "" {
		q.filter.Sort = models.SortCreatedAt
	}
	if q.filter.Order == "" {
		q.filter.Order = models.OrderDesc
	}

	return q, nil
}
