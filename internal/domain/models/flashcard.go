package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// FlashcardSource says where a card came from.
type FlashcardSource string

const (
	SourceManual   FlashcardSource = "manual"
	SourceAIFull   FlashcardSource = "ai-full"
	SourceAIEdited FlashcardSource = "ai-edited"
)

// IsAI reports whether the source is AI-derived and therefore needs a generation id.
func (s FlashcardSource) IsAI() bool {
	return s == SourceAIFull || s == SourceAIEdited
}

// Valid reports whether s is one of the known sources.
func (s FlashcardSource) Valid() bool {
	return s == SourceManual || s.IsAI()
}

// Flashcard is a single study card owned by one user.
// NextReviewAt is a calendar date formatted as YYYY-MM-DD.
type Flashcard struct {
	ID           string          `json:"id"`
	UserID       string          `json:"-"`
	Front        string          `json:"front"`
	Back         string          `json:"back"`
	Subject      *string         `json:"subject"`
	Source       FlashcardSource `json:"source"`
	GenerationID *string         `json:"generationId"`
	NextReviewAt string          `json:"nextReviewAt"`
	LastReviewAt *time.Time      `json:"lastReviewAt"`
	ReviewCount  int             `json:"reviewCount"`
	EaseFactor   float64         `json:"easeFactor"`
	ContentHash  string          `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ContentHash fingerprints card content for duplicate detection.
// Case and surrounding whitespace are ignored.
func ContentHash(front, back string) string {
	content := strings.ToLower(strings.TrimSpace(front)) + "|" + strings.ToLower(strings.TrimSpace(back))
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SortField is a column the list may be ordered by.
type SortField string

const (
	SortCreatedAt    SortField = "created_at"
	SortNextReviewAt SortField = "next_review_at"
)

// SortOrder is the list direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// FlashcardFilter is a validated list query as the repository sees it.
type FlashcardFilter struct {
	Search  string
	Subject string
	Sort    SortField
	Order   SortOrder
	Limit   int
	Offset  int
}

// Page is one page of results with pagination metadata.
type Page[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TotalPages returns ceil(total/pageSize), or 0 for an empty result.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
