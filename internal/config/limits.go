package config

import "time"

const (
	// MaxFlashcardTextLength bounds both the front and the back of a card.
	MaxFlashcardTextLength = 2000

	// MaxSubjectLength is the maximum length for a flashcard subject.
	MaxSubjectLength = 100

	// MaxFlashcardsPerUser is the absolute per-user cap, checked on every create.
	MaxFlashcardsPerUser = 2000

	// MaxBatchSize is the number of cards a single batch request may carry.
	// Larger batches are rejected with 413 before any item is validated.
	MaxBatchSize = 50

	// MaxPageSize and MaxListLimit bound the two list pagination styles.
	MaxPageSize  = 50
	MaxListLimit = 100

	// DefaultPageSize is used when neither page/pageSize nor limit is given.
	DefaultPageSize = 50

	// MaxSearchLength is the maximum length of the list search term.
	MaxSearchLength = 200

	// DefaultEaseFactor is the starting ease factor for new cards.
	DefaultEaseFactor = 2.5
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// Generation workspace limits (client side).
const (
	MinSourceTextLength   = 20
	MaxSourceTextLength   = 5000
	MaxProposalsRequested = 20
	MaxGenerateSubject    = 30
)

const (
	// SessionCookieMaxAge is how long synced session cookies live in the browser.
	SessionCookieMaxAge = 7 * 24 * time.Hour

	// RefetchDelay is the pause before re-reading the list after a mutation.
	// The managed store can lag behind its own writes by a few hundred ms.
	RefetchDelay = 300 * time.Millisecond
)
