// Package generate holds the proposal workspace: source text goes in, card
// proposals come out, and the selected ones are saved as a batch.
package generate

import (
	"context"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/i18n"
)

// StubProposalLimit caps the number of proposals the stub produces.
const StubProposalLimit = 5

// Request asks for proposals from SourceText.
type Request struct {
	SourceText string `json:"sourceText"`
	Max        int    `json:"max"`
	Subject    string `json:"subject,omitempty"`
}

// Proposal is a card suggested by the generator. It becomes a flashcard
// only when selected and saved.
type Proposal struct {
	Front        string                 `json:"front"`
	Back         string                 `json:"back"`
	Subject      string                 `json:"subject"`
	Source       models.FlashcardSource `json:"source"`
	GenerationID string                 `json:"generationId"`
}

// Generator produces proposals for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Proposal, error)
}

// StubGenerator fabricates proposals locally after a fixed delay.
type StubGenerator struct {
	latency time.Duration
	catalog *i18n.Catalog

	mu    sync.Mutex
	lorem *loremgen.Lorem
}

// NewStubGenerator creates a stub that waits latency before answering.
func NewStubGenerator(latency time.Duration, catalog *i18n.Catalog) *StubGenerator {
	return &StubGenerator{
		latency: latency,
		catalog: catalog,
		lorem:   loremgen.New(),
	}
}

// Generate returns min(req.Max, StubProposalLimit) proposals sharing one
// fresh generation id.
func (g *StubGenerator) Generate(ctx context.Context, req Request) ([]Proposal, error) {
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	subject := req.Subject
	if subject == "" {
		subject = g.catalog.Message(i18n.GenerateDefaultSubject)
	}

	excerpt := []rune(req.SourceText)
	if len(excerpt) > 30 {
		excerpt = excerpt[:30]
	}

	generationID := uuid.NewString()
	n := min(req.Max, StubProposalLimit)
	proposals := make([]Proposal, 0, n)

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < n; i++ {
		proposals = append(proposals, Proposal{
			Front:        g.catalog.Message(i18n.GenerateQuestion, i+1, string(excerpt)),
			Back:         g.catalog.Message(i18n.GenerateAnswer, i+1) + ". " + g.lorem.Sentence(5, 10),
			Subject:      subject,
			Source:       models.SourceAIFull,
			GenerationID: generationID,
		})
	}
	return proposals, nil
}
