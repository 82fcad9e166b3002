package generate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/LukePietrzyk/10DevsLukasz/internal/client/api"
	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/i18n"
)

// ErrNothingSelected is returned by SaveSelected with an empty selection.
var ErrNothingSelected = errors.New("no proposals selected")

// Saver persists a batch of cards.
type Saver interface {
	CreateFlashcardsBatch(ctx context.Context, cards []services.CreateFlashcardRequest) (*services.BatchCreateResponse, error)
}

// State is a snapshot of the workspace. Selected holds proposal indices in
// ascending order.
type State struct {
	Loading   bool
	Proposals []Proposal
	Selected  []int
	Error     string
}

// ProposalPatch edits a proposal; nil fields are left alone.
type ProposalPatch struct {
	Front   *string
	Back    *string
	Subject *string
}

// Store is the workspace state container. It is safe for concurrent use.
type Store struct {
	generator Generator
	saver     Saver
	catalog   *i18n.Catalog
	logger    *slog.Logger

	mu        sync.Mutex
	loading   bool
	proposals []Proposal
	selected  map[int]bool
	errMsg    string
}

// NewStore creates an empty workspace.
func NewStore(generator Generator, saver Saver, catalog *i18n.Catalog, logger *slog.Logger) *Store {
	return &Store{
		generator: generator,
		saver:     saver,
		catalog:   catalog,
		logger:    logger,
		selected:  make(map[int]bool),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Loading:   s.loading,
		Proposals: append([]Proposal(nil), s.proposals...),
		Selected:  s.selectedIndices(),
		Error:     s.errMsg,
	}
}

// Validate checks a request the way the generation form does.
func (s *Store) Validate(req Request) error {
	tooShort := s.catalog.Message(i18n.GenerateSourceTooShort, config.MinSourceTextLength)
	err := validation.Validate(req.SourceText,
		validation.Required.Error(tooShort),
		validation.RuneLength(config.MinSourceTextLength, 0).Error(tooShort),
		validation.RuneLength(0, config.MaxSourceTextLength).Error(
			s.catalog.Message(i18n.GenerateSourceTooLong, config.MaxSourceTextLength)),
	)
	if err != nil {
		return err
	}

	maxRange := s.catalog.Message(i18n.GenerateMaxRange, config.MaxProposalsRequested)
	err = validation.Validate(req.Max,
		validation.Required.Error(maxRange),
		validation.Min(1).Error(maxRange),
		validation.Max(config.MaxProposalsRequested).Error(maxRange),
	)
	if err != nil {
		return err
	}

	return validation.Validate(req.Subject,
		validation.RuneLength(0, config.MaxGenerateSubject).Error(
			s.catalog.Message(i18n.GenerateSubjectTooLong, config.MaxGenerateSubject)),
	)
}

// Generate replaces the proposals with a fresh set and clears the selection.
// On failure the proposals are kept and the error message is stored.
func (s *Store) Generate(ctx context.Context, req Request) error {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	if err := s.Validate(req); err != nil {
		s.finish(err.Error())
		return err
	}

	proposals, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.Warn("generation failed", "error", err)
		s.finish(s.catalog.Message(i18n.GenerateUnknownError))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = proposals
	s.selected = make(map[int]bool)
	s.loading = false
	return nil
}

// ToggleSelect flips the selection of proposal i. Out-of-range indices are
// ignored.
func (s *Store) ToggleSelect(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.proposals) {
		return
	}
	if s.selected[i] {
		delete(s.selected, i)
	} else {
		s.selected[i] = true
	}
}

// UpdateProposal applies patch to proposal i. Out-of-range indices are
// ignored.
func (s *Store) UpdateProposal(i int, patch ProposalPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.proposals) {
		return
	}
	p := &s.proposals[i]
	if patch.Front != nil {
		p.Front = *patch.Front
	}
	if patch.Back != nil {
		p.Back = *patch.Back
	}
	if patch.Subject != nil {
		p.Subject = *patch.Subject
	}
}

// SaveSelected batch-creates the selected proposals. On success the
// workspace is emptied.
func (s *Store) SaveSelected(ctx context.Context) (*services.BatchCreateResponse, error) {
	s.mu.Lock()
	indices := s.selectedIndices()
	if len(indices) == 0 {
		s.errMsg = s.catalog.Message(i18n.GenerateNothingSelected)
		s.mu.Unlock()
		return nil, ErrNothingSelected
	}

	cards := make([]services.CreateFlashcardRequest, 0, len(indices))
	for _, i := range indices {
		cards = append(cards, toCreateRequest(s.proposals[i]))
	}
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	resp, err := s.saver.CreateFlashcardsBatch(ctx, cards)
	if err != nil {
		msg := s.catalog.Message(i18n.GenerateSaveFailed)
		if apiErr, ok := api.AsAPIError(err); ok && apiErr.Detail() != "" {
			msg = apiErr.Detail()
		}
		s.logger.Warn("saving proposals failed", "count", len(cards), "error", err)
		s.finish(msg)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = nil
	s.selected = make(map[int]bool)
	s.loading = false
	return resp, nil
}

// Reset empties the workspace.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.proposals = nil
	s.selected = make(map[int]bool)
	s.errMsg = ""
}

// ClearError drops the stored error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

func (s *Store) finish(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.errMsg = errMsg
}

// selectedIndices must be called with the lock held.
func (s *Store) selectedIndices() []int {
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func toCreateRequest(p Proposal) services.CreateFlashcardRequest {
	req := services.CreateFlashcardRequest{
		Front:  p.Front,
		Back:   p.Back,
		Source: p.Source,
	}
	if req.Source == "" {
		req.Source = models.SourceAIFull
	}
	if p.Subject != "" {
		subject := p.Subject
		req.Subject = &subject
	}
	if p.GenerationID != "" {
		id := p.GenerationID
		req.GenerationID = &id
	}
	return req
}
