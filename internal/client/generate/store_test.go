package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/LukePietrzyk/10DevsLukasz/internal/client/api"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/httputil"
	"github.com/LukePietrzyk/10DevsLukasz/internal/i18n"
)

type recordingSaver struct {
	got []services.CreateFlashcardRequest
	err error
}

func (r *recordingSaver) CreateFlashcardsBatch(_ context.Context, cards []services.CreateFlashcardRequest) (*services.BatchCreateResponse, error) {
	r.got = cards
	if r.err != nil {
		return nil, r.err
	}
	return &services.BatchCreateResponse{Created: len(cards)}, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, Request) ([]Proposal, error) {
	return nil, errors.New("upstream down")
}

func newStore(saver Saver) *Store {
	return NewStore(NewStubGenerator(0, i18n.Polish()), saver, i18n.Polish(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var validRequest = Request{SourceText: strings.Repeat("Fotosynteza ", 3), Max: 10, Subject: "Biologia"}

func TestGenerate_Proposals(t *testing.T) {
	s := newStore(&recordingSaver{})

	if err := s.Generate(context.Background(), validRequest); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	st := s.Snapshot()
	if len(st.Proposals) != StubProposalLimit {
		t.Fatalf("proposals = %d, want %d", len(st.Proposals), StubProposalLimit)
	}
	genID := st.Proposals[0].GenerationID
	for i, p := range st.Proposals {
		if p.Source != models.SourceAIFull {
			t.Errorf("proposal %d source = %s", i, p.Source)
		}
		if p.GenerationID != genID || genID == "" {
			t.Errorf("proposal %d generation id = %q", i, p.GenerationID)
		}
		if p.Subject != "Biologia" {
			t.Errorf("proposal %d subject = %q", i, p.Subject)
		}
	}
	if !strings.HasPrefix(st.Proposals[0].Front, "Pytanie 1 z materiału: ") {
		t.Errorf("front = %q", st.Proposals[0].Front)
	}
	if st.Loading || st.Error != "" {
		t.Errorf("state = %+v", st)
	}

	small := validRequest
	small.Max = 2
	small.Subject = ""
	s.Generate(context.Background(), small)
	st = s.Snapshot()
	if len(st.Proposals) != 2 {
		t.Errorf("proposals = %d, want 2", len(st.Proposals))
	}
	if st.Proposals[0].Subject != "Wygenerowane" {
		t.Errorf("default subject = %q", st.Proposals[0].Subject)
	}
	if st.Proposals[0].GenerationID == genID {
		t.Error("each generation should get a fresh id")
	}
}

func TestGenerate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"empty source", Request{Max: 5}, "Materiał źródłowy musi mieć co najmniej 20 znaków"},
		{"short source", Request{SourceText: "za krótki", Max: 5}, "Materiał źródłowy musi mieć co najmniej 20 znaków"},
		{"long source", Request{SourceText: strings.Repeat("a", 5001), Max: 5}, "Materiał źródłowy nie może przekraczać 5000 znaków"},
		{"zero max", Request{SourceText: validRequest.SourceText}, "Liczba kart musi być między 1 a 20"},
		{"max too big", Request{SourceText: validRequest.SourceText, Max: 21}, "Liczba kart musi być między 1 a 20"},
		{"long subject", Request{SourceText: validRequest.SourceText, Max: 5, Subject: strings.Repeat("ż", 31)}, "Temat nie może przekraczać 30 znaków"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(&recordingSaver{})
			err := s.Generate(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			st := s.Snapshot()
			if st.Error != tt.want {
				t.Errorf("error = %q, want %q", st.Error, tt.want)
			}
			if st.Loading {
				t.Error("loading left on")
			}
		})
	}
}

func TestGenerate_GeneratorFailureKeepsProposals(t *testing.T) {
	s := newStore(&recordingSaver{})
	s.Generate(context.Background(), validRequest)

	s.generator = failingGenerator{}
	if err := s.Generate(context.Background(), validRequest); err == nil {
		t.Fatal("expected error")
	}
	st := s.Snapshot()
	if len(st.Proposals) != StubProposalLimit || st.Error != "Nieznany błąd" {
		t.Errorf("state = %+v", st)
	}
}

func TestStubGenerator_Cancellation(t *testing.T) {
	g := NewStubGenerator(time.Hour, i18n.Polish())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Generate(ctx, validRequest); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSelectionAndEdits(t *testing.T) {
	s := newStore(&recordingSaver{})
	s.Generate(context.Background(), validRequest)

	s.ToggleSelect(3)
	s.ToggleSelect(1)
	s.ToggleSelect(1)
	s.ToggleSelect(0)
	s.ToggleSelect(99)
	s.ToggleSelect(-1)

	st := s.Snapshot()
	if len(st.Selected) != 2 || st.Selected[0] != 0 || st.Selected[1] != 3 {
		t.Errorf("selected = %v, want [0 3]", st.Selected)
	}

	front := "Co to jest fotosynteza?"
	s.UpdateProposal(0, ProposalPatch{Front: &front})
	s.UpdateProposal(42, ProposalPatch{Front: &front})
	if got := s.Snapshot().Proposals[0].Front; got != front {
		t.Errorf("front = %q", got)
	}
}

func TestSaveSelected(t *testing.T) {
	saver := &recordingSaver{}
	s := newStore(saver)
	s.Generate(context.Background(), validRequest)

	if _, err := s.SaveSelected(context.Background()); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("err = %v, want ErrNothingSelected", err)
	}
	if got := s.Snapshot().Error; got != "Wybierz co najmniej jedną fiszkę do zapisania" {
		t.Errorf("error = %q", got)
	}

	s.ClearError()
	s.ToggleSelect(2)
	s.ToggleSelect(0)
	resp, err := s.SaveSelected(context.Background())
	if err != nil {
		t.Fatalf("SaveSelected: %v", err)
	}
	if resp.Created != 2 || len(saver.got) != 2 {
		t.Fatalf("saved %d cards", len(saver.got))
	}
	first := saver.got[0]
	if first.Source != models.SourceAIFull || first.GenerationID == nil || first.Subject == nil {
		t.Errorf("request = %+v", first)
	}

	st := s.Snapshot()
	if len(st.Proposals) != 0 || len(st.Selected) != 0 || st.Error != "" {
		t.Errorf("workspace not emptied: %+v", st)
	}
}

func TestSaveSelected_Failure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "problem detail",
			err:  &api.APIError{Status: 409, Problem: httputil.ProblemDetail{Type: "flashcard_limit_exceeded", Detail: "Flashcard limit exceeded. Maximum 2000 flashcards allowed per user."}},
			want: "Flashcard limit exceeded. Maximum 2000 flashcards allowed per user.",
		},
		{name: "transport", err: errors.New("connection reset"), want: "Błąd podczas zapisywania fiszek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(&recordingSaver{err: tt.err})
			s.Generate(context.Background(), validRequest)
			s.ToggleSelect(0)

			if _, err := s.SaveSelected(context.Background()); err == nil {
				t.Fatal("expected error")
			}
			st := s.Snapshot()
			if st.Error != tt.want {
				t.Errorf("error = %q, want %q", st.Error, tt.want)
			}
			if len(st.Proposals) != StubProposalLimit || len(st.Selected) != 1 {
				t.Errorf("failed save should keep the workspace: %+v", st)
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	s := newStore(&recordingSaver{})
	ctx := context.Background()

	st, err := s.Dispatch(ctx, GenerateAction{Request: validRequest})
	if err != nil || len(st.Proposals) != StubProposalLimit {
		t.Fatalf("generate: %v %+v", err, st)
	}
	st, _ = s.Dispatch(ctx, ToggleSelectAction{Index: 1})
	if len(st.Selected) != 1 {
		t.Errorf("selected = %v", st.Selected)
	}
	st, err = s.Dispatch(ctx, SaveSelectedAction{})
	if err != nil || len(st.Proposals) != 0 {
		t.Errorf("save: %v %+v", err, st)
	}
	st, _ = s.Dispatch(ctx, SaveSelectedAction{})
	if st.Error == "" {
		t.Error("expected nothing-selected error")
	}
	st, _ = s.Dispatch(ctx, ClearErrorAction{})
	if st.Error != "" {
		t.Error("error not cleared")
	}
	s.Dispatch(ctx, GenerateAction{Request: validRequest})
	st, _ = s.Dispatch(ctx, ResetAction{})
	if len(st.Proposals) != 0 {
		t.Error("reset kept proposals")
	}
}
