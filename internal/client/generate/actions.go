package generate

import (
	"context"
	"fmt"
)

// Action is a message that Dispatch applies to a Store.
type Action interface {
	isAction()
}

type (
	// GenerateAction replaces the proposals.
	GenerateAction struct{ Request Request }
	// ToggleSelectAction flips one selection.
	ToggleSelectAction struct{ Index int }
	// UpdateProposalAction edits one proposal.
	UpdateProposalAction struct {
		Index int
		Patch ProposalPatch
	}
	// SaveSelectedAction saves the selection as a batch.
	SaveSelectedAction struct{}
	// ResetAction empties the workspace.
	ResetAction struct{}
	// ClearErrorAction drops the error message.
	ClearErrorAction struct{}
)

func (GenerateAction) isAction()       {}
func (ToggleSelectAction) isAction()   {}
func (UpdateProposalAction) isAction() {}
func (SaveSelectedAction) isAction()   {}
func (ResetAction) isAction()          {}
func (ClearErrorAction) isAction()     {}

// Dispatch applies action and returns the resulting state.
func (s *Store) Dispatch(ctx context.Context, action Action) (State, error) {
	var err error
	switch a := action.(type) {
	case GenerateAction:
		err = s.Generate(ctx, a.Request)
	case ToggleSelectAction:
		s.ToggleSelect(a.Index)
	case UpdateProposalAction:
		s.UpdateProposal(a.Index, a.Patch)
	case SaveSelectedAction:
		_, err = s.SaveSelected(ctx)
	case ResetAction:
		s.Reset()
	case ClearErrorAction:
		s.ClearError()
	default:
		err = fmt.Errorf("unknown action %T", action)
	}
	return s.Snapshot(), err
}
