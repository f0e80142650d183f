package ledger

import (
	"errors"

	"main/internal/schema"
)

var (
	ErrDuplicateDecision = errors.New("decision already exists")
	ErrUnknownDecision   = errors.New("decision not found")
	ErrInvalidTransition = errors.New("invalid decision state transition")
)

// DecisionState tracks the lifecycle of a decision.
type DecisionState uint16

const (
	DecisionStateUnknown DecisionState = iota
	DecisionStateProposed
	DecisionStateCleared
	DecisionStateTrimmed
	DecisionStateVetoed
	DecisionStateFlattened
	DecisionStateCommitted
)

// Decision holds the ledger's view of one decision.
type Decision struct {
	ID            uint64
	SymbolID      uint32
	ProposedDelta schema.Exposure
	ClearedDelta  schema.Exposure
	Action        schema.OverlayAction
	Reason        schema.OverlayReason
	State         DecisionState
}

// StateMachine updates decisions from proposal/overlay/commit events.
type StateMachine struct {
	decisions map[uint64]*Decision
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{decisions: make(map[uint64]*Decision)}
}

// Decision returns the current decision state.
func (m *StateMachine) Decision(id uint64) (*Decision, bool) {
	d, ok := m.decisions[id]
	return d, ok
}

// Len returns the number of tracked decisions.
func (m *StateMachine) Len() int {
	return len(m.decisions)
}

// Open returns the number of decisions not yet in a terminal state.
func (m *StateMachine) Open() int {
	count := 0
	for _, d := range m.decisions {
		if !isTerminal(d.State) {
			count++
		}
	}
	return count
}

// ApplyProposal registers a new decision in Proposed state.
func (m *StateMachine) ApplyProposal(id uint64, symbolID uint32, delta schema.Exposure) (*Decision, error) {
	if id == 0 {
		return nil, ErrUnknownDecision
	}
	if _, ok := m.decisions[id]; ok {
		return nil, ErrDuplicateDecision
	}
	d := &Decision{
		ID:            id,
		SymbolID:      symbolID,
		ProposedDelta: delta,
		State:         DecisionStateProposed,
	}
	m.decisions[d.ID] = d
	return d, nil
}

// ApplyOverlay updates a decision from an overlay outcome.
func (m *StateMachine) ApplyOverlay(dec schema.OverlayDecision) (*Decision, error) {
	d, ok := m.decisions[dec.DecisionID]
	if !ok {
		return nil, ErrUnknownDecision
	}
	if d.State != DecisionStateProposed {
		return d, ErrInvalidTransition
	}
	d.ClearedDelta = dec.ClearedDelta
	d.Action = dec.Action
	d.Reason = dec.Reason

	switch dec.Action {
	case schema.OverlayActionAllow:
		d.State = DecisionStateCleared
	case schema.OverlayActionTrim:
		d.State = DecisionStateTrimmed
	case schema.OverlayActionVeto:
		d.State = DecisionStateVetoed
	case schema.OverlayActionFlatten:
		d.State = DecisionStateFlattened
	default:
		d.State = DecisionStateUnknown
	}
	return d, nil
}

// ApplyCommit moves a cleared decision into Committed state.
func (m *StateMachine) ApplyCommit(rec schema.CommitRecord) (*Decision, error) {
	d, ok := m.decisions[rec.DecisionID]
	if !ok {
		return nil, ErrUnknownDecision
	}
	switch d.State {
	case DecisionStateCleared, DecisionStateTrimmed, DecisionStateFlattened:
	default:
		return d, ErrInvalidTransition
	}
	if rec.Delta != d.ClearedDelta {
		return d, ErrInvalidTransition
	}
	d.State = DecisionStateCommitted
	return d, nil
}

func isTerminal(state DecisionState) bool {
	switch state {
	case DecisionStateVetoed, DecisionStateCommitted:
		return true
	default:
		return false
	}
}
