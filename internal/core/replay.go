package core

import (
	"bytes"
	"fmt"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/ledger"
	"main/internal/schema"
	"main/internal/state"
)

// Replayer rebuilds the decision ledger and exposures from journaled
// events and checks that the commit hash chain is intact.
type Replayer struct {
	decisions *ledger.StateMachine
	exposures *state.ExposureReducer
	prevHash  [schema.HashSize]byte
	counts    map[schema.EventType]int
	total     int
}

// NewReplayer creates an empty replayer anchored at genesis.
func NewReplayer() *Replayer {
	return &Replayer{
		decisions: ledger.NewStateMachine(),
		exposures: state.NewExposureReducer(),
		counts:    make(map[schema.EventType]int),
	}
}

// Decisions returns the rebuilt ledger.
func (r *Replayer) Decisions() *ledger.StateMachine {
	return r.decisions
}

// Exposures returns the rebuilt exposure state.
func (r *Replayer) Exposures() *state.ExposureReducer {
	return r.exposures
}

// Counts returns per-type event counts.
func (r *Replayer) Counts() map[schema.EventType]int {
	return r.counts
}

// Total returns the number of applied events.
func (r *Replayer) Total() int {
	return r.total
}

// Apply folds one journaled event into the replay state.
func (r *Replayer) Apply(e bus.Event) error {
	r.total++
	r.counts[e.Header.Type]++

	switch e.Header.Type {
	case schema.EventOverlayDecision:
		decision, ok := codec.DecodeOverlayDecision(e.Payload)
		if !ok {
			return fmt.Errorf("decode overlay decision failed")
		}
		if _, err := r.decisions.ApplyProposal(decision.DecisionID, decision.SymbolID, decision.ProposedDelta); err != nil {
			return err
		}
		_, err := r.decisions.ApplyOverlay(decision)
		return err
	case schema.EventCommitRecord:
		commit, ok := codec.DecodeCommitRecord(e.Payload)
		if !ok {
			return fmt.Errorf("decode commit record failed")
		}
		if !bytes.Equal(commit.PrevHash[:], r.prevHash[:]) {
			return fmt.Errorf("commit chain broken at decision %d", commit.DecisionID)
		}
		r.prevHash = commit.RecordHash
		if _, err := r.decisions.ApplyCommit(commit); err != nil {
			return err
		}
		next := r.exposures.ApplyCommit(commit)
		if next != commit.NewExposure {
			return fmt.Errorf("exposure mismatch for symbol %d: journal=%d replay=%d",
				commit.SymbolID, commit.NewExposure, next)
		}
		return nil
	default:
		return nil
	}
}
