package persona

import (
	"math"

	"main/internal/regime"
)

// Guardian is the supreme risk governor. It never trades a view of its
// own: it produces a single portfolio risk weight in [0, 1] derived from
// the constitution profile, which the engine applies multiplicatively to
// the combined directional signal.
type Guardian struct{}

// NewGuardian creates the guardian persona.
func NewGuardian() *Guardian {
	return &Guardian{}
}

func (g *Guardian) Name() string { return "guardian" }

// Propose returns the risk weight as a uniform per-symbol series so the
// router can still treat guardian as a leg for collapse accounting.
func (g *Guardian) Propose(view View) (map[uint32]float64, error) {
	weight := g.Weight(view)
	signals := make(map[uint32]float64, len(view.Symbols))
	for _, symbol := range view.Symbols {
		signals[uint32(symbol.ID)] = weight
	}
	return signals, nil
}

// Weight computes allowed leverage over actual leverage, clipped to [0, 1].
func (g *Guardian) Weight(view View) float64 {
	gross := view.GrossExposure()
	equity := math.Max(view.Equity, 1e-8)
	grossLev := gross / equity

	maxGrossLev := view.Profile.MaxGrossLev
	if maxGrossLev <= 0 {
		maxGrossLev = regime.ChooseProfile(0, 0).MaxGrossLev
	}

	return clamp(maxGrossLev/math.Max(grossLev, 1e-6), 0, 1)
}
