package router

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/pkg/exception"
)

// Config controls the progressive reweighting behavior.
type Config struct {
	// Step is the multiplier ramp applied to surviving legs on each
	// reallocation: multiplier *= (1 + Step).
	Step float64
	// MaxMultiplier caps any single leg's multiplier.
	MaxMultiplier float64
	// CollapseThreshold is the load (sum of base*multiplier) at which
	// the routing equation is considered pulled apart.
	CollapseThreshold float64

	GuardianName  string
	LiquidityName string
}

func (c Config) withDefaults() Config {
	if c.Step == 0 {
		c.Step = 0.25
	}
	if c.MaxMultiplier == 0 {
		c.MaxMultiplier = 3.0
	}
	if c.CollapseThreshold == 0 {
		c.CollapseThreshold = 2.0
	}
	if c.GuardianName == "" {
		c.GuardianName = "guardian"
	}
	if c.LiquidityName == "" {
		c.LiquidityName = "liquidity"
	}
	return c
}

// Sovereign is the progressive-weight router. Base weights are
// normalized once; each excluded leg zeroes its multiplier and ramps the
// survivors. When the accumulated load crosses the collapse threshold the
// router degrades onto the guardian and liquidity legs only.
type Sovereign struct {
	cfg Config
	reg *schema.Registry

	base        map[schema.PersonaID]float64
	multipliers map[schema.PersonaID]float64
	weights     map[schema.PersonaID]float64
	excluded    map[schema.PersonaID]bool
	degradeMode bool
	load        float64
}

// NewSovereign builds a router from the registry's persona base weights.
func NewSovereign(reg *schema.Registry, cfg Config) (*Sovereign, error) {
	if reg == nil || reg.PersonaCount() == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "registry has no personas")
	}
	cfg = cfg.withDefaults()

	total := 0.0
	for i := 0; i < reg.PersonaCount(); i++ {
		entry, _ := reg.PersonaAt(i)
		w := entry.BaseWeight.Float()
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "persona base weights must have positive sum")
	}

	base := make(map[schema.PersonaID]float64, reg.PersonaCount())
	multipliers := make(map[schema.PersonaID]float64, reg.PersonaCount())
	weights := make(map[schema.PersonaID]float64, reg.PersonaCount())
	for i := 0; i < reg.PersonaCount(); i++ {
		entry, _ := reg.PersonaAt(i)
		w := entry.BaseWeight.Float()
		if w < 0 {
			w = 0
		}
		base[entry.ID] = w / total
		multipliers[entry.ID] = 1.0
		weights[entry.ID] = w / total
	}

	return &Sovereign{
		cfg:         cfg,
		reg:         reg,
		base:        base,
		multipliers: multipliers,
		weights:     weights,
		excluded:    make(map[schema.PersonaID]bool),
		load:        1.0,
	}, nil
}

// Exclude removes a leg from routing and ramps the survivors. It returns
// true if the router entered (or stays in) degrade mode.
func (s *Sovereign) Exclude(personaID schema.PersonaID) bool {
	if _, ok := s.multipliers[personaID]; !ok {
		return s.degradeMode
	}
	s.excluded[personaID] = true
	s.multipliers[personaID] = 0

	for id, m := range s.multipliers {
		if s.excluded[id] {
			continue
		}
		boosted := m * (1.0 + s.cfg.Step)
		if boosted > s.cfg.MaxMultiplier {
			boosted = s.cfg.MaxMultiplier
		}
		s.multipliers[id] = boosted
	}

	load := 0.0
	for id, baseWeight := range s.base {
		load += baseWeight * s.multipliers[id]
	}
	s.load = load

	if load >= s.cfg.CollapseThreshold {
		s.enterCollapseMode(load)
	} else {
		s.renormalizeActive(load)
	}
	return s.degradeMode
}

// enterCollapseMode keeps only the guardian and liquidity legs, split by
// their base ratio. With neither present everything goes risk-off.
func (s *Sovereign) enterCollapseMode(load float64) {
	logs.Warnf("router load %.3f >= collapse threshold %.3f, entering degrade mode", load, s.cfg.CollapseThreshold)

	guardianID, hasGuardian := s.reg.PersonaIDByName(s.cfg.GuardianName)
	liquidityID, hasLiquidity := s.reg.PersonaIDByName(s.cfg.LiquidityName)

	guardianBase := 0.0
	if hasGuardian {
		guardianBase = s.base[guardianID]
	}
	liquidityBase := 0.0
	if hasLiquidity {
		liquidityBase = s.base[liquidityID]
	}

	for id := range s.weights {
		s.weights[id] = 0
	}

	totalGL := guardianBase + liquidityBase
	if totalGL > 0 {
		if guardianBase > 0 {
			s.weights[guardianID] = guardianBase / totalGL
		}
		if liquidityBase > 0 {
			s.weights[liquidityID] = liquidityBase / totalGL
		}
	} else {
		logs.Warn("router collapse with no guardian/liquidity leg, full risk-off")
	}
	s.degradeMode = true
}

func (s *Sovereign) renormalizeActive(load float64) {
	if load <= 0 {
		for id := range s.weights {
			s.weights[id] = 0
		}
		s.degradeMode = true
		logs.Warn("router has no active weight left, soft degrade")
		return
	}
	for id, baseWeight := range s.base {
		if s.excluded[id] {
			s.weights[id] = 0
			continue
		}
		s.weights[id] = baseWeight * s.multipliers[id] / load
	}
	s.degradeMode = false
}

// Weights returns a copy of the dynamic weights for this tick.
func (s *Sovereign) Weights() map[schema.PersonaID]float64 {
	out := make(map[schema.PersonaID]float64, len(s.weights))
	for id, w := range s.weights {
		out[id] = w
	}
	return out
}

// Weight returns the dynamic weight of a single leg.
func (s *Sovereign) Weight(personaID schema.PersonaID) float64 {
	return s.weights[personaID]
}

// Excluded reports whether a leg has been removed from routing.
func (s *Sovereign) Excluded(personaID schema.PersonaID) bool {
	return s.excluded[personaID]
}

// DegradeMode reports whether the router has collapsed.
func (s *Sovereign) DegradeMode() bool {
	return s.degradeMode
}

// Load returns the last computed base*multiplier load.
func (s *Sovereign) Load() float64 {
	return s.load
}

// Combine aggregates persona signals into per-symbol deltas using the
// dynamic weights. Excluded legs contribute nothing. With every leg at
// zero weight the router is fully risk-off and reports ErrNoActiveLegs.
func (s *Sovereign) Combine(signals map[schema.PersonaID]map[uint32]float64) (map[uint32]float64, error) {
	active := false
	for _, w := range s.weights {
		if w > 0 {
			active = true
			break
		}
	}
	if !active {
		return nil, errors.Wrap(exception.ErrNoActiveLegs, "all legs excluded")
	}

	combined := make(map[uint32]float64)
	for personaID, deltas := range signals {
		w := s.weights[personaID]
		if w == 0 {
			continue
		}
		for symbolID, d := range deltas {
			combined[symbolID] += w * d
		}
	}
	return combined, nil
}

// Update builds the schema payload describing the current routing state.
func (s *Sovereign) Update(excluded schema.PersonaID) schema.RouterUpdate {
	u := schema.RouterUpdate{
		Excluded: uint16(excluded),
		Load:     schema.RatioFromFloat(s.load),
	}
	if s.degradeMode {
		u.DegradeMode = 1
	}
	count := 0
	for i := 0; i < s.reg.PersonaCount() && count < schema.MaxRouterLegs; i++ {
		entry, _ := s.reg.PersonaAt(i)
		u.Legs[count] = schema.RouterLeg{
			PersonaID: uint16(entry.ID),
			Weight:    schema.RatioFromFloat(s.weights[entry.ID]),
		}
		count++
	}
	u.LegCount = uint16(count)
	return u
}
