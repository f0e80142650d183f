package feed

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"main/internal/schema"
)

// GeneratorConfig controls the synthetic market generator.
type GeneratorConfig struct {
	Seed       int64
	Source     uint16
	BasePrice  float64
	BaseVol    float64
	BaseDepth  float64
	BaseSpread float64
	Drift      float64
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.BasePrice <= 0 {
		c.BasePrice = 100
	}
	if c.BaseVol <= 0 {
		c.BaseVol = 0.01
	}
	if c.BaseDepth <= 0 {
		c.BaseDepth = 1.0
	}
	if c.BaseSpread <= 0 {
		c.BaseSpread = 0.0005
	}
	return c
}

type symbolState struct {
	name  string
	price float64
	peak  float64
	vol   float64
	flow  float64
}

// Generator creates synthetic observations with a seeded random walk.
// Volatility mean-reverts around the base level, drawdown is tracked
// against the running peak, and depth thins as volatility rises.
type Generator struct {
	cfg   GeneratorConfig
	rng   *rand.Rand
	state []*symbolState
	phase Phase
}

// NewGenerator creates a generator for all symbols in the registry.
func NewGenerator(reg *schema.Registry, cfg GeneratorConfig) (*Generator, error) {
	if reg == nil || reg.SymbolCount() == 0 {
		return nil, fmt.Errorf("registry has no symbols")
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	states := make([]*symbolState, 0, reg.SymbolCount())
	for i := 0; i < reg.SymbolCount(); i++ {
		symbol, ok := reg.SymbolAt(i)
		if !ok {
			continue
		}
		price := cfg.BasePrice * (1 + 0.1*rng.Float64())
		states = append(states, &symbolState{
			name:  symbol.Name,
			price: price,
			peak:  price,
			vol:   cfg.BaseVol,
		})
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("registry has no symbols")
	}
	return &Generator{
		cfg:   cfg,
		rng:   rng,
		state: states,
		phase: neutralPhase(),
	}, nil
}

// SetPhase switches the active scenario phase.
func (g *Generator) SetPhase(p Phase) {
	g.phase = p
}

// Next advances every symbol one step and returns the raw observations.
func (g *Generator) Next(now time.Time) []RawObservation {
	out := make([]RawObservation, 0, len(g.state))
	ts := now.UnixNano()
	for _, st := range g.state {
		out = append(out, g.step(st, ts))
	}
	return out
}

func (g *Generator) step(st *symbolState, ts int64) RawObservation {
	cfg := g.cfg
	ph := g.phase

	targetVol := cfg.BaseVol * ph.VolScale
	st.vol += 0.1*(targetVol-st.vol) + 0.2*targetVol*g.rng.NormFloat64()
	if st.vol < cfg.BaseVol*0.1 {
		st.vol = cfg.BaseVol * 0.1
	}

	ret := cfg.Drift + ph.DriftShift + st.vol*g.rng.NormFloat64()
	st.price *= 1 + ret
	if st.price < cfg.BasePrice*0.01 {
		st.price = cfg.BasePrice * 0.01
	}
	if st.price > st.peak {
		st.peak = st.price
	}
	drawdown := 1 - st.price/st.peak

	st.flow = 0.85*st.flow + ph.FlowBias + 0.3*g.rng.NormFloat64()
	st.flow = clampRange(st.flow, -1, 1)

	volRatio := st.vol / cfg.BaseVol
	depth := cfg.BaseDepth * ph.DepthScale * math.Exp(-0.5*(volRatio-1))
	if ph.LiquidityFreeze {
		depth *= 0.02
	}
	spread := cfg.BaseSpread * (1 + 2*(volRatio-1))
	if spread < cfg.BaseSpread*0.5 {
		spread = cfg.BaseSpread * 0.5
	}
	impact := spread / math.Max(depth, 1e-6)
	elasticity := 1 / (1 + math.Max(volRatio-1, 0))

	crowding := clampRange(0.3+0.5*math.Abs(st.flow)+0.1*g.rng.NormFloat64(), 0, 1)
	recovery := clampRange(1-2*drawdown, 0, 1)
	tail := clampRange(0.3*volRatio+drawdown, 0, 1)

	return RawObservation{
		Symbol: st.name,
		Price:  st.price,

		VolRealized: st.vol,
		VolTrend:    st.vol - targetVol,

		Depth:      depth,
		Spread:     spread,
		ImpactCost: impact,
		Elasticity: elasticity,

		FlowPressure: st.flow,
		NetInflow:    st.flow * depth,
		Crowding:     crowding,

		Drawdown:      drawdown,
		RecoverySpeed: recovery,
		TailRisk:      tail,

		Source:  cfg.Source,
		TsEvent: ts,
		TsRecv:  ts,
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
