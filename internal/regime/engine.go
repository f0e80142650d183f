package regime

import (
	"math"

	"main/internal/schema"
)

// VolatilityState captures realized volatility and its momentum.
type VolatilityState struct {
	Realized float64
	Trend    float64
}

// LiquidityState captures microstructure-style liquidity.
// Depth is volume at best levels, Spread is in fraction-of-price terms,
// ImpactCost is estimated price impact per unit notional, Elasticity is
// how much price can stretch before books snap.
type LiquidityState struct {
	Depth      float64
	Spread     float64
	ImpactCost float64
	Elasticity float64
}

// FlowState captures order flow and crowding.
// Pressure is buy-sell imbalance in [-1, 1].
type FlowState struct {
	Pressure      float64
	NetInflow     float64
	CrowdingIndex float64
}

// StressState captures slow structural stress, not tick noise.
type StressState struct {
	Drawdown      float64
	RecoverySpeed float64
	TailRiskIndex float64
}

// MarketState is the full market snapshot from the engine's point of view.
type MarketState struct {
	Volatility VolatilityState
	Liquidity  LiquidityState
	Flow       FlowState
	Stress     StressState
}

// Constraints are the hard limits emitted per band for the overlay layer.
type Constraints struct {
	MaxLeverage       float64
	MaxPositionChange float64
	MaxGrossShift     float64
}

// Assessment is the engine output consumed by the router and overlay.
type Assessment struct {
	Score float64
	Band  schema.RegimeBand
	Label string
	Constraints
}

// Config holds the scoring weights. Zero values fall back to defaults.
type Config struct {
	VolElasticityBaseline    float64
	ShockEscalationStrength  float64
	LiquidityFragilityWeight float64
	FlowCrowdingWeight       float64
	TailRiskWeight           float64
}

func (c Config) withDefaults() Config {
	if c.VolElasticityBaseline == 0 {
		c.VolElasticityBaseline = 1.0
	}
	if c.ShockEscalationStrength == 0 {
		c.ShockEscalationStrength = 2.0
	}
	if c.LiquidityFragilityWeight == 0 {
		c.LiquidityFragilityWeight = 1.4
	}
	if c.FlowCrowdingWeight == 0 {
		c.FlowCrowdingWeight = 1.2
	}
	if c.TailRiskWeight == 0 {
		c.TailRiskWeight = 1.6
	}
	return c
}

// Engine scores market conditions into a band and hard constraints.
// No single metric is the ruler: vol, liquidity, flow and stress
// contribute separately.
type Engine struct {
	cfg Config
}

// NewEngine creates a regime engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Evaluate scores the market state and derives band constraints.
func (e *Engine) Evaluate(m MarketState) Assessment {
	score := e.volIntensity(m.Volatility) +
		e.liquidityFragility(m.Liquidity) +
		e.flowTension(m.Flow) +
		e.structuralStress(m.Stress)

	band, label := classify(score)
	return Assessment{
		Score:       score,
		Band:        band,
		Label:       label,
		Constraints: constraintsForBand(band),
	}
}

func (e *Engine) volIntensity(v VolatilityState) float64 {
	realized := math.Max(v.Realized, 0)
	trend := math.Max(v.Trend, 0)
	return realized*e.cfg.VolElasticityBaseline + math.Pow(trend, 1.25)
}

// Thin books + wide spreads + high impact cost mean fragility.
// Elasticity tempers the penalty.
func (e *Engine) liquidityFragility(l LiquidityState) float64 {
	depthTerm := math.Pow(1.0/math.Max(l.Depth, 1e-6), 0.6)
	impactTerm := math.Pow(math.Max(l.ImpactCost, 0), 0.9)
	cushion := 1.0 / math.Max(l.Elasticity, 1e-3)
	return e.cfg.LiquidityFragilityWeight * (depthTerm + l.Spread + impactTerm) * cushion
}

func (e *Engine) flowTension(f FlowState) float64 {
	pressureTerm := math.Pow(math.Abs(f.Pressure), 1.1)
	inflowTerm := math.Pow(math.Max(f.NetInflow, 0), 0.7)
	crowdingTerm := math.Pow(math.Max(f.CrowdingIndex, 0), 1.2)
	return e.cfg.FlowCrowdingWeight * (pressureTerm + inflowTerm + crowdingTerm)
}

func (e *Engine) structuralStress(s StressState) float64 {
	drawdownTerm := math.Pow(math.Max(s.Drawdown, 0), 1.2)
	slowHealPenalty := math.Pow(1.0/math.Max(s.RecoverySpeed, 1e-3), 0.5)
	tailTerm := e.cfg.TailRiskWeight * math.Pow(math.Max(s.TailRiskIndex, 0), 1.3)
	return e.cfg.ShockEscalationStrength * (drawdownTerm + slowHealPenalty + tailTerm)
}

func classify(score float64) (schema.RegimeBand, string) {
	switch {
	case score < 1.2:
		return schema.BandCalm, "calm / mean-reverting"
	case score < 2.5:
		return schema.BandTense, "tense / expanding risk"
	case score < 4.0:
		return schema.BandFragile, "fragile / shock-sensitive"
	default:
		return schema.BandCritical, "critical / cascade zone"
	}
}

func constraintsForBand(band schema.RegimeBand) Constraints {
	switch band {
	case schema.BandCalm:
		return Constraints{MaxLeverage: 3.0, MaxPositionChange: 1.0, MaxGrossShift: 1.0}
	case schema.BandTense:
		return Constraints{MaxLeverage: 2.0, MaxPositionChange: 0.5, MaxGrossShift: 0.6}
	case schema.BandFragile:
		return Constraints{MaxLeverage: 1.0, MaxPositionChange: 0.2, MaxGrossShift: 0.3}
	default:
		return Constraints{MaxLeverage: 0.5, MaxPositionChange: 0.05, MaxGrossShift: 0.1}
	}
}

// StateFromObservations aggregates per-symbol observations into one
// market-wide state by averaging the signal set.
func StateFromObservations(observations []schema.MarketObservation) MarketState {
	if len(observations) == 0 {
		return MarketState{
			Liquidity: LiquidityState{Depth: 1, Elasticity: 1},
			Stress:    StressState{RecoverySpeed: 1},
		}
	}
	var m MarketState
	n := float64(len(observations))
	for _, obs := range observations {
		m.Volatility.Realized += obs.VolRealized.Float()
		m.Volatility.Trend += obs.VolTrend.Float()
		m.Liquidity.Depth += obs.Depth.Float()
		m.Liquidity.Spread += obs.Spread.Float()
		m.Liquidity.ImpactCost += obs.ImpactCost.Float()
		m.Liquidity.Elasticity += obs.Elasticity.Float()
		m.Flow.Pressure += obs.FlowPressure.Float()
		m.Flow.NetInflow += obs.NetInflow.Float()
		m.Flow.CrowdingIndex += obs.Crowding.Float()
		m.Stress.Drawdown += obs.Drawdown.Float()
		m.Stress.RecoverySpeed += obs.RecoverySpeed.Float()
		m.Stress.TailRiskIndex += obs.TailRisk.Float()
	}
	m.Volatility.Realized /= n
	m.Volatility.Trend /= n
	m.Liquidity.Depth /= n
	m.Liquidity.Spread /= n
	m.Liquidity.ImpactCost /= n
	m.Liquidity.Elasticity /= n
	m.Flow.Pressure /= n
	m.Flow.NetInflow /= n
	m.Flow.CrowdingIndex /= n
	m.Stress.Drawdown /= n
	m.Stress.RecoverySpeed /= n
	m.Stress.TailRiskIndex /= n
	return m
}
