package regime

import (
	"math"

	"main/internal/schema"
)

// GuardianThresholds treats volatility and liquidity as oscillating and
// collapsing fields.
//
// Volatility: |vol| below the baseline is normal noise; stress accumulates
// with the shock scale. Liquidity: at or above the baseline is comfortable;
// between the freeze level and the baseline the book is thinning; at or
// below the freeze level the market is considered frozen.
type GuardianThresholds struct {
	MaxVolatilityBaseline float64
	VolatilityShockScale  float64

	MaxDrawdown     float64
	MaxFlowPressure float64

	LiquidityBaseline    float64
	LiquidityShockScale  float64
	LiquidityFreezeLevel float64

	CrashDrawdown   float64
	CrashVolatility float64
}

// DefaultGuardianThresholds returns the baseline thresholds.
func DefaultGuardianThresholds() GuardianThresholds {
	return GuardianThresholds{
		MaxVolatilityBaseline: 0.02,
		VolatilityShockScale:  0.08,
		MaxDrawdown:           0.15,
		MaxFlowPressure:       3.0,
		LiquidityBaseline:     0.60,
		LiquidityShockScale:   0.40,
		LiquidityFreezeLevel:  0.15,
		CrashDrawdown:         0.30,
		CrashVolatility:       0.15,
	}
}

// GuardianAssessment is the guardian's view of the current state.
type GuardianAssessment struct {
	Regime   schema.GuardianRegime
	Breach   bool
	Severity float64
	Reasons  map[string]float64
}

// Guardian is a purely local risk classifier over observation streams.
// Non-finite volatility values are treated as an infinite breach.
type Guardian struct {
	thresholds GuardianThresholds
}

// NewGuardian creates a guardian. Zero thresholds use the defaults.
func NewGuardian(thresholds GuardianThresholds) *Guardian {
	if thresholds == (GuardianThresholds{}) {
		thresholds = DefaultGuardianThresholds()
	}
	return &Guardian{thresholds: thresholds}
}

// Assess classifies an aggregated market state.
func (g *Guardian) Assess(m MarketState) GuardianAssessment {
	t := g.thresholds
	reasons := make(map[string]float64)

	volMag := math.Abs(finiteOrMax(m.Volatility.Realized + m.Volatility.Trend))
	shockBand := math.Max(t.VolatilityShockScale, 1e-9)
	volRatio := math.Max(0, (volMag-t.MaxVolatilityBaseline)/shockBand)

	ddRatio := math.Max(0, m.Stress.Drawdown/t.MaxDrawdown-1.0)

	liqShock := math.Max(t.LiquidityShockScale, 1e-9)
	liqRatio := 0.0
	if m.Liquidity.Depth < t.LiquidityBaseline {
		liqRatio = (t.LiquidityBaseline - m.Liquidity.Depth) / liqShock
	}
	liquidityFrozen := m.Liquidity.Depth <= t.LiquidityFreezeLevel

	pressureRatio := math.Max(0, math.Abs(m.Flow.Pressure)/t.MaxFlowPressure-1.0)

	if volRatio > 0 {
		reasons["volatility_shock"] = volRatio
	}
	if ddRatio > 0 {
		reasons["drawdown"] = ddRatio
	}
	if liqRatio > 0 {
		reasons["liquidity_thinning"] = liqRatio
	}
	if liquidityFrozen {
		// large constant to pull severity toward 1
		reasons["liquidity_freeze"] = reasons["liquidity_freeze"] + 3.0
	}
	if pressureRatio > 0 {
		reasons["flow_pressure"] = pressureRatio
	}

	rawScore := 0.0
	for _, v := range reasons {
		rawScore += v
	}
	severity := 0.0
	if rawScore > 0 {
		severity = 1.0 - math.Exp(-rawScore)
	}

	regime := schema.RegimeNormal
	if severity > 0 {
		if liquidityFrozen || m.Stress.Drawdown >= t.CrashDrawdown || volMag >= t.CrashVolatility {
			regime = schema.RegimeCrash
			severity = math.Max(severity, 0.95)
		} else {
			regime = schema.RegimeStressed
		}
	}

	return GuardianAssessment{
		Regime:   regime,
		Breach:   severity > 0,
		Severity: severity,
		Reasons:  reasons,
	}
}

// finiteOrMax maps non-finite values to a large finite magnitude so that
// severity saturates near 1.
func finiteOrMax(v float64) float64 {
	if !math.IsInf(v, 0) && !math.IsNaN(v) {
		return v
	}
	return 10.0
}
