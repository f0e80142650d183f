package regime

import "fmt"

// Profile is the portfolio-management constitution state chosen for the
// current stress level. The guardian persona derives its leverage budget
// from it.
type Profile struct {
	Regime          string
	AlphaWeight     float64
	ConvexityWeight float64
	RiskLevel       string
	MaxGrossLev     float64
	StressScore     float64
	Note            string
}

const (
	stressHard = 0.87
	stressMed  = 0.45
)

// StressScore blends drawdown and volatility into a 0..1 stress scalar.
func StressScore(drawdown, vol float64) float64 {
	ddTerm := clamp01(drawdown / 0.30)
	volTerm := clamp01((vol - 0.10) / (0.70 - 0.10))
	return clamp01(0.5*ddTerm + 0.5*volTerm)
}

// ChooseProfile selects the constitution state for the given drawdown and
// volatility. At or above the hard stress threshold the guardian takes
// over completely.
func ChooseProfile(drawdown, vol float64) Profile {
	stress := StressScore(drawdown, vol)

	if stress >= stressHard {
		return Profile{
			Regime:          "GUARDIAN_BOSS",
			AlphaWeight:     0.0,
			ConvexityWeight: -1.2,
			RiskLevel:       "MAX_DEFENSE",
			MaxGrossLev:     0.7,
			StressScore:     stress,
			Note:            fmt.Sprintf("stress hard (dd=%.2f, vol=%.2f): guardian takeover", drawdown, vol),
		}
	}

	if stress >= stressMed {
		return Profile{
			Regime:          "BALANCED_DEFENSE",
			AlphaWeight:     0.4,
			ConvexityWeight: -0.6,
			RiskLevel:       "ELEVATED",
			MaxGrossLev:     1.2,
			StressScore:     stress,
			Note:            fmt.Sprintf("stress medium (dd=%.2f, vol=%.2f): defensive tilt", drawdown, vol),
		}
	}

	return Profile{
		Regime:          "OFFENSE",
		AlphaWeight:     1.0,
		ConvexityWeight: 0.2,
		RiskLevel:       "NORMAL",
		MaxGrossLev:     2.0,
		StressScore:     stress,
		Note:            "stress low: full alpha budget",
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
