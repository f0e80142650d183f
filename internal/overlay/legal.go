package overlay

import (
	"math"
	"time"

	"main/internal/regime"
	"main/internal/schema"
)

// Config defines the risk cut bands and the disciplinary window.
type Config struct {
	// Risk band thresholds over the combined risk score.
	RiskSoft   float64
	RiskMedium float64
	RiskHard   float64

	// Fraction of the proposed delta removed in each band.
	CutLow  float64
	CutMid  float64
	CutHigh float64

	// SanctionFlatten closes the target exposure outright on a hard
	// breach instead of just vetoing new risk.
	SanctionFlatten bool

	// LockWindow is how long a hard breach freezes risk-increasing
	// deltas.
	LockWindow time.Duration

	// ViolationDecayRate is subtracted from the violation score per
	// second of quiet time.
	ViolationDecayRate float64

	// ViolationMedium / ViolationHard are added to the violation score
	// on band breaches.
	ViolationMedium float64
	ViolationHard   float64

	KillSwitch bool
}

// DefaultConfig returns the baseline overlay configuration.
func DefaultConfig() Config {
	return Config{
		RiskSoft:           0.2,
		RiskMedium:         0.45,
		RiskHard:           0.7,
		CutLow:             0.0,
		CutMid:             0.65,
		CutHigh:            1.0,
		SanctionFlatten:    true,
		LockWindow:         5 * time.Second,
		ViolationDecayRate: 0.37,
		ViolationMedium:    0.5,
		ViolationHard:      1.5,
	}
}

// Legal is the disciplinary risk overlay. It trims or vetoes the combined
// delta according to the current risk band, accumulates a decaying
// violation score, and freezes all risk-increasing deltas inside the
// lock window after a hard breach.
type Legal struct {
	cfg Config

	violationScore float64
	lastUpdate     time.Time
	lockUntil      time.Time
	hardFreeze     bool
}

// NewLegal creates the overlay.
func NewLegal(cfg Config) *Legal {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Legal{cfg: cfg}
}

// Input is one symbol's pending decision.
type Input struct {
	DecisionID      uint64
	SymbolID        uint32
	ProposedDelta   float64
	CurrentExposure float64
	// CombinedRisk blends regime score and guardian severity into 0..1.
	CombinedRisk float64
	Constraints  regime.Constraints
	Equity       float64
	Degraded     bool
}

// SetKillSwitch toggles the emergency veto at runtime.
func (l *Legal) SetKillSwitch(on bool) {
	l.cfg.KillSwitch = on
}

// ViolationScore returns the current disciplinary score.
func (l *Legal) ViolationScore() float64 {
	return l.violationScore
}

// HardFreeze reports whether the lock window is active.
func (l *Legal) HardFreeze(now time.Time) bool {
	if l.hardFreeze && now.After(l.lockUntil) {
		l.hardFreeze = false
	}
	return l.hardFreeze
}

// Apply clamps, trims, vetoes or flattens a proposed delta.
func (l *Legal) Apply(now time.Time, in Input) schema.OverlayDecision {
	l.decay(now)

	decision := schema.OverlayDecision{
		DecisionID:    in.DecisionID,
		SymbolID:      in.SymbolID,
		Action:        schema.OverlayActionAllow,
		Reason:        schema.OverlayReasonNone,
		ProposedDelta: schema.ExposureFromFloat(in.ProposedDelta),
	}

	if l.cfg.KillSwitch {
		decision.Action = schema.OverlayActionVeto
		decision.Reason = schema.OverlayReasonKillSwitch
		decision.ViolationScore = schema.RatioFromFloat(l.violationScore)
		return decision
	}

	if in.Degraded && in.ProposedDelta != 0 {
		// collapse mode only lets exposure shrink
		if increasesRisk(in.CurrentExposure, in.ProposedDelta) {
			decision.Action = schema.OverlayActionVeto
			decision.Reason = schema.OverlayReasonCollapse
			decision.ViolationScore = schema.RatioFromFloat(l.violationScore)
			return decision
		}
	}

	if l.HardFreeze(now) && increasesRisk(in.CurrentExposure, in.ProposedDelta) {
		decision.Action = schema.OverlayActionVeto
		decision.Reason = schema.OverlayReasonLockWindow
		decision.ViolationScore = schema.RatioFromFloat(l.violationScore)
		return decision
	}

	cut, reason := l.riskCut(in.CombinedRisk)
	cleared := in.ProposedDelta * (1 - cut)

	switch {
	case cut >= 1 && l.cfg.SanctionFlatten && in.CurrentExposure != 0:
		l.punish(now, l.cfg.ViolationHard, true)
		decision.Action = schema.OverlayActionFlatten
		decision.Reason = schema.OverlayReasonSanction
		cleared = -in.CurrentExposure
	case cut >= 1:
		l.punish(now, l.cfg.ViolationHard, true)
		decision.Action = schema.OverlayActionVeto
		decision.Reason = reason
		cleared = 0
	case cut > 0:
		l.punish(now, l.cfg.ViolationMedium, false)
		decision.Action = schema.OverlayActionTrim
		decision.Reason = reason
	}

	cleared, constraintReason := clampConstraints(cleared, in)
	if constraintReason != schema.OverlayReasonNone && decision.Action == schema.OverlayActionAllow {
		decision.Action = schema.OverlayActionTrim
		decision.Reason = constraintReason
	}

	decision.ClearedDelta = schema.ExposureFromFloat(cleared)
	decision.RiskCut = schema.RatioFromFloat(cut)
	decision.ViolationScore = schema.RatioFromFloat(l.violationScore)
	return decision
}

// riskCut maps the combined risk score onto the cut bands.
func (l *Legal) riskCut(risk float64) (float64, schema.OverlayReason) {
	switch {
	case risk < l.cfg.RiskSoft:
		return l.cfg.CutLow, schema.OverlayReasonNone
	case risk < l.cfg.RiskMedium:
		return l.cfg.CutMid, schema.OverlayReasonRiskBand
	case risk < l.cfg.RiskHard:
		return l.cfg.CutHigh, schema.OverlayReasonRiskBand
	default:
		return 1.0, schema.OverlayReasonHardFreeze
	}
}

func (l *Legal) punish(now time.Time, score float64, hard bool) {
	l.violationScore += score
	l.lastUpdate = now
	if hard {
		l.hardFreeze = true
		l.lockUntil = now.Add(l.cfg.LockWindow)
	}
}

// decay lets the violation score heal linearly with quiet time.
func (l *Legal) decay(now time.Time) {
	if l.lastUpdate.IsZero() {
		l.lastUpdate = now
		return
	}
	dt := now.Sub(l.lastUpdate).Seconds()
	if dt <= 0 {
		return
	}
	l.violationScore = math.Max(0, l.violationScore-l.cfg.ViolationDecayRate*dt)
	l.lastUpdate = now
}

// clampConstraints bounds the cleared delta by the regime's hard limits.
func clampConstraints(cleared float64, in Input) (float64, schema.OverlayReason) {
	reason := schema.OverlayReasonNone

	if in.Constraints.MaxPositionChange > 0 {
		limit := in.Constraints.MaxPositionChange
		if math.Abs(cleared) > limit {
			cleared = math.Copysign(limit, cleared)
			reason = schema.OverlayReasonGrossShift
		}
	}

	if in.Constraints.MaxLeverage > 0 && in.Equity > 0 && increasesRisk(in.CurrentExposure, cleared) {
		maxExposure := in.Constraints.MaxLeverage * in.Equity
		next := in.CurrentExposure + cleared
		if math.Abs(next) > maxExposure {
			capped := math.Copysign(maxExposure, next)
			cleared = capped - in.CurrentExposure
			reason = schema.OverlayReasonLeverageCap
		}
	}

	return cleared, reason
}

// increasesRisk reports whether applying delta grows |exposure|.
func increasesRisk(current, delta float64) bool {
	return math.Abs(current+delta) > math.Abs(current)
}
