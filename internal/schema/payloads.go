package schema

import "math"

// Ratio is a scaled integer with 6 decimal places. Scores, weights and
// severities are stored as Ratio so payloads stay fixed-size.
type Ratio int64

// RatioScale is the fixed scale for Ratio values.
const RatioScale int64 = 1_000_000

// RatioOne is the Ratio representation of 1.0.
const RatioOne Ratio = Ratio(RatioScale)

// RatioFromFloat converts a float into a Ratio. Non-finite inputs saturate.
func RatioFromFloat(v float64) Ratio {
	if math.IsNaN(v) {
		return 0
	}
	scaled := v * float64(RatioScale)
	if scaled >= float64(math.MaxInt64) {
		return Ratio(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return Ratio(math.MinInt64)
	}
	return Ratio(math.Round(scaled))
}

// Float converts a Ratio back to a float64.
func (r Ratio) Float() float64 {
	return float64(r) / float64(RatioScale)
}

// Exposure is a signed position size in scaled units (6 decimal places).
type Exposure int64

// ExposureFromFloat converts a float into an Exposure. Non-finite inputs saturate.
func ExposureFromFloat(v float64) Exposure {
	return Exposure(RatioFromFloat(v))
}

// Float converts an Exposure back to a float64.
func (e Exposure) Float() float64 {
	return float64(e) / float64(RatioScale)
}

// Price is a scaled integer. The scale is defined by configuration.
type Price int64

// MarketObservation is the payload for EventMarketObservation.
// It carries the per-symbol signal set consumed by personas and the
// regime engine.
type MarketObservation struct {
	SymbolID uint32
	Flags    uint16
	Reserved uint16
	Price    Price

	VolRealized Ratio
	VolTrend    Ratio

	Depth      Ratio
	Spread     Ratio
	ImpactCost Ratio
	Elasticity Ratio

	FlowPressure Ratio // [-1, 1]
	NetInflow    Ratio
	Crowding     Ratio

	Drawdown      Ratio // 0.2 = -20%
	RecoverySpeed Ratio
	TailRisk      Ratio
}

// PersonaProposal is the payload for EventPersonaProposal.
type PersonaProposal struct {
	PersonaID  uint16
	Flags      uint16
	SymbolID   uint32
	Delta      Exposure
	Confidence Ratio
}

// RegimeBand is the coarse regime classification band.
type RegimeBand uint16

const (
	BandCalm RegimeBand = iota
	BandTense
	BandFragile
	BandCritical
)

// GuardianRegime is the guardian classifier's view of the market.
type GuardianRegime uint16

const (
	RegimeNormal GuardianRegime = iota
	RegimeStressed
	RegimeCrash
)

// RegimeAssessment is the payload for EventRegimeAssessment.
type RegimeAssessment struct {
	Band     RegimeBand
	Regime   GuardianRegime
	Flags    uint16
	Reserved uint16

	Score    Ratio
	Severity Ratio

	MaxLeverage       Ratio
	MaxPositionChange Ratio
	MaxGrossShift     Ratio
}

// MaxRouterLegs bounds the number of personas a RouterUpdate can carry.
const MaxRouterLegs = 8

// RouterLeg is a single persona weight inside a RouterUpdate.
type RouterLeg struct {
	PersonaID uint16
	Weight    Ratio
}

// RouterUpdate is the payload for EventRouterUpdate.
type RouterUpdate struct {
	Excluded    uint16
	DegradeMode uint16
	LegCount    uint16
	Flags       uint16
	Load        Ratio
	Legs        [MaxRouterLegs]RouterLeg
}

// OverlayAction is the outcome of an overlay decision.
type OverlayAction uint16

const (
	OverlayActionUnknown OverlayAction = iota
	OverlayActionAllow
	OverlayActionTrim
	OverlayActionVeto
	OverlayActionFlatten
)

// OverlayReason is a coarse reason code for overlay decisions.
type OverlayReason uint16

const (
	OverlayReasonNone OverlayReason = iota
	OverlayReasonRiskBand
	OverlayReasonHardFreeze
	OverlayReasonLockWindow
	OverlayReasonLeverageCap
	OverlayReasonGrossShift
	OverlayReasonCollapse
	OverlayReasonKillSwitch
	OverlayReasonSanction
)

// OverlayDecision is the payload for EventOverlayDecision.
type OverlayDecision struct {
	DecisionID uint64
	SymbolID   uint32
	Action     OverlayAction
	Reason     OverlayReason

	ProposedDelta  Exposure
	ClearedDelta   Exposure
	RiskCut        Ratio
	ViolationScore Ratio
}

// HashSize is the byte length of chain hashes in commit records.
const HashSize = 32

// CommitRecord is the payload for EventCommitRecord. It is only emitted
// after the authority gate has authorized the decision.
type CommitRecord struct {
	DecisionID  uint64
	SymbolID    uint32
	Flags       uint16
	Reserved    uint16
	Delta       Exposure
	NewExposure Exposure
	PrevHash    [HashSize]byte
	RecordHash  [HashSize]byte
}
