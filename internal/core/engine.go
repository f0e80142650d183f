/*
Core implements the decision pipeline executor.

# Module
  - feed normalizer: turns raw observations into schema events
  - regime layer: band scoring, guardian classifier, constitution profile
  - persona layer: competing proposals combined by the sovereign router
  - overlay: disciplinary trims, vetoes and flattens
  - authority gate: fail-closed commit authorization with a hash chain
  - exposure reducer: in-memory position state

# Produce
  - events on the in-memory bus, journaled by the recorder
  - commit records extending the authority chain
*/
package core

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/authority"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/feed"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/overlay"
	"main/internal/persona"
	"main/internal/regime"
	"main/internal/router"
	"main/internal/schema"
	"main/internal/state"
	"main/pkg/exception"
)

// ActionDecisionCommit is the authority action used for exposure commits.
const ActionDecisionCommit = "DECISION_COMMIT"

const (
	sourceEngine uint16 = 2

	defaultHistoryLimit = 256
)

// Engine drives one decision cycle per market step.
type Engine struct {
	loaded ops.Loaded
	reg    *schema.Registry

	normalizer *feed.Normalizer
	regime     *regime.Engine
	guardian   *regime.Guardian
	router     *router.Sovereign
	legal      *overlay.Legal
	gate       *authority.Gate

	personas        map[schema.PersonaID]persona.Persona
	guardianPersona *persona.Guardian
	guardianID      schema.PersonaID

	exposures *state.ExposureReducer
	floatExp  map[uint32]float64
	decisions *ledger.StateMachine

	queue    *bus.Queue
	metrics  *obs.Metrics
	traceGen *obs.TraceGenerator

	history      map[uint32][]schema.MarketObservation
	historyLimit int

	seq            uint64
	lastEventTs    int64
	nextDecisionID uint64
	step           int
}

// StepResult summarizes one decision cycle.
type StepResult struct {
	Assessment     regime.Assessment
	Guardian       regime.GuardianAssessment
	Profile        regime.Profile
	GuardianWeight float64
	RouterLoad     float64
	Degraded       bool
	Decisions      []schema.OverlayDecision
	Committed      int
}

// NewEngine wires the pipeline from a resolved config.
func NewEngine(loaded ops.Loaded, queue *bus.Queue, metrics *obs.Metrics, traceGen *obs.TraceGenerator) (*Engine, error) {
	if loaded.Registry == nil || loaded.Registry.SymbolCount() == 0 {
		return nil, errors.New("engine requires a registry with symbols")
	}
	sovereign, err := router.NewSovereign(loaded.Registry, loaded.Router)
	if err != nil {
		return nil, err
	}

	guardianPersona := persona.NewGuardian()
	impls := map[string]persona.Persona{
		"alpha":     persona.NewAlpha(persona.AlphaConfig{}),
		"liquidity": persona.NewLiquidity(persona.LiquidityConfig{}),
		"convexity": persona.NewConvexity(persona.ConvexityConfig{}),
		"guardian":  guardianPersona,
	}

	personas := make(map[schema.PersonaID]persona.Persona, loaded.Registry.PersonaCount())
	var guardianID schema.PersonaID
	for i := 0; i < loaded.Registry.PersonaCount(); i++ {
		entry, _ := loaded.Registry.PersonaAt(i)
		impl, ok := impls[entry.Name]
		if !ok {
			return nil, exception.ErrPersonaUnknown
		}
		personas[entry.ID] = impl
		if entry.Name == "guardian" {
			guardianID = entry.ID
		}
	}

	gateLog := authority.NewLog()
	return &Engine{
		loaded:          loaded,
		reg:             loaded.Registry,
		normalizer:      feed.NewNormalizer(loaded.Registry),
		regime:          regime.NewEngine(loaded.Regime),
		guardian:        regime.NewGuardian(loaded.Guardian),
		router:          sovereign,
		legal:           overlay.NewLegal(loaded.Overlay),
		gate:            authority.NewGate(loaded.Policy, loaded.Secret, gateLog),
		personas:        personas,
		guardianPersona: guardianPersona,
		guardianID:      guardianID,
		exposures:       state.NewExposureReducer(),
		floatExp:        make(map[uint32]float64),
		decisions:       ledger.NewStateMachine(),
		queue:           queue,
		metrics:         metrics,
		traceGen:        traceGen,
		history:         make(map[uint32][]schema.MarketObservation),
		historyLimit:    defaultHistoryLimit,
	}, nil
}

// Restore seeds the engine from recovered state.
func (e *Engine) Restore(res state.RecoverResult) {
	if res.Exposures != nil {
		e.exposures = res.Exposures
		e.floatExp = make(map[uint32]float64)
		e.exposures.Each(func(symbolID uint32, exposure schema.Exposure) {
			e.floatExp[symbolID] = exposure.Float()
		})
	}
	e.seq = res.LastSeq
	e.lastEventTs = res.LastEventTs
	if res.ChainTip != "" {
		e.gate.Log().Anchor(res.ChainTip)
	}
}

// SetKillSwitch toggles the overlay's emergency veto.
func (e *Engine) SetKillSwitch(on bool) {
	e.legal.SetKillSwitch(on)
}

// Exposures returns the exposure reducer.
func (e *Engine) Exposures() *state.ExposureReducer {
	return e.exposures
}

// Decisions returns the decision ledger.
func (e *Engine) Decisions() *ledger.StateMachine {
	return e.decisions
}

// Seq returns the last published sequence number.
func (e *Engine) Seq() uint64 {
	return e.seq
}

// LastEventTs returns the timestamp of the last published event.
func (e *Engine) LastEventTs() int64 {
	return e.lastEventTs
}

// ChainTip returns the current authority chain tip.
func (e *Engine) ChainTip() string {
	return e.gate.Log().LastHash()
}

// AuthorityRecords returns a copy of the authority chain.
func (e *Engine) AuthorityRecords() []authority.Record {
	return e.gate.Log().Records()
}

// Step runs one full decision cycle over the raw observations.
func (e *Engine) Step(now time.Time, raws []feed.RawObservation) (StepResult, error) {
	pipelineStart := time.Now()
	e.step++

	observations := make([]schema.MarketObservation, 0, len(raws))
	for _, raw := range raws {
		header, obsPayload, err := e.normalizer.Normalize(e.nextSeq(), raw)
		if err != nil {
			return StepResult{}, err
		}
		header.TraceID = e.traceGen.Next()
		e.publish(header, codec.EncodeMarketObservation(nil, obsPayload))
		e.appendHistory(obsPayload)
		observations = append(observations, obsPayload)
	}

	marketState := regime.StateFromObservations(observations)
	assessment := e.regime.Evaluate(marketState)
	guardianView := e.guardian.Assess(marketState)
	profile := regime.ChooseProfile(marketState.Stress.Drawdown, marketState.Volatility.Realized)
	e.metrics.IncBand(assessment.Band)

	e.publishEvent(schema.EventRegimeAssessment, now, codec.EncodeRegimeAssessment(nil, schema.RegimeAssessment{
		Band:              assessment.Band,
		Regime:            guardianView.Regime,
		Score:             schema.RatioFromFloat(assessment.Score),
		Severity:          schema.RatioFromFloat(guardianView.Severity),
		MaxLeverage:       schema.RatioFromFloat(assessment.MaxLeverage),
		MaxPositionChange: schema.RatioFromFloat(assessment.MaxPositionChange),
		MaxGrossShift:     schema.RatioFromFloat(assessment.MaxGrossShift),
	}))

	view := e.buildView(profile)
	signals := e.collectSignals(now, view)

	combined, combineErr := e.router.Combine(signals)
	if combineErr != nil {
		logs.Warnf("router risk-off: %+v", combineErr)
	}
	guardianWeight := e.guardianPersona.Weight(view)
	for symbolID := range combined {
		combined[symbolID] *= guardianWeight
	}

	result := StepResult{
		Assessment:     assessment,
		Guardian:       guardianView,
		Profile:        profile,
		GuardianWeight: guardianWeight,
		RouterLoad:     e.router.Load(),
		Degraded:       e.router.DegradeMode(),
	}

	combinedRisk := blendRisk(assessment.Score, guardianView.Severity)
	for i := 0; i < e.reg.SymbolCount(); i++ {
		symbol, _ := e.reg.SymbolAt(i)
		symbolID := uint32(symbol.ID)
		delta := combined[symbolID]
		exposure := e.floatExp[symbolID]
		if delta == 0 && exposure == 0 {
			continue
		}

		decision, committed := e.decide(now, symbolID, delta, exposure, combinedRisk, assessment.Constraints)
		result.Decisions = append(result.Decisions, decision)
		if committed {
			result.Committed++
		}
	}

	e.metrics.ObservePipeline(time.Since(pipelineStart))
	return result, nil
}

// collectSignals gathers persona proposals and handles leg failures.
// Short history skips the leg for this step; non-finite output excludes
// the leg permanently and reweights the survivors.
func (e *Engine) collectSignals(now time.Time, view persona.View) map[schema.PersonaID]map[uint32]float64 {
	signals := make(map[schema.PersonaID]map[uint32]float64, len(e.personas))
	for i := 0; i < e.reg.PersonaCount(); i++ {
		entry, _ := e.reg.PersonaAt(i)
		if e.router.Excluded(entry.ID) {
			continue
		}
		impl := e.personas[entry.ID]

		evalStart := time.Now()
		deltas, err := impl.Propose(view)
		e.metrics.ObservePersonaEval(time.Since(evalStart))

		if err != nil {
			if errors.Is(err, exception.ErrPersonaShortHistory) {
				continue
			}
			e.metrics.IncPersonaError()
			if errors.Is(err, exception.ErrPersonaNotFinite) {
				logs.Warnf("persona %s produced non-finite output, excluding leg: %+v", entry.Name, err)
				e.router.Exclude(entry.ID)
				e.publishEvent(schema.EventRouterUpdate, now, codec.EncodeRouterUpdate(nil, e.router.Update(entry.ID)))
				continue
			}
			logs.Errorf("persona %s proposal failed: %+v", entry.Name, err)
			continue
		}

		if entry.ID == e.guardianID {
			// guardian's output is a portfolio clamp, not a direction
			continue
		}

		scale := profileScale(entry.Name, view.Profile)
		for symbolID, d := range deltas {
			scaled := d * scale
			deltas[symbolID] = scaled
			e.publishEvent(schema.EventPersonaProposal, now, codec.EncodePersonaProposal(nil, schema.PersonaProposal{
				PersonaID:  uint16(entry.ID),
				SymbolID:   symbolID,
				Delta:      schema.ExposureFromFloat(scaled),
				Confidence: schema.RatioFromFloat(e.router.Weight(entry.ID)),
			}))
		}
		signals[entry.ID] = deltas
	}
	return signals
}

// decide runs one symbol through overlay and authority, committing the
// cleared delta when allowed.
func (e *Engine) decide(now time.Time, symbolID uint32, delta, exposure, combinedRisk float64, constraints regime.Constraints) (schema.OverlayDecision, bool) {
	e.nextDecisionID++
	decisionID := e.nextDecisionID

	if _, err := e.decisions.ApplyProposal(decisionID, symbolID, schema.ExposureFromFloat(delta)); err != nil {
		logs.Errorf("ledger proposal failed: %+v", err)
	}

	decision := e.legal.Apply(now, overlay.Input{
		DecisionID:      decisionID,
		SymbolID:        symbolID,
		ProposedDelta:   delta,
		CurrentExposure: exposure,
		CombinedRisk:    combinedRisk,
		Constraints:     constraints,
		Equity:          e.loaded.Equity,
		Degraded:        e.router.DegradeMode(),
	})
	e.metrics.IncOverlayAction(decision.Action)
	e.metrics.IncOverlayReason(decision.Reason)
	e.publishEvent(schema.EventOverlayDecision, now, codec.EncodeOverlayDecision(nil, decision))
	if _, err := e.decisions.ApplyOverlay(decision); err != nil {
		logs.Errorf("ledger overlay failed: %+v", err)
	}

	if decision.Action == schema.OverlayActionVeto || decision.ClearedDelta == 0 {
		return decision, false
	}

	committed := e.commit(now, decisionID, symbolID, decision)
	return decision, committed
}

// commit authorizes the cleared delta through the gate and applies it.
func (e *Engine) commit(now time.Time, decisionID uint64, symbolID uint32, decision schema.OverlayDecision) bool {
	payload := codec.EncodeOverlayDecision(nil, decision)
	sig := authority.Sign(e.loaded.Secret, ActionDecisionCommit, e.loaded.Policy.AlphaActorID, payload,
		e.loaded.Identity.PubKey, e.loaded.Identity.KeyID)

	record, err := e.gate.Authorize(authority.CommitRequest{
		Action:    ActionDecisionCommit,
		ActorID:   e.loaded.Policy.AlphaActorID,
		Payload:   payload,
		Signature: &sig,
	})
	if err != nil {
		// fail closed: an unauthorized decision never mutates exposure
		logs.Errorf("commit authorization failed for decision %d: %+v", decisionID, err)
		return false
	}

	commit := schema.CommitRecord{
		DecisionID: decisionID,
		SymbolID:   symbolID,
		Delta:      decision.ClearedDelta,
		PrevHash:   hashTo32(record.PrevHash),
		RecordHash: hashTo32(record.RecordHash),
	}
	commit.NewExposure = e.exposures.ApplyCommit(commit)
	e.floatExp[symbolID] = commit.NewExposure.Float()

	if _, err := e.decisions.ApplyCommit(commit); err != nil {
		logs.Errorf("ledger commit failed: %+v", err)
	}
	e.publishEvent(schema.EventCommitRecord, now, codec.EncodeCommitRecord(nil, commit))
	return true
}

func (e *Engine) buildView(profile regime.Profile) persona.View {
	symbols := make([]schema.Symbol, 0, e.reg.SymbolCount())
	for i := 0; i < e.reg.SymbolCount(); i++ {
		symbol, _ := e.reg.SymbolAt(i)
		symbols = append(symbols, symbol)
	}
	exposures := make(map[uint32]float64, len(e.floatExp))
	for symbolID, exp := range e.floatExp {
		exposures[symbolID] = exp
	}
	return persona.View{
		Symbols:   symbols,
		History:   e.history,
		Exposures: exposures,
		Equity:    e.loaded.Equity,
		Profile:   profile,
		Step:      e.step,
	}
}

func (e *Engine) appendHistory(obs schema.MarketObservation) {
	h := append(e.history[obs.SymbolID], obs)
	if len(h) > e.historyLimit {
		h = h[len(h)-e.historyLimit:]
	}
	e.history[obs.SymbolID] = h
}

func (e *Engine) publishEvent(eventType schema.EventType, now time.Time, payload []byte) {
	ts := now.UTC().UnixNano()
	header := schema.NewHeader(eventType, sourceEngine, e.nextSeq(), ts, ts)
	header.TraceID = e.traceGen.Next()
	e.publish(header, payload)
}

func (e *Engine) publish(header schema.EventHeader, payload []byte) {
	e.lastEventTs = header.TsEvent
	err := e.queue.TryPublish(bus.Event{Header: header, Payload: payload})
	if err != nil {
		if errors.Is(err, bus.ErrQueueFull) {
			e.metrics.IncQueueDrop()
		} else if errors.Is(err, bus.ErrQueueClosed) {
			e.metrics.IncQueueClosed()
		}
		return
	}
	e.metrics.ObserveEvent(header)
}

func (e *Engine) nextSeq() uint64 {
	e.seq++
	return e.seq
}

// profileScale maps the constitution profile onto per-persona budgets.
// The convexity budget uses the magnitude: the persona already shorts
// into stress, the profile only sizes the hedge.
func profileScale(name string, profile regime.Profile) float64 {
	switch name {
	case "alpha":
		if profile.Regime != "" {
			return profile.AlphaWeight
		}
		return 1
	case "convexity":
		if profile.Regime != "" && profile.ConvexityWeight != 0 {
			if profile.ConvexityWeight < 0 {
				return -profile.ConvexityWeight
			}
			return profile.ConvexityWeight
		}
		return 1
	default:
		return 1
	}
}

// blendRisk folds the regime score and guardian severity into the 0..1
// scale the overlay bands expect. A score of 4 (critical boundary) maps
// to full scale.
func blendRisk(score, severity float64) float64 {
	normScore := score / 4.0
	if normScore > 1 {
		normScore = 1
	}
	if normScore < 0 {
		normScore = 0
	}
	risk := 0.5*normScore + 0.5*severity
	if risk > 1 {
		return 1
	}
	return risk
}

func hashTo32(s string) [schema.HashSize]byte {
	var out [schema.HashSize]byte
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != schema.HashSize {
		return out
	}
	copy(out[:], decoded)
	return out
}
