package feed

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// ScenarioPhase is one phase of a scripted market scenario. Scale and
// bias fields are decimal strings so scenario files can carry exact
// values.
type ScenarioPhase struct {
	Name            string          `json:"name"`
	Steps           int             `json:"steps"`
	VolScale        decimal.Decimal `json:"vol_scale"`
	DriftShift      decimal.Decimal `json:"drift_shift"`
	DepthScale      decimal.Decimal `json:"depth_scale"`
	FlowBias        decimal.Decimal `json:"flow_bias"`
	LiquidityFreeze bool            `json:"liquidity_freeze"`
}

// Scenario is a scripted sequence of market phases.
type Scenario struct {
	Name   string          `json:"name"`
	Phases []ScenarioPhase `json:"phases"`
}

// Phase is a resolved scenario phase applied to the generator.
type Phase struct {
	Name            string
	VolScale        float64
	DriftShift      float64
	DepthScale      float64
	FlowBias        float64
	LiquidityFreeze bool
}

func neutralPhase() Phase {
	return Phase{Name: "neutral", VolScale: 1, DepthScale: 1}
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "read scenario file")
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return Scenario{}, errors.Wrap(err, "unmarshal scenario")
	}
	if len(s.Phases) == 0 {
		return Scenario{}, errors.New("scenario has no phases")
	}
	for i, p := range s.Phases {
		if p.Steps <= 0 {
			return Scenario{}, errors.Errorf("scenario phase %d (%s): steps must be > 0", i, p.Name)
		}
	}
	return s, nil
}

// TotalSteps returns the step count across all phases.
func (s Scenario) TotalSteps() int {
	total := 0
	for _, p := range s.Phases {
		total += p.Steps
	}
	return total
}

// PhaseAt resolves the phase active at a zero-based step. The last
// phase stays active past the scripted end.
func (s Scenario) PhaseAt(step int) (Phase, bool) {
	if len(s.Phases) == 0 {
		return neutralPhase(), false
	}
	offset := step
	for _, p := range s.Phases {
		if offset < p.Steps {
			return resolvePhase(p), true
		}
		offset -= p.Steps
	}
	return resolvePhase(s.Phases[len(s.Phases)-1]), false
}

func resolvePhase(p ScenarioPhase) Phase {
	out := Phase{
		Name:            p.Name,
		VolScale:        decimalFloat(p.VolScale),
		DriftShift:      decimalFloat(p.DriftShift),
		DepthScale:      decimalFloat(p.DepthScale),
		FlowBias:        decimalFloat(p.FlowBias),
		LiquidityFreeze: p.LiquidityFreeze,
	}
	// Scale fields default to 1 when omitted or zero.
	if out.VolScale <= 0 {
		out.VolScale = 1
	}
	if out.DepthScale <= 0 {
		out.DepthScale = 1
	}
	return out
}

func decimalFloat(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
