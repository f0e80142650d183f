package persona

import (
	"math"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// AlphaConfig tunes the multi-factor alpha persona.
type AlphaConfig struct {
	MomentumLookback int
	ReversalLookback int
	VolLookback      int
	ClipZ            float64
	EmaAlpha         float64
	TargetVol        float64

	MomentumWeight float64
	ReversalWeight float64
	VolWeight      float64
}

func (c AlphaConfig) withDefaults() AlphaConfig {
	if c.MomentumLookback == 0 {
		c.MomentumLookback = 60
	}
	if c.ReversalLookback == 0 {
		c.ReversalLookback = 5
	}
	if c.VolLookback == 0 {
		c.VolLookback = 20
	}
	if c.ClipZ == 0 {
		c.ClipZ = 3.0
	}
	if c.EmaAlpha == 0 {
		c.EmaAlpha = 0.25
	}
	if c.TargetVol == 0 {
		c.TargetVol = 0.20
	}
	if c.MomentumWeight == 0 {
		c.MomentumWeight = 1.0
	}
	if c.ReversalWeight == 0 {
		c.ReversalWeight = 1.0
	}
	if c.VolWeight == 0 {
		c.VolWeight = 0.5
	}
	return c
}

// Alpha is the market-neutral multi-factor persona: momentum plus
// short-term reversal with a volatility penalty, demeaned across symbols,
// clipped, EMA-smoothed and scaled to a target vol.
type Alpha struct {
	cfg  AlphaConfig
	prev map[uint32]float64
}

// NewAlpha creates the alpha persona.
func NewAlpha(cfg AlphaConfig) *Alpha {
	return &Alpha{cfg: cfg.withDefaults(), prev: make(map[uint32]float64)}
}

func (a *Alpha) Name() string { return "alpha" }

// Propose computes cross-sectional factor signals for every symbol.
func (a *Alpha) Propose(view View) (map[uint32]float64, error) {
	minLen := a.cfg.MomentumLookback + 1
	raw := make(map[uint32]float64, len(view.Symbols))

	for _, symbol := range view.Symbols {
		history := view.History[uint32(symbol.ID)]
		if len(history) < minLen {
			return nil, errors.Wrapf(exception.ErrPersonaShortHistory,
				"persona: alpha, symbol: %s, have: %d, need: %d", symbol.Name, len(history), minLen)
		}
		prices := closes(history)
		last := len(prices) - 1

		momentum := ratioReturn(prices[last-1], prices[last-a.cfg.MomentumLookback])
		reversal := -ratioReturn(prices[last], prices[last-a.cfg.ReversalLookback])
		vol := stddev(tail(returnsOf(prices), a.cfg.VolLookback))

		raw[uint32(symbol.ID)] = a.cfg.MomentumWeight*momentum +
			a.cfg.ReversalWeight*reversal -
			a.cfg.VolWeight*vol
	}

	signals := a.postProcess(crossSectionZ(raw))
	if err := checkFinite(a.Name(), signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// postProcess clips, smooths against the previous tick and rescales to
// the target vol.
func (a *Alpha) postProcess(z map[uint32]float64) map[uint32]float64 {
	smoothed := make(map[uint32]float64, len(z))
	values := make([]float64, 0, len(z))
	for symbolID, v := range z {
		clipped := clamp(v, -a.cfg.ClipZ, a.cfg.ClipZ)
		prev, ok := a.prev[symbolID]
		if ok {
			clipped = a.cfg.EmaAlpha*clipped + (1-a.cfg.EmaAlpha)*prev
		}
		smoothed[symbolID] = clipped
		values = append(values, clipped)
	}
	for symbolID, v := range smoothed {
		a.prev[symbolID] = v
	}

	vol := stddev(values)
	if vol < 1e-8 {
		for symbolID := range smoothed {
			smoothed[symbolID] = 0
		}
		return smoothed
	}
	scale := a.cfg.TargetVol / vol
	for symbolID, v := range smoothed {
		smoothed[symbolID] = v * scale
	}
	return smoothed
}

// crossSectionZ demeans and standardizes the raw signals across symbols,
// keeping the persona market-neutral.
func crossSectionZ(raw map[uint32]float64) map[uint32]float64 {
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		values = append(values, v)
	}
	m := mean(values)
	sd := stddev(values) + 1e-8

	z := make(map[uint32]float64, len(raw))
	for symbolID, v := range raw {
		z[symbolID] = (v - m) / sd
	}
	return z
}

func ratioReturn(now, then float64) float64 {
	if then == 0 {
		return 0
	}
	r := now/then - 1
	if math.IsNaN(r) {
		return 0
	}
	return r
}
