package persona

import "math"

// ConvexityConfig tunes the crash-hedge persona.
type ConvexityConfig struct {
	DrawdownFloor float64
	TailFloor     float64
	DrawdownGain  float64
	TailGain      float64
}

func (c ConvexityConfig) withDefaults() ConvexityConfig {
	if c.DrawdownFloor == 0 {
		c.DrawdownFloor = 0.05
	}
	if c.TailFloor == 0 {
		c.TailFloor = 0.50
	}
	if c.DrawdownGain == 0 {
		c.DrawdownGain = 2.0
	}
	if c.TailGain == 0 {
		c.TailGain = 1.0
	}
	return c
}

// Convexity is the hedging persona: it proposes negative exposure that
// grows convexly once drawdown or tail risk clears its floor, and stays
// flat in calm conditions.
type Convexity struct {
	cfg ConvexityConfig
}

// NewConvexity creates the convexity persona.
func NewConvexity(cfg ConvexityConfig) *Convexity {
	return &Convexity{cfg: cfg.withDefaults()}
}

func (c *Convexity) Name() string { return "convexity" }

func (c *Convexity) Propose(view View) (map[uint32]float64, error) {
	signals := make(map[uint32]float64, len(view.Symbols))
	for _, symbol := range view.Symbols {
		obs, ok := view.Latest(uint32(symbol.ID))
		if !ok {
			signals[uint32(symbol.ID)] = 0
			continue
		}
		ddExcess := math.Max(0, obs.Drawdown.Float()-c.cfg.DrawdownFloor)
		tailExcess := math.Max(0, obs.TailRisk.Float()-c.cfg.TailFloor)
		hedge := c.cfg.DrawdownGain*math.Pow(ddExcess, 1.2) + c.cfg.TailGain*math.Pow(tailExcess, 1.3)
		signals[uint32(symbol.ID)] = -hedge
	}
	if err := checkFinite(c.Name(), signals); err != nil {
		return nil, err
	}
	return signals, nil
}
