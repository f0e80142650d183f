package persona

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// LiquidityConfig tunes the index-trend persona.
type LiquidityConfig struct {
	TopN       int
	EmaAlpha   float64
	MALookback int
}

func (c LiquidityConfig) withDefaults() LiquidityConfig {
	if c.TopN == 0 {
		c.TopN = 3
	}
	if c.EmaAlpha == 0 {
		c.EmaAlpha = 0.20
	}
	if c.MALookback == 0 {
		c.MALookback = 20
	}
	return c
}

// Liquidity predicts the index-level trend and applies the signal to the
// deepest symbols only. The output is a continuous signal in [-1, 1].
type Liquidity struct {
	cfg  LiquidityConfig
	prev float64
	seen bool
}

// NewLiquidity creates the liquidity persona.
func NewLiquidity(cfg LiquidityConfig) *Liquidity {
	return &Liquidity{cfg: cfg.withDefaults()}
}

func (l *Liquidity) Name() string { return "liquidity" }

// Propose forecasts the index direction and tracks the top-N deepest
// symbols with it.
func (l *Liquidity) Propose(view View) (map[uint32]float64, error) {
	minLen := l.cfg.MALookback + 1
	index, breadthNum, breadthDen := make([]float64, 0), 0, 0

	for _, symbol := range view.Symbols {
		history := view.History[uint32(symbol.ID)]
		if len(history) < minLen {
			return nil, errors.Wrapf(exception.ErrPersonaShortHistory,
				"persona: liquidity, symbol: %s, have: %d, need: %d", symbol.Name, len(history), minLen)
		}
		prices := closes(history)
		if len(index) == 0 {
			index = make([]float64, len(prices))
		}
		for i := range prices {
			if i < len(index) {
				index[i] += prices[i] / float64(len(view.Symbols))
			}
		}
		ma := mean(tail(prices, l.cfg.MALookback))
		if prices[len(prices)-1] > ma {
			breadthNum++
		}
		breadthDen++
	}

	last := len(index) - 1
	ret1 := ratioReturn(index[last], index[last-1])
	ret5 := ratioReturn(index[last], index[last-5])
	vol20 := stddev(tail(returnsOf(index), l.cfg.MALookback))
	breadth := float64(breadthNum) / float64(breadthDen)

	// low vol reads as risk-on
	riskIndicator := (0.02 - vol20) * 10

	score := clamp(1.5*ret1+1.0*ret5+(breadth-0.5)+0.5*riskIndicator, -1, 1)
	if l.seen {
		score = l.cfg.EmaAlpha*score + (1-l.cfg.EmaAlpha)*l.prev
	}
	l.prev = score
	l.seen = true

	signals := make(map[uint32]float64, len(view.Symbols))
	for _, symbol := range view.Symbols {
		signals[uint32(symbol.ID)] = 0
	}
	for _, symbolID := range l.deepest(view) {
		signals[symbolID] = score
	}

	if err := checkFinite(l.Name(), signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// deepest ranks symbols by latest book depth and returns the top N.
func (l *Liquidity) deepest(view View) []uint32 {
	type depthEntry struct {
		symbolID uint32
		depth    float64
	}
	entries := make([]depthEntry, 0, len(view.Symbols))
	for _, symbol := range view.Symbols {
		obs, ok := view.Latest(uint32(symbol.ID))
		if !ok {
			continue
		}
		entries = append(entries, depthEntry{symbolID: uint32(symbol.ID), depth: obs.Depth.Float()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].depth == entries[j].depth {
			return entries[i].symbolID < entries[j].symbolID
		}
		return entries[i].depth > entries[j].depth
	})
	n := l.cfg.TopN
	if n > len(entries) {
		n = len(entries)
	}
	ids := make([]uint32, 0, n)
	for _, entry := range entries[:n] {
		ids = append(ids, entry.symbolID)
	}
	return ids
}
