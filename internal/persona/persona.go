/*
Package persona implements the competing decision personas.

Each persona reads the same market view and proposes per-symbol exposure
deltas. Directional personas (alpha, liquidity, convexity) feed the
sovereign router's weighted combination; the guardian persona emits a
single portfolio risk weight that clamps the combined result.

A persona that produces non-finite output must not be coerced: the error
is surfaced so the router can exclude the leg and reallocate.
*/
package persona

import (
	"math"

	"github.com/yanun0323/errors"

	"main/internal/regime"
	"main/internal/schema"
	"main/pkg/exception"
)

// View is the read-only snapshot personas act on.
type View struct {
	// Symbols lists the registered symbols in registry order.
	Symbols []schema.Symbol

	// History holds per-symbol observations, oldest first.
	History map[uint32][]schema.MarketObservation

	// Exposures holds the current position per symbol in float units.
	Exposures map[uint32]float64

	// Equity is the current account equity. Gross leverage is derived
	// from it.
	Equity float64

	// Profile is the constitution state chosen for the current stress.
	Profile regime.Profile

	Step int
}

// Latest returns the most recent observation for a symbol.
func (v View) Latest(symbolID uint32) (schema.MarketObservation, bool) {
	h := v.History[symbolID]
	if len(h) == 0 {
		return schema.MarketObservation{}, false
	}
	return h[len(h)-1], true
}

// GrossExposure returns the sum of absolute exposures.
func (v View) GrossExposure() float64 {
	gross := 0.0
	for _, e := range v.Exposures {
		gross += math.Abs(e)
	}
	return gross
}

// Persona proposes exposure deltas per symbol.
type Persona interface {
	Name() string
	Propose(view View) (map[uint32]float64, error)
}

// checkFinite rejects maps containing NaN or Inf values.
func checkFinite(name string, deltas map[uint32]float64) error {
	for symbolID, d := range deltas {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return errors.Wrapf(exception.ErrPersonaNotFinite, "persona: %s, symbol: %d", name, symbolID)
		}
	}
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// closes extracts the price series of a symbol as floats.
func closes(history []schema.MarketObservation) []float64 {
	prices := make([]float64, len(history))
	for i, obs := range history {
		prices[i] = float64(obs.Price)
	}
	return prices
}

// returnsOf computes simple step returns from a price series.
func returnsOf(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, prices[i]/prev-1)
	}
	return rets
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
