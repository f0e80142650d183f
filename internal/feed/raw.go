package feed

import (
	"fmt"
	"time"

	"main/internal/schema"
)

// defaultPriceScale converts float prices into scaled integer prices.
const defaultPriceScale = 10_000

// RawObservation is a normalized raw market input for one symbol.
type RawObservation struct {
	Symbol string
	Flags  uint16
	Price  float64

	VolRealized float64
	VolTrend    float64

	Depth      float64
	Spread     float64
	ImpactCost float64
	Elasticity float64

	FlowPressure float64
	NetInflow    float64
	Crowding     float64

	Drawdown      float64
	RecoverySpeed float64
	TailRisk      float64

	Source  uint16
	TsEvent int64
	TsRecv  int64
}

// Normalizer maps raw observations to schema.MarketObservation.
type Normalizer struct {
	reg        *schema.Registry
	priceScale int64
}

// NewNormalizer creates a normalizer for a registry.
func NewNormalizer(reg *schema.Registry) *Normalizer {
	return &Normalizer{reg: reg, priceScale: defaultPriceScale}
}

// Normalize converts a raw observation into a schema event and header.
func (n *Normalizer) Normalize(seq uint64, raw RawObservation) (schema.EventHeader, schema.MarketObservation, error) {
	if n.reg == nil {
		return schema.EventHeader{}, schema.MarketObservation{}, fmt.Errorf("registry is nil")
	}
	symbolID, ok := n.reg.SymbolIDByName(raw.Symbol)
	if !ok {
		return schema.EventHeader{}, schema.MarketObservation{}, fmt.Errorf("symbol not found: %s", raw.Symbol)
	}
	if raw.TsRecv == 0 {
		raw.TsRecv = time.Now().UTC().UnixNano()
	}
	if raw.TsEvent == 0 {
		raw.TsEvent = raw.TsRecv
	}
	header := schema.NewHeader(schema.EventMarketObservation, raw.Source, seq, raw.TsEvent, raw.TsRecv)
	obs := schema.MarketObservation{
		SymbolID: uint32(symbolID),
		Flags:    raw.Flags,
		Price:    schema.Price(raw.Price * float64(n.priceScale)),

		VolRealized: schema.RatioFromFloat(raw.VolRealized),
		VolTrend:    schema.RatioFromFloat(raw.VolTrend),

		Depth:      schema.RatioFromFloat(raw.Depth),
		Spread:     schema.RatioFromFloat(raw.Spread),
		ImpactCost: schema.RatioFromFloat(raw.ImpactCost),
		Elasticity: schema.RatioFromFloat(raw.Elasticity),

		FlowPressure: schema.RatioFromFloat(raw.FlowPressure),
		NetInflow:    schema.RatioFromFloat(raw.NetInflow),
		Crowding:     schema.RatioFromFloat(raw.Crowding),

		Drawdown:      schema.RatioFromFloat(raw.Drawdown),
		RecoverySpeed: schema.RatioFromFloat(raw.RecoverySpeed),
		TailRisk:      schema.RatioFromFloat(raw.TailRisk),
	}
	return header, obs, nil
}
