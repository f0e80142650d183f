package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const MarketObservationPayloadSize = 112

// EncodeMarketObservation serializes an observation into a fixed-size payload.
func EncodeMarketObservation(dst []byte, obs schema.MarketObservation) []byte {
	if cap(dst) < MarketObservationPayloadSize {
		dst = make([]byte, MarketObservationPayloadSize)
	} else {
		dst = dst[:MarketObservationPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], obs.SymbolID)
	binary.LittleEndian.PutUint16(dst[4:6], obs.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], obs.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(obs.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(obs.VolRealized))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(obs.VolTrend))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(obs.Depth))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(obs.Spread))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(obs.ImpactCost))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(obs.Elasticity))
	binary.LittleEndian.PutUint64(dst[64:72], uint64(obs.FlowPressure))
	binary.LittleEndian.PutUint64(dst[72:80], uint64(obs.NetInflow))
	binary.LittleEndian.PutUint64(dst[80:88], uint64(obs.Crowding))
	binary.LittleEndian.PutUint64(dst[88:96], uint64(obs.Drawdown))
	binary.LittleEndian.PutUint64(dst[96:104], uint64(obs.RecoverySpeed))
	binary.LittleEndian.PutUint64(dst[104:112], uint64(obs.TailRisk))

	return dst
}

// DecodeMarketObservation parses a fixed-size observation payload.
func DecodeMarketObservation(src []byte) (schema.MarketObservation, bool) {
	if len(src) < MarketObservationPayloadSize {
		return schema.MarketObservation{}, false
	}
	return schema.MarketObservation{
		SymbolID:      binary.LittleEndian.Uint32(src[0:4]),
		Flags:         binary.LittleEndian.Uint16(src[4:6]),
		Reserved:      binary.LittleEndian.Uint16(src[6:8]),
		Price:         schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		VolRealized:   schema.Ratio(int64(binary.LittleEndian.Uint64(src[16:24]))),
		VolTrend:      schema.Ratio(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Depth:         schema.Ratio(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Spread:        schema.Ratio(int64(binary.LittleEndian.Uint64(src[40:48]))),
		ImpactCost:    schema.Ratio(int64(binary.LittleEndian.Uint64(src[48:56]))),
		Elasticity:    schema.Ratio(int64(binary.LittleEndian.Uint64(src[56:64]))),
		FlowPressure:  schema.Ratio(int64(binary.LittleEndian.Uint64(src[64:72]))),
		NetInflow:     schema.Ratio(int64(binary.LittleEndian.Uint64(src[72:80]))),
		Crowding:      schema.Ratio(int64(binary.LittleEndian.Uint64(src[80:88]))),
		Drawdown:      schema.Ratio(int64(binary.LittleEndian.Uint64(src[88:96]))),
		RecoverySpeed: schema.Ratio(int64(binary.LittleEndian.Uint64(src[96:104]))),
		TailRisk:      schema.Ratio(int64(binary.LittleEndian.Uint64(src[104:112]))),
	}, true
}
