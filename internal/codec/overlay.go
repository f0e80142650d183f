package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const OverlayDecisionPayloadSize = 48

// EncodeOverlayDecision serializes an overlay decision into a fixed-size payload.
func EncodeOverlayDecision(dst []byte, d schema.OverlayDecision) []byte {
	if cap(dst) < OverlayDecisionPayloadSize {
		dst = make([]byte, OverlayDecisionPayloadSize)
	} else {
		dst = dst[:OverlayDecisionPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], d.DecisionID)
	binary.LittleEndian.PutUint32(dst[8:12], d.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(d.Action))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(d.Reason))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(d.ProposedDelta))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(d.ClearedDelta))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(d.RiskCut))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(d.ViolationScore))

	return dst
}

// DecodeOverlayDecision parses a fixed-size overlay decision payload.
func DecodeOverlayDecision(src []byte) (schema.OverlayDecision, bool) {
	if len(src) < OverlayDecisionPayloadSize {
		return schema.OverlayDecision{}, false
	}
	return schema.OverlayDecision{
		DecisionID:     binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:       binary.LittleEndian.Uint32(src[8:12]),
		Action:         schema.OverlayAction(binary.LittleEndian.Uint16(src[12:14])),
		Reason:         schema.OverlayReason(binary.LittleEndian.Uint16(src[14:16])),
		ProposedDelta:  schema.Exposure(int64(binary.LittleEndian.Uint64(src[16:24]))),
		ClearedDelta:   schema.Exposure(int64(binary.LittleEndian.Uint64(src[24:32]))),
		RiskCut:        schema.Ratio(int64(binary.LittleEndian.Uint64(src[32:40]))),
		ViolationScore: schema.Ratio(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}
