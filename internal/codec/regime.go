package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const RegimeAssessmentPayloadSize = 48

// EncodeRegimeAssessment serializes an assessment into a fixed-size payload.
func EncodeRegimeAssessment(dst []byte, a schema.RegimeAssessment) []byte {
	if cap(dst) < RegimeAssessmentPayloadSize {
		dst = make([]byte, RegimeAssessmentPayloadSize)
	} else {
		dst = dst[:RegimeAssessmentPayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(a.Band))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(a.Regime))
	binary.LittleEndian.PutUint16(dst[4:6], a.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], a.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(a.Score))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(a.Severity))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(a.MaxLeverage))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(a.MaxPositionChange))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(a.MaxGrossShift))

	return dst
}

// DecodeRegimeAssessment parses a fixed-size assessment payload.
func DecodeRegimeAssessment(src []byte) (schema.RegimeAssessment, bool) {
	if len(src) < RegimeAssessmentPayloadSize {
		return schema.RegimeAssessment{}, false
	}
	return schema.RegimeAssessment{
		Band:              schema.RegimeBand(binary.LittleEndian.Uint16(src[0:2])),
		Regime:            schema.GuardianRegime(binary.LittleEndian.Uint16(src[2:4])),
		Flags:             binary.LittleEndian.Uint16(src[4:6]),
		Reserved:          binary.LittleEndian.Uint16(src[6:8]),
		Score:             schema.Ratio(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Severity:          schema.Ratio(int64(binary.LittleEndian.Uint64(src[16:24]))),
		MaxLeverage:       schema.Ratio(int64(binary.LittleEndian.Uint64(src[24:32]))),
		MaxPositionChange: schema.Ratio(int64(binary.LittleEndian.Uint64(src[32:40]))),
		MaxGrossShift:     schema.Ratio(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}
