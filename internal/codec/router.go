package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	routerLegSize           = 10
	RouterUpdatePayloadSize = 16 + schema.MaxRouterLegs*routerLegSize
)

// EncodeRouterUpdate serializes a router update into a fixed-size payload.
func EncodeRouterUpdate(dst []byte, u schema.RouterUpdate) []byte {
	if cap(dst) < RouterUpdatePayloadSize {
		dst = make([]byte, RouterUpdatePayloadSize)
	} else {
		dst = dst[:RouterUpdatePayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], u.Excluded)
	binary.LittleEndian.PutUint16(dst[2:4], u.DegradeMode)
	binary.LittleEndian.PutUint16(dst[4:6], u.LegCount)
	binary.LittleEndian.PutUint16(dst[6:8], u.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(u.Load))

	offset := 16
	for i := 0; i < schema.MaxRouterLegs; i++ {
		binary.LittleEndian.PutUint16(dst[offset:offset+2], u.Legs[i].PersonaID)
		binary.LittleEndian.PutUint64(dst[offset+2:offset+10], uint64(u.Legs[i].Weight))
		offset += routerLegSize
	}

	return dst
}

// DecodeRouterUpdate parses a fixed-size router update payload.
func DecodeRouterUpdate(src []byte) (schema.RouterUpdate, bool) {
	if len(src) < RouterUpdatePayloadSize {
		return schema.RouterUpdate{}, false
	}
	u := schema.RouterUpdate{
		Excluded:    binary.LittleEndian.Uint16(src[0:2]),
		DegradeMode: binary.LittleEndian.Uint16(src[2:4]),
		LegCount:    binary.LittleEndian.Uint16(src[4:6]),
		Flags:       binary.LittleEndian.Uint16(src[6:8]),
		Load:        schema.Ratio(int64(binary.LittleEndian.Uint64(src[8:16]))),
	}
	offset := 16
	for i := 0; i < schema.MaxRouterLegs; i++ {
		u.Legs[i] = schema.RouterLeg{
			PersonaID: binary.LittleEndian.Uint16(src[offset : offset+2]),
			Weight:    schema.Ratio(int64(binary.LittleEndian.Uint64(src[offset+2 : offset+10]))),
		}
		offset += routerLegSize
	}
	return u, true
}
