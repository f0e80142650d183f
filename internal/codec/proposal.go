package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const PersonaProposalPayloadSize = 24

// EncodePersonaProposal serializes a proposal into a fixed-size payload.
func EncodePersonaProposal(dst []byte, p schema.PersonaProposal) []byte {
	if cap(dst) < PersonaProposalPayloadSize {
		dst = make([]byte, PersonaProposalPayloadSize)
	} else {
		dst = dst[:PersonaProposalPayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], p.PersonaID)
	binary.LittleEndian.PutUint16(dst[2:4], p.Flags)
	binary.LittleEndian.PutUint32(dst[4:8], p.SymbolID)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(p.Delta))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(p.Confidence))

	return dst
}

// DecodePersonaProposal parses a fixed-size proposal payload.
func DecodePersonaProposal(src []byte) (schema.PersonaProposal, bool) {
	if len(src) < PersonaProposalPayloadSize {
		return schema.PersonaProposal{}, false
	}
	return schema.PersonaProposal{
		PersonaID:  binary.LittleEndian.Uint16(src[0:2]),
		Flags:      binary.LittleEndian.Uint16(src[2:4]),
		SymbolID:   binary.LittleEndian.Uint32(src[4:8]),
		Delta:      schema.Exposure(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Confidence: schema.Ratio(int64(binary.LittleEndian.Uint64(src[16:24]))),
	}, true
}
