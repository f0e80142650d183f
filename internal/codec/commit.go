package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const CommitRecordPayloadSize = 32 + 2*schema.HashSize

// EncodeCommitRecord serializes a commit record into a fixed-size payload.
func EncodeCommitRecord(dst []byte, c schema.CommitRecord) []byte {
	if cap(dst) < CommitRecordPayloadSize {
		dst = make([]byte, CommitRecordPayloadSize)
	} else {
		dst = dst[:CommitRecordPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], c.DecisionID)
	binary.LittleEndian.PutUint32(dst[8:12], c.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], c.Flags)
	binary.LittleEndian.PutUint16(dst[14:16], c.Reserved)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(c.Delta))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(c.NewExposure))
	copy(dst[32:32+schema.HashSize], c.PrevHash[:])
	copy(dst[32+schema.HashSize:CommitRecordPayloadSize], c.RecordHash[:])

	return dst
}

// DecodeCommitRecord parses a fixed-size commit record payload.
func DecodeCommitRecord(src []byte) (schema.CommitRecord, bool) {
	if len(src) < CommitRecordPayloadSize {
		return schema.CommitRecord{}, false
	}
	c := schema.CommitRecord{
		DecisionID:  binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:    binary.LittleEndian.Uint32(src[8:12]),
		Flags:       binary.LittleEndian.Uint16(src[12:14]),
		Reserved:    binary.LittleEndian.Uint16(src[14:16]),
		Delta:       schema.Exposure(int64(binary.LittleEndian.Uint64(src[16:24]))),
		NewExposure: schema.Exposure(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}
	copy(c.PrevHash[:], src[32:32+schema.HashSize])
	copy(c.RecordHash[:], src[32+schema.HashSize:CommitRecordPayloadSize])
	return c, true
}
