package authority

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// GenesisHash anchors the decision chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Record is one authorized commit in the hash chain.
type Record struct {
	Ts           int64
	Action       string
	ActorID      string
	PayloadHash  string
	SignatureMAC string
	Fingerprint  string
	PrevHash     string
	RecordHash   string
}

// NewRecord builds a chained record and seals its hash.
func NewRecord(ts int64, action, actorID string, payload []byte, signatureMAC, fingerprint, prevHash string) Record {
	payloadSum := sha256.Sum256(payload)
	r := Record{
		Ts:           ts,
		Action:       action,
		ActorID:      actorID,
		PayloadHash:  hex.EncodeToString(payloadSum[:]),
		SignatureMAC: signatureMAC,
		Fingerprint:  fingerprint,
		PrevHash:     prevHash,
	}
	r.RecordHash = r.hash()
	return r
}

// hash digests the record fields in a fixed order.
func (r Record) hash() string {
	h := sha256.New()
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(r.Ts))
	_, _ = h.Write(ts[:])
	for _, field := range []string{r.Action, r.ActorID, r.PayloadHash, r.SignatureMAC, r.Fingerprint, r.PrevHash} {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Log is the in-memory decision chain. Each record hashes its
// predecessor so tampering breaks verification.
type Log struct {
	records []Record
	anchor  string
}

// NewLog creates an empty decision log.
func NewLog() *Log {
	return &Log{anchor: GenesisHash}
}

// Anchor sets the chain tip an empty log continues from. Recovery uses
// it to extend a persisted chain instead of restarting at genesis.
func (l *Log) Anchor(tip string) {
	if len(l.records) == 0 && tip != "" {
		l.anchor = tip
	}
}

// LastHash returns the chain tip, or the anchor when empty.
func (l *Log) LastHash() string {
	if len(l.records) == 0 {
		if l.anchor == "" {
			return GenesisHash
		}
		return l.anchor
	}
	return l.records[len(l.records)-1].RecordHash
}

// Append adds a record to the chain. The record must extend the tip.
func (l *Log) Append(r Record) error {
	if r.PrevHash != l.LastHash() {
		return errors.Wrapf(exception.ErrChainBroken, "prev: %s, tip: %s", r.PrevHash, l.LastHash())
	}
	l.records = append(l.records, r)
	return nil
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of the chain.
func (l *Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// VerifyChain re-hashes every record and checks linkage.
func (l *Log) VerifyChain() error {
	prev := l.anchor
	if prev == "" {
		prev = GenesisHash
	}
	for i, r := range l.records {
		if r.PrevHash != prev {
			return errors.Wrapf(exception.ErrChainBroken, "record %d prev hash mismatch", i)
		}
		if r.hash() != r.RecordHash {
			return errors.Wrapf(exception.ErrChainBroken, "record %d hash mismatch", i)
		}
		prev = r.RecordHash
	}
	return nil
}

// VerifyRecords checks linkage of an externally loaded chain.
func VerifyRecords(records []Record) error {
	l := Log{records: records}
	return l.VerifyChain()
}
