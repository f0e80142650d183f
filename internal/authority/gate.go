package authority

import (
	"time"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// CommitRequest is the only unit the gate accepts.
type CommitRequest struct {
	Action    string
	ActorID   string
	Payload   []byte
	Signature *Signature
}

// Gate is the canonical enforcement choke-point. Nothing proceeds unless
// alpha is present, a signature is present, the signature binds to a
// stable identity anchor, the signature verifies, and policy allows the
// action. Logging happens only after authorization succeeds.
type Gate struct {
	policy Policy
	secret []byte
	log    *Log
	now    func() time.Time
}

// NewGate creates a gate around a policy, secret and decision log.
func NewGate(policy Policy, secret []byte, log *Log) *Gate {
	if log == nil {
		log = NewLog()
	}
	return &Gate{policy: policy, secret: secret, log: log, now: time.Now}
}

// Log exposes the gate's decision log.
func (g *Gate) Log() *Log {
	return g.log
}

// Authorize is the single entry-point for permissioning. It returns the
// appended evidence record on success and a typed error on any failure.
func (g *Gate) Authorize(req CommitRequest) (Record, error) {
	if !g.policy.IsAlpha(req.ActorID) {
		return Record{}, errors.Wrapf(exception.ErrAlphaRequired, "actor: %s", req.ActorID)
	}
	if req.Signature == nil {
		return Record{}, errors.Wrapf(exception.ErrSignatureRequired, "action: %s", req.Action)
	}
	if !req.Signature.HasIdentity() {
		return Record{}, errors.Wrap(exception.ErrSignatureIdentity, "pubkey (preferred) or key id required")
	}
	if !req.Signature.Verify(g.secret, req.Action, req.ActorID, req.Payload) {
		return Record{}, errors.Wrapf(exception.ErrSignatureInvalid, "action: %s", req.Action)
	}
	if !g.policy.Allow(req.Action, req.ActorID) {
		return Record{}, errors.Wrapf(exception.ErrPolicyDenied, "action: %s, actor: %s", req.Action, req.ActorID)
	}

	fingerprint, err := req.Signature.IdentityFingerprint()
	if err != nil {
		return Record{}, err
	}

	record := NewRecord(
		g.now().UTC().UnixNano(),
		req.Action,
		req.ActorID,
		req.Payload,
		req.Signature.MAC,
		fingerprint,
		g.log.LastHash(),
	)
	if err := g.log.Append(record); err != nil {
		return Record{}, err
	}
	return record, nil
}
