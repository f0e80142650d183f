package authority

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

var testSecret = []byte("gate-test-secret")

func commitRequest(action, actorID string, payload []byte) CommitRequest {
	sig := Sign(testSecret, action, actorID, payload, "pk-test", "")
	return CommitRequest{
		Action:    action,
		ActorID:   actorID,
		Payload:   payload,
		Signature: &sig,
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte("delta=100")
	sig := Sign(testSecret, "DECISION_COMMIT", "ALPHA", payload, "pk", "")

	assert.True(t, sig.Verify(testSecret, "DECISION_COMMIT", "ALPHA", payload))
	assert.False(t, sig.Verify(testSecret, "DECISION_COMMIT", "GUARDIAN", payload))
	assert.False(t, sig.Verify(testSecret, "CONFIG_WRITE", "ALPHA", payload))
	assert.False(t, sig.Verify(testSecret, "DECISION_COMMIT", "ALPHA", []byte("delta=200")))
	assert.False(t, sig.Verify([]byte("other"), "DECISION_COMMIT", "ALPHA", payload))
}

func TestIdentityFingerprintPrefersPubKey(t *testing.T) {
	sig := Signature{PubKey: "pk", KeyID: "kid"}
	fp, err := sig.IdentityFingerprint()
	require.NoError(t, err)
	assert.Contains(t, fp, "pubkey:")

	sig = Signature{KeyID: "kid"}
	fp, err = sig.IdentityFingerprint()
	require.NoError(t, err)
	assert.Contains(t, fp, "key_id:")

	_, err = Signature{}.IdentityFingerprint()
	assert.True(t, errors.Is(err, exception.ErrSignatureIdentity))
}

func TestAuthorizeSuccessAppendsRecord(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)

	record, err := gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p1")))

	require.NoError(t, err)
	assert.Equal(t, GenesisHash, record.PrevHash)
	assert.NotEmpty(t, record.RecordHash)
	assert.Equal(t, 1, gate.Log().Len())
	assert.Equal(t, record.RecordHash, gate.Log().LastHash())
}

func TestAuthorizeRejectsNonAlpha(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)

	_, err := gate.Authorize(commitRequest("DECISION_COMMIT", "GUARDIAN", []byte("p")))

	assert.True(t, errors.Is(err, exception.ErrAlphaRequired))
	assert.Zero(t, gate.Log().Len())
}

func TestAuthorizeRejectsMissingSignature(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)

	_, err := gate.Authorize(CommitRequest{Action: "DECISION_COMMIT", ActorID: "ALPHA"})

	assert.True(t, errors.Is(err, exception.ErrSignatureRequired))
}

func TestAuthorizeRejectsAnonymousSignature(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)
	sig := Sign(testSecret, "DECISION_COMMIT", "ALPHA", []byte("p"), "", "")

	_, err := gate.Authorize(CommitRequest{
		Action:    "DECISION_COMMIT",
		ActorID:   "ALPHA",
		Payload:   []byte("p"),
		Signature: &sig,
	})

	assert.True(t, errors.Is(err, exception.ErrSignatureIdentity))
}

func TestAuthorizeRejectsBadMAC(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)
	sig := Sign([]byte("wrong-secret"), "DECISION_COMMIT", "ALPHA", []byte("p"), "pk", "")

	_, err := gate.Authorize(CommitRequest{
		Action:    "DECISION_COMMIT",
		ActorID:   "ALPHA",
		Payload:   []byte("p"),
		Signature: &sig,
	})

	assert.True(t, errors.Is(err, exception.ErrSignatureInvalid))
	assert.Zero(t, gate.Log().Len())
}

func TestAuthorizeRejectsUnknownAction(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)

	_, err := gate.Authorize(commitRequest("SELF_PROMOTE", "ALPHA", []byte("p")))

	assert.True(t, errors.Is(err, exception.ErrPolicyDenied))
}

func TestPolicyAdvisoryActorsNeverCommit(t *testing.T) {
	policy := DefaultPolicy()

	for actor := range policy.AdvisoryActors {
		assert.Falsef(t, policy.Allow("DECISION_COMMIT", actor), "actor %s", actor)
	}
	assert.True(t, policy.Allow("DECISION_COMMIT", "ALPHA"))
}

func TestChainLinksAndVerifies(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)

	first, err := gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p1")))
	require.NoError(t, err)
	second, err := gate.Authorize(commitRequest("POSITION_CHANGE", "ALPHA", []byte("p2")))
	require.NoError(t, err)

	assert.Equal(t, first.RecordHash, second.PrevHash)
	require.NoError(t, gate.Log().VerifyChain())
}

func TestVerifyChainDetectsTamper(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)
	_, err := gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p1")))
	require.NoError(t, err)
	_, err = gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p2")))
	require.NoError(t, err)

	records := gate.Log().Records()
	records[0].Action = "CONFIG_WRITE"

	err = VerifyRecords(records)
	assert.True(t, errors.Is(err, exception.ErrChainBroken))
}

func TestAnchorExtendsPersistedChain(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)
	_, err := gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p1")))
	require.NoError(t, err)
	tip := gate.Log().LastHash()

	resumed := NewLog()
	resumed.Anchor(tip)
	assert.Equal(t, tip, resumed.LastHash())

	resumedGate := NewGate(DefaultPolicy(), testSecret, resumed)
	record, err := resumedGate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p2")))
	require.NoError(t, err)
	assert.Equal(t, tip, record.PrevHash)
	require.NoError(t, resumed.VerifyChain())
}

func TestAnchorIgnoredOnNonEmptyLog(t *testing.T) {
	gate := NewGate(DefaultPolicy(), testSecret, nil)
	_, err := gate.Authorize(commitRequest("DECISION_COMMIT", "ALPHA", []byte("p1")))
	require.NoError(t, err)

	tip := gate.Log().LastHash()
	gate.Log().Anchor("deadbeef")
	assert.Equal(t, tip, gate.Log().LastHash())
}

func TestAppendRejectsBrokenLink(t *testing.T) {
	log := NewLog()
	record := NewRecord(1, "DECISION_COMMIT", "ALPHA", []byte("p"), "mac", "fp", "not-the-tip")

	err := log.Append(record)
	assert.True(t, errors.Is(err, exception.ErrChainBroken))
}
