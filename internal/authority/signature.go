package authority

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Signature is the evidence-grade signature container. The identity
// anchor is a pubkey (preferred) or a key ID; the MAC binds action, actor
// and payload so a signature cannot be replayed across actors.
type Signature struct {
	MAC    string
	PubKey string
	KeyID  string
}

// Sign computes an HMAC-SHA256 signature over the canonical message.
func Sign(secret []byte, action, actorID string, payload []byte, pubKey, keyID string) Signature {
	mac := hmac.New(sha256.New, secret)
	writeMessage(mac, action, actorID, payload)
	return Signature{
		MAC:    hex.EncodeToString(mac.Sum(nil)),
		PubKey: pubKey,
		KeyID:  keyID,
	}
}

// Verify checks the MAC against the canonical message in constant time.
func (s Signature) Verify(secret []byte, action, actorID string, payload []byte) bool {
	mac := hmac.New(sha256.New, secret)
	writeMessage(mac, action, actorID, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(s.MAC), []byte(expected))
}

// IdentityFingerprint hashes the identity anchor for evidence logging.
// Prefers the pubkey, falls back to the key ID.
func (s Signature) IdentityFingerprint() (string, error) {
	if s.PubKey != "" {
		sum := sha256.Sum256([]byte(s.PubKey))
		return "pubkey:" + hex.EncodeToString(sum[:]), nil
	}
	if s.KeyID != "" {
		sum := sha256.Sum256([]byte(s.KeyID))
		return "key_id:" + hex.EncodeToString(sum[:]), nil
	}
	return "", errors.Wrap(exception.ErrSignatureIdentity, "pubkey or key id required")
}

// HasIdentity reports whether the signature binds to an identity anchor.
func (s Signature) HasIdentity() bool {
	return s.PubKey != "" || s.KeyID != ""
}

func writeMessage(mac interface{ Write([]byte) (int, error) }, action, actorID string, payload []byte) {
	_, _ = mac.Write([]byte(action))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(actorID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write(payload)
}
