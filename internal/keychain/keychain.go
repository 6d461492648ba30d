// Package keychain provides the signer internal/transport uses to tag and
// check every outbound Capsule. Full cryptographic authenticity of
// payloads is out of scope (see the module's non-goals): every node is
// constructed with the same well-known shared secret, so Verify catches
// accidental corruption and wire-format mistakes, not a malicious sender.
//
// Grounded on the teacher's internal/auth.HMACTokenVerifier: same HS256
// shared-secret construction, reused here for message signing rather than
// WebSocket token verification.
package keychain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidSignature is returned by Verify when the signature doesn't
// match the payload under the configured secret.
var ErrInvalidSignature = errors.New("keychain: invalid signature")

// KeyChain signs and verifies Capsule payloads with a shared HMAC secret.
type KeyChain struct {
	secret []byte
}

// New constructs a KeyChain from a shared secret. An empty secret is
// permitted (signatures are then an HMAC under an empty key, still
// deterministic per prefix and payload): the non-goal this
// package satisfies is exercising a sign/verify call path, not defending
// against a forged sender.
func New(secret string) *KeyChain {
	return &KeyChain{secret: []byte(secret)}
}

// Sign returns an HMAC-SHA256 tag over prefix and payload.
func (k *KeyChain) Sign(prefix string, payload []byte) []byte {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(prefix))
	mac.Write(payload)
	return mac.Sum(nil)
}

// Verify reports whether sig is the correct signature for prefix and
// payload.
func (k *KeyChain) Verify(prefix string, payload, sig []byte) error {
	want := k.Sign(prefix, payload)
	if !hmac.Equal(want, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// SignBase64 returns Sign's output as a base64 string, convenient for log
// lines.
func (k *KeyChain) SignBase64(prefix string, payload []byte) string {
	return base64.StdEncoding.EncodeToString(k.Sign(prefix, payload))
}
