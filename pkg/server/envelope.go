package server

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/airloots/seal/pkg/xcrypto"
)

const (
	envelopeInfo      = "SEAL-RESPONSE-ENVELOPE-v0"
	envelopeNonceInfo = "SEAL-RESPONSE-ENVELOPE-NONCE-v0"
	nonceSaltLen      = 16
)

// sealEnvelope encrypts plaintext under a key derived from encKey,
// binding the nonce to sessionPK, per pipeline stage 8. The nonce
// actually fed to the AEAD is HKDF-derived from sessionPK and a fresh
// random salt — not a byte-truncated copy of the binding, which would
// let the salt fall outside the copied window and leave every
// response under a given session reusing the same nonce.
func sealEnvelope(encKey, sessionPK, plaintext []byte) (*envelopeWire, error) {
	key, err := xcrypto.HKDFExpand(encKey, nil, []byte(envelopeInfo), chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("server: deriving envelope key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("server: building AEAD: %w", err)
	}

	salt := make([]byte, nonceSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("server: sampling nonce salt: %w", err)
	}
	binding := append(append([]byte{}, sessionPK...), salt...)
	nonce, err := xcrypto.HKDFExpand(binding, nil, []byte(envelopeNonceInfo), aead.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("server: deriving envelope nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, sessionPK)
	return &envelopeWire{Nonce: append(salt, nonce...), Ciphertext: ciphertext}, nil
}

// openEnvelopeForTest decrypts an envelope built by sealEnvelope, used
// by server tests to assert the response round-trips without a real
// client SDK in the test tree.
func openEnvelopeForTest(encKey, sessionPK []byte, env *envelopeWire) ([]byte, error) {
	key, err := xcrypto.HKDFExpand(encKey, nil, []byte(envelopeInfo), chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) < nonceSaltLen+aead.NonceSize() {
		return nil, fmt.Errorf("server: malformed envelope nonce")
	}
	nonce := env.Nonce[nonceSaltLen:]
	return aead.Open(nil, nonce, env.Ciphertext, sessionPK)
}
