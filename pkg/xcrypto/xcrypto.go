// Package xcrypto collects the constant-time and key-derivation
// primitives shared by the IBE, threshold and DEM layers: HKDF
// expansion, HMAC-SHA256, AES-256-GCM, and constant-time comparison.
package xcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFExpand derives n bytes of key material from ikm under salt/info,
// following the teacher's HKDF(SHA-256) construction.
func HKDFExpand(ikm, salt, info []byte, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("xcrypto: hkdf expand: %w", err)
	}
	return out, nil
}

// HMACSHA256 computes a keyed HMAC-SHA256 tag.
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// ConstantTimeEqual compares two byte slices in constant time.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("xcrypto: random bytes: %w", err)
	}
	return b, nil
}

// AESGCMSeal encrypts plaintext with AES-256-GCM under key (32 bytes),
// a caller-supplied 12-byte nonce, and optional AAD.
func AESGCMSeal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("xcrypto: nonce must be %d bytes", gcm.NonceSize())
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// AESGCMOpen decrypts and authenticates an AES-256-GCM ciphertext.
func AESGCMOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("xcrypto: nonce must be %d bytes", gcm.NonceSize())
	}
	return gcm.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("xcrypto: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Keystream produces n bytes of counter-mode keystream from streamKey
// using AES-CTR seeded at the all-zero nonce offset by a per-message
// salt; used by the HMAC-keyed DEM hybrid (encryption kind 1), which
// needs a stream cipher rather than an authenticated mode since the
// authentication tag is computed separately over the whole frame.
func Keystream(streamKey, nonceSalt []byte, n int) ([]byte, error) {
	block, err := aes.NewCipher(streamKey)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonceSalt)
	stream := cipher.NewCTR(block, iv)
	out := make([]byte, n)
	stream.XORKeyStream(out, out)
	return out, nil
}
