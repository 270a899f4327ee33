// Package dem implements the two data-encapsulation kinds of the
// encrypted object: AES-256-GCM (kind 0) and an HMAC-keyed stream
// hybrid (kind 1), both keyed by the DEM key material the threshold
// layer reconstructs.
package dem

import (
	"errors"
	"fmt"

	"github.com/airloots/seal/pkg/xcrypto"
)

// Kind identifies the ciphertext construction, matching the
// encryption_kind wire field.
type Kind uint8

const (
	KindAESGCM    Kind = 0
	KindHMACHybrid Kind = 1
)

var (
	ErrAuthenticationFailed = errors.New("dem: authentication failed")
	ErrUnknownKind          = errors.New("dem: unknown encryption kind")
)

const (
	nonceSize  = 12
	macKeyLen  = 32
	streamKeyLen = 32
	tagLen     = 32
	splitInfo  = "SEAL-DEM-SPLIT-v0"
)

// AESGCM is the kind-0 ciphertext layout.
type AESGCM struct {
	Nonce [nonceSize]byte
	Blob  []byte
	AAD   []byte
}

// EncryptAESGCM seals plaintext under demKey (32 bytes), sampling a
// fresh random nonce per call so repeated encryptions of the same
// plaintext under the same key yield distinct ciphertexts.
func EncryptAESGCM(demKey, plaintext, aad []byte) (*AESGCM, error) {
	nonce, err := xcrypto.RandomBytes(nonceSize)
	if err != nil {
		return nil, err
	}
	blob, err := xcrypto.AESGCMSeal(demKey, nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	var out AESGCM
	copy(out.Nonce[:], nonce)
	out.Blob = blob
	out.AAD = aad
	return &out, nil
}

// DecryptAESGCM opens a kind-0 ciphertext, returning
// ErrAuthenticationFailed on any tamper (nonce, blob, tag, or AAD).
func DecryptAESGCM(demKey []byte, c *AESGCM) ([]byte, error) {
	pt, err := xcrypto.AESGCMOpen(demKey, c.Nonce[:], c.Blob, c.AAD)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return pt, nil
}

// HMACHybrid is the kind-1 ciphertext layout: a keystream-encrypted
// blob plus a detached HMAC-SHA256 tag over the whole frame.
type HMACHybrid struct {
	Blob []byte
	Tag  [tagLen]byte
	AAD  []byte
}

// EncryptHMACHybrid splits demKey into a mac key and stream key via
// HKDF, XOR-encrypts plaintext with an AES-CTR keystream, and appends
// an HMAC-SHA256 tag over mac_key || header || blob || aad.
func EncryptHMACHybrid(demKey, header, plaintext, aad []byte) (*HMACHybrid, error) {
	macKey, streamKey, err := splitDemKey(demKey)
	if err != nil {
		return nil, err
	}
	nonceSalt, err := xcrypto.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	ks, err := xcrypto.Keystream(streamKey, nonceSalt, len(plaintext))
	if err != nil {
		return nil, err
	}
	blob := make([]byte, len(plaintext)+len(nonceSalt))
	copy(blob, nonceSalt)
	for i := range plaintext {
		blob[len(nonceSalt)+i] = plaintext[i] ^ ks[i]
	}

	tag := tagFor(macKey, header, blob, aad)
	var out HMACHybrid
	out.Blob = blob
	copy(out.Tag[:], tag)
	out.AAD = aad
	return &out, nil
}

// DecryptHMACHybrid verifies the HMAC tag in constant time and then
// reverses the keystream encryption.
func DecryptHMACHybrid(demKey, header []byte, c *HMACHybrid) ([]byte, error) {
	macKey, streamKey, err := splitDemKey(demKey)
	if err != nil {
		return nil, err
	}
	expected := tagFor(macKey, header, c.Blob, c.AAD)
	if !xcrypto.ConstantTimeEqual(expected, c.Tag[:]) {
		return nil, ErrAuthenticationFailed
	}
	if len(c.Blob) < 16 {
		return nil, ErrAuthenticationFailed
	}
	nonceSalt := c.Blob[:16]
	ciphertext := c.Blob[16:]
	ks, err := xcrypto.Keystream(streamKey, nonceSalt, len(ciphertext))
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(ciphertext))
	for i := range ciphertext {
		pt[i] = ciphertext[i] ^ ks[i]
	}
	return pt, nil
}

func splitDemKey(demKey []byte) (macKey, streamKey []byte, err error) {
	expanded, err := xcrypto.HKDFExpand(demKey, nil, []byte(splitInfo), macKeyLen+streamKeyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("dem: splitting key: %w", err)
	}
	return expanded[:macKeyLen], expanded[macKeyLen:], nil
}

func tagFor(macKey, header, blob, aad []byte) []byte {
	msg := make([]byte, 0, len(header)+len(blob)+len(aad))
	msg = append(msg, header...)
	msg = append(msg, blob...)
	msg = append(msg, aad...)
	return xcrypto.HMACSHA256(macKey, msg)
}
