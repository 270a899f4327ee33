// Package session implements the session-certificate and
// request-signature validation of key-server pipeline stages 2-3: the
// wallet-signed delegation that authorizes a short-lived Ed25519
// session key to request decryption shares.
package session

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/airloots/seal/pkg/sealerrors"
)

// Certificate is the wallet-signed delegation of spec §3.
type Certificate struct {
	Address         [32]byte
	PackageID       [32]byte
	SessionPK       ed25519.PublicKey // 32 bytes
	TTLMinutes      uint16
	CreatedAtMillis int64
	MVRName         string // optional
	WalletSignature []byte
}

// clockSkewTolerance bounds how far created_at may lead server time.
// How far it may lag is bounded only by the certificate's TTL.
const clockSkewTolerance = 5 * time.Minute

// PersonalMessage renders the canonical template a wallet signs to
// delegate to a session key, locking open question (b): the package
// name used is mvr_name when present, else the hex-encoded
// package_id.
func PersonalMessage(cert *Certificate) string {
	name := cert.MVRName
	if name == "" {
		name = "0x" + hex.EncodeToString(cert.PackageID[:])
	}
	return fmt.Sprintf(
		"Seal access for %s, session key %s, valid %d minutes from %s",
		name,
		"0x"+hex.EncodeToString(cert.SessionPK),
		cert.TTLMinutes,
		strconv.FormatInt(cert.CreatedAtMillis, 10),
	)
}

// WalletVerifier verifies a wallet signature over the personal-message
// bytes for a given address. It is an interface because the signing
// scheme is the external platform's account model, not Seal's.
// cmd/seal-server wires Ed25519Verifier, which treats the address as
// an Ed25519 public key; tests use a stub.
type WalletVerifier interface {
	Verify(address [32]byte, message []byte, signature []byte) bool
}

// ValidateCertificate checks the personal-message wallet signature and
// the TTL window against now, returning InvalidSignature or
// ExpiredSession on failure.
func ValidateCertificate(cert *Certificate, verifier WalletVerifier, now time.Time) error {
	msg := PersonalMessage(cert)
	if !verifier.Verify(cert.Address, []byte(msg), cert.WalletSignature) {
		return sealerrors.New(sealerrors.InvalidSignature, "wallet signature over session certificate is invalid")
	}

	createdAt := time.UnixMilli(cert.CreatedAtMillis)
	skew := now.Sub(createdAt)
	if skew < -clockSkewTolerance {
		return sealerrors.New(sealerrors.ExpiredSession, "certificate created_at is too far in the future")
	}
	expiry := createdAt.Add(time.Duration(cert.TTLMinutes) * time.Minute)
	if now.After(expiry) {
		return sealerrors.New(sealerrors.ExpiredSession, "certificate has expired")
	}
	return nil
}

// ValidateRequestSignature verifies the Ed25519 signature made by
// session_pk over (ptb || enc_key || certificate digest), per pipeline
// stage 3.
func ValidateRequestSignature(cert *Certificate, ptb []byte, requestSignature []byte) error {
	if len(cert.SessionPK) != ed25519.PublicKeySize {
		return sealerrors.New(sealerrors.MalformedRequest, "session_pk must be 32 bytes")
	}
	digest := Digest(cert)
	msg := make([]byte, 0, len(ptb)+len(cert.SessionPK)+len(digest))
	msg = append(msg, ptb...)
	msg = append(msg, cert.SessionPK...)
	msg = append(msg, digest...)

	if !ed25519.Verify(cert.SessionPK, msg, requestSignature) {
		return sealerrors.New(sealerrors.InvalidSignature, "request signature is invalid")
	}
	return nil
}

// Digest returns a stable byte digest of the certificate's fields,
// used as the binding value in the request-signature message.
func Digest(cert *Certificate) []byte {
	d := make([]byte, 0, 32+32+32+2+8+len(cert.MVRName)+len(cert.WalletSignature))
	d = append(d, cert.Address[:]...)
	d = append(d, cert.PackageID[:]...)
	d = append(d, cert.SessionPK...)
	d = append(d, byte(cert.TTLMinutes>>8), byte(cert.TTLMinutes))
	for i := 7; i >= 0; i-- {
		d = append(d, byte(cert.CreatedAtMillis>>(8*i)))
	}
	d = append(d, []byte(cert.MVRName)...)
	d = append(d, cert.WalletSignature...)
	return d
}
