// Package ibe implements Boneh-Franklin identity-based encryption over
// the BLS12-381 pairing: key generation, identity-key extraction, and
// the encapsulate/decapsulate pair that the threshold and DEM layers
// build on.
package ibe

import (
	"errors"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/xcrypto"
)

var (
	ErrInvalidIdentity = errors.New("ibe: identity must be non-empty")
	ErrInvalidPoint    = bls.ErrInvalidPoint
	ErrInvalidScalar   = bls.ErrInvalidScalar
)

const (
	h2Info   = "SEAL-BF-H2-v0"
	h2KeyLen = 32
	h3Info   = "SEAL-BF-H3-v0"
	h3KeyLen = 32
)

// PrivateKey is a master IBE secret scalar sk.
type PrivateKey struct {
	sk *bls.Scalar
}

// PublicKey is the corresponding master public key pk = sk*G2.
type PublicKey struct {
	Point *bls.G2Point
}

// KeyGen samples a fresh master key pair.
func KeyGen() (*PrivateKey, *PublicKey, error) {
	sk, err := bls.RandomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("ibe: keygen: %w", err)
	}
	pub := &PublicKey{Point: bls.ScalarMulG2(bls.G2Generator, sk)}
	return &PrivateKey{sk: sk}, pub, nil
}

// PrivateKeyFromScalar wraps an existing scalar as a master private key,
// used by the Plain/Derived/Imported master-key variants.
func PrivateKeyFromScalar(sk *bls.Scalar) *PrivateKey {
	return &PrivateKey{sk: sk}
}

// Scalar returns the underlying master scalar, for operator tooling
// (the seal CLI's genkey command) that needs to print or export it.
func (k *PrivateKey) Scalar() *bls.Scalar {
	return k.sk
}

// PublicKeyFromScalar derives the master public key for a scalar
// without retaining the private key, used when a server only needs to
// publish its public key.
func PublicKeyFromScalar(sk *bls.Scalar) *PublicKey {
	return &PublicKey{Point: bls.ScalarMulG2(bls.G2Generator, sk)}
}

// fullIdentity concatenates package_id and inner_id into the byte
// string hashed to a curve point, per the wire-format definition.
func fullIdentity(packageID, innerID []byte) []byte {
	out := make([]byte, 0, len(packageID)+len(innerID))
	out = append(out, packageID...)
	out = append(out, innerID...)
	return out
}

// H1 hashes a full identity to a G1 point.
func H1(packageID, innerID []byte) (*bls.G1Point, error) {
	if len(innerID) == 0 {
		return nil, ErrInvalidIdentity
	}
	return bls.HashToG1(fullIdentity(packageID, innerID))
}

// H2 maps a GT element to DEM key material via HKDF-extract, domain
// separated from H1/H3 so the same randomness cannot be confused
// across derivation contexts.
func H2(gt *bls12381.GT) ([]byte, error) {
	b := gt.Bytes()
	return xcrypto.HKDFExpand(b[:], nil, []byte(h2Info), h2KeyLen)
}

// Extract computes the user secret key usk = sk * H1(full_id) for the
// given master private key and identity.
func Extract(sk *PrivateKey, packageID, innerID []byte) (*bls.G1Point, error) {
	h1, err := H1(packageID, innerID)
	if err != nil {
		return nil, err
	}
	return bls.ScalarMulG1(h1, sk.sk), nil
}

// Encapsulation is the result of Encapsulate: the per-ciphertext G2
// randomness and the derived DEM key material.
type Encapsulation struct {
	Point       *bls.G2Point
	KeyMaterial []byte
}

// Encapsulate takes the ephemeral randomness r, computes the shared GT
// value gid^r, and derives DEM key material from it. r is supplied by
// the caller's secret-sharing layer as the polynomial constant term,
// not generated here, so Encapsulate takes r explicitly.
func Encapsulate(pk *PublicKey, packageID, innerID []byte, r *bls.Scalar) (*Encapsulation, error) {
	h1, err := H1(packageID, innerID)
	if err != nil {
		return nil, err
	}
	gid, err := bls.Pair(h1, pk.Point)
	if err != nil {
		return nil, fmt.Errorf("ibe: pairing: %w", err)
	}
	gidR := gidPow(&gid, r)
	keyMaterial, err := H2(gidR)
	if err != nil {
		return nil, err
	}
	encapsulation := bls.ScalarMulG2(bls.G2Generator, r)
	return &Encapsulation{Point: encapsulation, KeyMaterial: keyMaterial}, nil
}

// Decapsulate recovers the DEM key material from a user secret key and
// the encapsulation point: H2(e(usk, encapsulation)).
func Decapsulate(usk *bls.G1Point, encapsulation *bls.G2Point) ([]byte, error) {
	gt, err := bls.Pair(usk, encapsulation)
	if err != nil {
		return nil, fmt.Errorf("ibe: pairing: %w", err)
	}
	return H2(&gt)
}

// DeriveDEMKey computes the threshold layer's final symmetric key,
// H3(full_id, serialize(encapsulation)): once a client has recovered
// the shared secret s = P(0) and re-derived encapsulation = s*G2, this
// is the key that actually keys the DEM, binding it to both the
// policy identity and the recovered encapsulation point.
func DeriveDEMKey(packageID, innerID []byte, encapsulation *bls.G2Point) ([]byte, error) {
	ikm := append(fullIdentity(packageID, innerID), encapsulation.Marshal()...)
	return xcrypto.HKDFExpand(ikm, nil, []byte(h3Info), h3KeyLen)
}

// gidPow raises a GT element to a scalar power via the curve library's
// exponentiation in the multiplicative group.
func gidPow(gt *bls12381.GT, scalar *bls.Scalar) *bls12381.GT {
	b := scalar.Bytes()
	k := new(big.Int).SetBytes(b[:])
	var out bls12381.GT
	out.Exp(*gt, k)
	return &out
}
