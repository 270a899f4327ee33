package bls

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

const (
	g1DST = "SEAL-BF-G1-v0"
)

// ScalarMulG1 computes scalar*point on G1.
func ScalarMulG1(point *G1Point, scalar *Scalar) *G1Point {
	if point == nil {
		point = &G1Point{}
		point.p.SetInfinity()
	}
	var sb big.Int
	scalar.fr().BigInt(&sb)
	var out bls12381.G1Affine
	out.ScalarMultiplication(&point.p, &sb)
	return &G1Point{p: out}
}

// ScalarMulG2 computes scalar*point on G2.
func ScalarMulG2(point *G2Point, scalar *Scalar) *G2Point {
	if point == nil {
		point = &G2Point{}
		point.p.SetInfinity()
	}
	var sb big.Int
	scalar.fr().BigInt(&sb)
	var out bls12381.G2Affine
	out.ScalarMultiplication(&point.p, &sb)
	return &G2Point{p: out}
}

// AddG1 adds two G1 points.
func AddG1(a, b *G1Point) *G1Point {
	var out bls12381.G1Affine
	out.Add(&a.p, &b.p)
	return &G1Point{p: out}
}

// AddG2 adds two G2 points.
func AddG2(a, b *G2Point) *G2Point {
	var out bls12381.G2Affine
	out.Add(&a.p, &b.p)
	return &G2Point{p: out}
}

// HashToG1 hashes an arbitrary identity string to a G1 point using the
// standard XMD:SHA-256 SSWU suite, domain-separated for Seal so that the
// resulting points cannot be reinterpreted as BLS signature hashes.
func HashToG1(fullID []byte) (*G1Point, error) {
	p, err := bls12381.HashToG1(fullID, []byte(g1DST))
	if err != nil {
		return nil, err
	}
	return &G1Point{p: p}, nil
}

// Pair evaluates the optimal-ate pairing e(a, b) in GT.
func Pair(a *G1Point, b *G2Point) (bls12381.GT, error) {
	return bls12381.Pair([]bls12381.G1Affine{a.p}, []bls12381.G2Affine{b.p})
}
