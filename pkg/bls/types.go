// Package bls wraps BLS12-381 group and scalar arithmetic for the
// identity-based encryption and threshold layers.
package bls

import (
	"errors"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var (
	ErrInvalidPoint  = errors.New("bls: invalid or non-subgroup point")
	ErrInvalidScalar = errors.New("bls: invalid scalar encoding")
)

// Scalar is an element of the BLS12-381 scalar field Fr.
type Scalar struct {
	el fr.Element
}

// RandomScalar samples a uniformly random nonzero scalar.
func RandomScalar() (*Scalar, error) {
	var s Scalar
	for {
		if _, err := s.el.SetRandom(); err != nil {
			return nil, err
		}
		if !s.el.IsZero() {
			return &s, nil
		}
	}
}

// ScalarFromBytes decodes 32 big-endian bytes into a canonically
// reduced scalar. Non-canonical encodings are rejected.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != 32 {
		return nil, ErrInvalidScalar
	}
	var s Scalar
	if err := s.el.SetBytesCanonical(b); err != nil {
		return nil, ErrInvalidScalar
	}
	return &s, nil
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (s *Scalar) Bytes() [32]byte {
	return s.el.Bytes()
}

func (s *Scalar) fr() *fr.Element { return &s.el }

// IsZero reports whether the scalar is the additive identity.
func (s *Scalar) IsZero() bool { return s.el.IsZero() }

// Zeroize overwrites the scalar's in-memory representation.
func (s *Scalar) Zeroize() {
	s.el.SetZero()
}

// G1Point is a point on the G1 subgroup, compressed on the wire.
type G1Point struct {
	p bls12381.G1Affine
}

// G2Point is a point on the G2 subgroup, compressed on the wire.
type G2Point struct {
	p bls12381.G2Affine
}

// G1Generator and G2Generator are the canonical BLS12-381 generators.
var (
	G1Generator *G1Point
	G2Generator *G2Point
)

func init() {
	_, _, g1Gen, g2Gen := bls12381.Generators()
	G1Generator = &G1Point{p: g1Gen}
	G2Generator = &G2Point{p: g2Gen}
}

// Marshal returns the 48-byte compressed encoding of a G1 point.
func (p *G1Point) Marshal() []byte {
	b := p.p.Bytes()
	return b[:]
}

// Marshal returns the 96-byte compressed encoding of a G2 point.
func (p *G2Point) Marshal() []byte {
	b := p.p.Bytes()
	return b[:]
}

// G1FromBytes decodes and subgroup-checks a compressed G1 point.
// The identity point is accepted only when allowIdentity is true.
func G1FromBytes(b []byte, allowIdentity bool) (*G1Point, error) {
	var p bls12381.G1Affine
	if _, err := p.SetBytes(b); err != nil {
		return nil, ErrInvalidPoint
	}
	if p.IsInfinity() && !allowIdentity {
		return nil, ErrInvalidPoint
	}
	return &G1Point{p: p}, nil
}

// G2FromBytes decodes and subgroup-checks a compressed G2 point.
func G2FromBytes(b []byte, allowIdentity bool) (*G2Point, error) {
	var p bls12381.G2Affine
	if _, err := p.SetBytes(b); err != nil {
		return nil, ErrInvalidPoint
	}
	if p.IsInfinity() && !allowIdentity {
		return nil, ErrInvalidPoint
	}
	return &G2Point{p: p}, nil
}

// IsZero reports whether the point is the group identity.
func (p *G1Point) IsZero() bool { return p.p.IsInfinity() }
func (p *G2Point) IsZero() bool { return p.p.IsInfinity() }

// Equal reports whether two G1 points are the same point.
func (p *G1Point) Equal(o *G1Point) bool { return p.p.Equal(&o.p) }

// Equal reports whether two G2 points are the same point.
func (p *G2Point) Equal(o *G2Point) bool { return p.p.Equal(&o.p) }
