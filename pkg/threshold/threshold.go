// Package threshold implements Shamir secret sharing over the
// BLS12-381 scalar field for weighted committees of key servers:
// polynomial sampling, per-slot evaluation, and Lagrange recovery.
// The one-time-pad encryption of each share under IBE-derived pad
// material is done by the caller (the seal CLI), not in this package.
package threshold

import (
	"errors"
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/airloots/seal/pkg/bls"
)

var (
	ErrInsufficientShares    = errors.New("threshold: insufficient shares to reconstruct secret")
	ErrDuplicateShareIndex   = errors.New("threshold: duplicate share index")
	ErrInterpolationFailure  = errors.New("threshold: interpolation failed on degenerate indices")
	ErrInvalidThreshold      = errors.New("threshold: threshold must be between 1 and the number of slots")
)

// Polynomial is P(x) = coeffs[0] + coeffs[1]*x + ... in Fr[x], with
// coeffs[0] the shared secret.
type Polynomial struct {
	coeffs []fr.Element
}

// GeneratePolynomial samples a degree-(threshold-1) polynomial whose
// constant term is the given secret.
func GeneratePolynomial(secret *bls.Scalar, threshold int) (*Polynomial, error) {
	if threshold < 1 {
		return nil, ErrInvalidThreshold
	}
	coeffs := make([]fr.Element, threshold)
	b := secret.Bytes()
	if err := coeffs[0].SetBytesCanonical(b[:]); err != nil {
		return nil, fmt.Errorf("threshold: invalid secret: %w", err)
	}
	for i := 1; i < threshold; i++ {
		if _, err := coeffs[i].SetRandom(); err != nil {
			return nil, fmt.Errorf("threshold: sampling coefficient %d: %w", i, err)
		}
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// Eval evaluates the polynomial at a nonzero share index x (x >= 1).
func (p *Polynomial) Eval(x uint8) *bls.Scalar {
	var xFr fr.Element
	xFr.SetUint64(uint64(x))

	var acc fr.Element
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		acc.Mul(&acc, &xFr)
		acc.Add(&acc, &p.coeffs[i])
	}
	accBytes := acc.Bytes()
	s, _ := bls.ScalarFromBytes(accBytes[:])
	return s
}

// Share is one slot's evaluation point and value, addressed by its
// positional share_index within the encrypted object's services list.
type Share struct {
	Index uint8
	Value *bls.Scalar
}

// GenerateShares evaluates the polynomial at every distinct index in
// indices, which may repeat a server's weight by listing multiple
// indices for the same logical server (see open question (a)).
func GenerateShares(poly *Polynomial, indices []uint8) ([]Share, error) {
	seen := make(map[uint8]bool, len(indices))
	shares := make([]Share, 0, len(indices))
	for _, idx := range indices {
		if idx == 0 {
			return nil, fmt.Errorf("threshold: share index must be nonzero")
		}
		if seen[idx] {
			return nil, ErrDuplicateShareIndex
		}
		seen[idx] = true
		shares = append(shares, Share{Index: idx, Value: poly.Eval(idx)})
	}
	return shares, nil
}

// RecoverSecret combines threshold-many distinct (index, value) shares
// via Lagrange interpolation at x=0. When more than needed are
// supplied, the smallest share_index values are used, matching the
// tie-break convention of the wire format (any subset is equally
// correct cryptographically).
func RecoverSecret(shares []Share, threshold int) (*bls.Scalar, error) {
	if threshold < 1 {
		return nil, ErrInvalidThreshold
	}
	if len(shares) < threshold {
		return nil, ErrInsufficientShares
	}

	sorted := append([]Share(nil), shares...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	used := sorted[:threshold]
	indices := make([]uint8, len(used))
	seen := make(map[uint8]bool, len(used))
	for i, s := range used {
		if seen[s.Index] {
			return nil, ErrDuplicateShareIndex
		}
		seen[s.Index] = true
		indices[i] = s.Index
	}

	var secret fr.Element
	for _, s := range used {
		lambda, err := lagrangeCoefficientAtZero(s.Index, indices)
		if err != nil {
			return nil, err
		}
		var sv fr.Element
		b := s.Value.Bytes()
		if err := sv.SetBytesCanonical(b[:]); err != nil {
			return nil, fmt.Errorf("threshold: invalid share value: %w", err)
		}
		var term fr.Element
		term.Mul(lambda, &sv)
		secret.Add(&secret, &term)
	}

	out := secret.Bytes()
	return bls.ScalarFromBytes(out[:])
}

// lagrangeCoefficientAtZero computes lambda_i(0) for participant i
// against the full index set, over Fr.
func lagrangeCoefficientAtZero(i uint8, indices []uint8) (*fr.Element, error) {
	var iFr fr.Element
	iFr.SetUint64(uint64(i))

	numerator := new(fr.Element).SetOne()
	denominator := new(fr.Element).SetOne()

	for _, j := range indices {
		if j == i {
			continue
		}
		var jFr fr.Element
		jFr.SetUint64(uint64(j))

		negJ := new(fr.Element).Neg(&jFr)
		numerator.Mul(numerator, negJ)

		diff := new(fr.Element).Sub(&iFr, &jFr)
		if diff.IsZero() {
			return nil, ErrInterpolationFailure
		}
		denominator.Mul(denominator, diff)
	}

	if denominator.IsZero() {
		return nil, ErrInterpolationFailure
	}
	lambda := new(fr.Element).Inverse(denominator)
	lambda.Mul(lambda, numerator)
	return lambda, nil
}
