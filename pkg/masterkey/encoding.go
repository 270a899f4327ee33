package masterkey

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/airloots/seal/pkg/bls"
)

// scalarFromHex parses a 0x-optional hex-encoded 32-byte scalar,
// rejecting non-canonical encodings the same way the wire codec does.
func scalarFromHex(s string) (*bls.Scalar, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("masterkey: invalid hex scalar: %w", err)
	}
	if len(b) != 32 {
		padded := make([]byte, 32)
		if len(b) > 32 {
			return nil, fmt.Errorf("masterkey: scalar hex too long")
		}
		copy(padded[32-len(b):], b)
		b = padded
	}
	return bls.ScalarFromBytes(b)
}

// scalarFromReducedBytes reduces arbitrary bytes modulo the scalar
// field order, used for HKDF output that is not guaranteed to already
// be canonically reduced.
func scalarFromReducedBytes(b []byte) (*bls.Scalar, error) {
	v := new(big.Int).SetBytes(b)
	v.Mod(v, fr.Modulus())
	var el fr.Element
	el.SetBigInt(v)
	out := el.Bytes()
	return bls.ScalarFromBytes(out[:])
}
