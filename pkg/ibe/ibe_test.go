package ibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airloots/seal/pkg/bls"
)

func TestExtractEncapsulateDecapsulateAgree(t *testing.T) {
	sk, pk, err := KeyGen()
	require.NoError(t, err)

	packageID := []byte{0x01, 0x02, 0x03}
	innerID := []byte("sample-inner-id")

	usk, err := Extract(sk, packageID, innerID)
	require.NoError(t, err)

	r, err := bls.RandomScalar()
	require.NoError(t, err)

	enc, err := Encapsulate(pk, packageID, innerID, r)
	require.NoError(t, err)

	recovered, err := Decapsulate(usk, enc.Point)
	require.NoError(t, err)

	assert.Equal(t, enc.KeyMaterial, recovered)
}

func TestExtractDeterministic(t *testing.T) {
	sk, _, err := KeyGen()
	require.NoError(t, err)

	a, err := Extract(sk, []byte{0x01}, []byte("id"))
	require.NoError(t, err)
	b, err := Extract(sk, []byte{0x01}, []byte("id"))
	require.NoError(t, err)
	assert.Equal(t, a.Marshal(), b.Marshal())
}

func TestEncapsulateRandomized(t *testing.T) {
	_, pk, err := KeyGen()
	require.NoError(t, err)

	r1, _ := bls.RandomScalar()
	r2, _ := bls.RandomScalar()

	e1, err := Encapsulate(pk, []byte{0x01}, []byte("id"), r1)
	require.NoError(t, err)
	e2, err := Encapsulate(pk, []byte{0x01}, []byte("id"), r2)
	require.NoError(t, err)

	assert.NotEqual(t, e1.KeyMaterial, e2.KeyMaterial)
}

func TestH1RejectsEmptyInnerID(t *testing.T) {
	_, err := H1([]byte{0x01}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestDeriveDEMKeyDeterministicAndDomainSeparated(t *testing.T) {
	r, err := bls.RandomScalar()
	require.NoError(t, err)
	encapsulation := bls.ScalarMulG2(bls.G2Generator, r)

	k1, err := DeriveDEMKey([]byte{0x01}, []byte("id-a"), encapsulation)
	require.NoError(t, err)
	k2, err := DeriveDEMKey([]byte{0x01}, []byte("id-a"), encapsulation)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveDEMKey([]byte{0x01}, []byte("id-b"), encapsulation)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestDifferentIdentitiesYieldDifferentUsks(t *testing.T) {
	sk, _, err := KeyGen()
	require.NoError(t, err)

	a, err := Extract(sk, []byte{0x01}, []byte("id-a"))
	require.NoError(t, err)
	b, err := Extract(sk, []byte{0x01}, []byte("id-b"))
	require.NoError(t, err)

	assert.False(t, a.Equal(b))
}
