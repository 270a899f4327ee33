package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airloots/seal/pkg/bls"
)

func TestGenerateAndRecoverSecret(t *testing.T) {
	secret, err := bls.RandomScalar()
	require.NoError(t, err)

	poly, err := GeneratePolynomial(secret, 2)
	require.NoError(t, err)

	shares, err := GenerateShares(poly, []uint8{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, shares, 3)

	recovered, err := RecoverSecret(shares[:2], 2)
	require.NoError(t, err)
	assert.Equal(t, secret.Bytes(), recovered.Bytes())
}

func TestAnyThresholdSubsetReconstructs(t *testing.T) {
	secret, err := bls.RandomScalar()
	require.NoError(t, err)
	poly, err := GeneratePolynomial(secret, 3)
	require.NoError(t, err)

	shares, err := GenerateShares(poly, []uint8{1, 2, 3, 4, 5})
	require.NoError(t, err)

	subsets := [][]Share{
		{shares[0], shares[1], shares[2]},
		{shares[1], shares[3], shares[4]},
		{shares[0], shares[2], shares[4]},
	}
	for _, subset := range subsets {
		recovered, err := RecoverSecret(subset, 3)
		require.NoError(t, err)
		assert.Equal(t, secret.Bytes(), recovered.Bytes())
	}
}

func TestInsufficientSharesFails(t *testing.T) {
	secret, _ := bls.RandomScalar()
	poly, err := GeneratePolynomial(secret, 3)
	require.NoError(t, err)
	shares, err := GenerateShares(poly, []uint8{1, 2})
	require.NoError(t, err)

	_, err = RecoverSecret(shares, 3)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestWeightedCommitteeSingleServerSuffices(t *testing.T) {
	// Committee (A:1, A:2, B:3) with threshold 2: A's two slots alone
	// (indices 1, 2) must suffice; B's single slot (index 3) alone
	// must not.
	secret, err := bls.RandomScalar()
	require.NoError(t, err)
	poly, err := GeneratePolynomial(secret, 2)
	require.NoError(t, err)

	shares, err := GenerateShares(poly, []uint8{1, 2, 3})
	require.NoError(t, err)

	fromA := []Share{shares[0], shares[1]}
	recovered, err := RecoverSecret(fromA, 2)
	require.NoError(t, err)
	assert.Equal(t, secret.Bytes(), recovered.Bytes())

	fromBOnly := []Share{shares[2]}
	_, err = RecoverSecret(fromBOnly, 2)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestDuplicateShareIndexRejected(t *testing.T) {
	secret, _ := bls.RandomScalar()
	poly, _ := GeneratePolynomial(secret, 2)
	_, err := GenerateShares(poly, []uint8{1, 1})
	assert.ErrorIs(t, err, ErrDuplicateShareIndex)
}

func TestEvalIsDeterministic(t *testing.T) {
	secret, _ := bls.RandomScalar()
	poly, err := GeneratePolynomial(secret, 4)
	require.NoError(t, err)

	a := poly.Eval(7)
	b := poly.Eval(7)
	assert.Equal(t, a.Bytes(), b.Bytes())
}
