package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airloots/seal/pkg/xcrypto"
)

func TestSealEnvelopeRoundTrip(t *testing.T) {
	encKey, err := xcrypto.RandomBytes(32)
	require.NoError(t, err)
	sessionPK, err := xcrypto.RandomBytes(32)
	require.NoError(t, err)
	plaintext := []byte(`{"decryption_keys":[]}`)

	env, err := sealEnvelope(encKey, sessionPK, plaintext)
	require.NoError(t, err)

	got, err := openEnvelopeForTest(encKey, sessionPK, env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

// TestSealEnvelopeNeverReusesNonce covers the same session issuing two
// responses: a byte-truncated binding copy would put the nonce's
// random salt outside the copied window, reusing the same key+nonce
// pair on every call under one session.
func TestSealEnvelopeNeverReusesNonce(t *testing.T) {
	encKey, err := xcrypto.RandomBytes(32)
	require.NoError(t, err)
	sessionPK, err := xcrypto.RandomBytes(32)
	require.NoError(t, err)
	plaintext := []byte(`{"decryption_keys":[]}`)

	envA, err := sealEnvelope(encKey, sessionPK, plaintext)
	require.NoError(t, err)
	envB, err := sealEnvelope(encKey, sessionPK, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, envA.Nonce, envB.Nonce)
	assert.NotEqual(t, envA.Ciphertext, envB.Ciphertext)

	gotA, err := openEnvelopeForTest(encKey, sessionPK, envA)
	require.NoError(t, err)
	assert.Equal(t, plaintext, gotA)
	gotB, err := openEnvelopeForTest(encKey, sessionPK, envB)
	require.NoError(t, err)
	assert.Equal(t, plaintext, gotB)
}
