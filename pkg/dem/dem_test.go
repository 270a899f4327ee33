package dem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airloots/seal/pkg/xcrypto"
)

func demKey(t *testing.T) []byte {
	t.Helper()
	k, err := xcrypto.RandomBytes(32)
	require.NoError(t, err)
	return k
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := demKey(t)
	pt := []byte("the great seal opens")
	c, err := EncryptAESGCM(key, pt, []byte("ctx"))
	require.NoError(t, err)

	got, err := DecryptAESGCM(key, c)
	require.NoError(t, err)
	assert.Equal(t, pt, got)
}

func TestAESGCMTamperFailsAuthentication(t *testing.T) {
	key := demKey(t)
	c, err := EncryptAESGCM(key, []byte("payload"), nil)
	require.NoError(t, err)

	mutated := *c
	mutated.Blob = append([]byte(nil), c.Blob...)
	mutated.Blob[0] ^= 0x01
	_, err = DecryptAESGCM(key, &mutated)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAESGCMNonceMutationFails(t *testing.T) {
	key := demKey(t)
	c, err := EncryptAESGCM(key, []byte("payload"), nil)
	require.NoError(t, err)

	mutated := *c
	mutated.Nonce[0] ^= 0x01
	_, err = DecryptAESGCM(key, &mutated)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestHMACHybridRoundTrip(t *testing.T) {
	key := demKey(t)
	header := []byte("header-bytes")
	pt := []byte("the great seal opens, hybrid edition")

	c, err := EncryptHMACHybrid(key, header, pt, []byte("aad"))
	require.NoError(t, err)

	got, err := DecryptHMACHybrid(key, header, c)
	require.NoError(t, err)
	assert.Equal(t, pt, got)
}

func TestHMACHybridTagTamperFails(t *testing.T) {
	key := demKey(t)
	header := []byte("header")
	c, err := EncryptHMACHybrid(key, header, []byte("payload"), nil)
	require.NoError(t, err)

	c.Tag[0] ^= 0x01
	_, err = DecryptHMACHybrid(key, header, c)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestHMACHybridHeaderMutationFails(t *testing.T) {
	key := demKey(t)
	c, err := EncryptHMACHybrid(key, []byte("header-a"), []byte("payload"), nil)
	require.NoError(t, err)

	_, err = DecryptHMACHybrid(key, []byte("header-b"), c)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestEncryptionIsRandomized(t *testing.T) {
	key := demKey(t)
	a, err := EncryptAESGCM(key, []byte("same plaintext"), nil)
	require.NoError(t, err)
	b, err := EncryptAESGCM(key, []byte("same plaintext"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Blob, b.Blob)
}
