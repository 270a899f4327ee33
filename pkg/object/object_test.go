package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airloots/seal/pkg/dem"
)

func sampleObject(t *testing.T, kind dem.Kind) *EncryptedObject {
	t.Helper()
	o := &EncryptedObject{
		Version:   CurrentVersion,
		InnerID:   []byte("sample-inner-id"),
		Services: []Service{
			{ShareIndex: 1},
			{ShareIndex: 2},
			{ShareIndex: 3},
		},
		Threshold:      2,
		EncryptionKind: kind,
		EncryptedShares: EncryptedShares{
			Scheme: 0,
			Shares: [][32]byte{{1}, {2}, {3}},
		},
	}
	for i := range o.PackageID {
		o.PackageID[i] = byte(i)
	}
	for i := range o.Services {
		o.Services[i].KeyServerObjectID[0] = byte(i + 1)
	}
	for i := range o.EncryptedShares.Encapsulation {
		o.EncryptedShares.Encapsulation[i] = byte(i)
	}

	switch kind {
	case dem.KindAESGCM:
		o.AESGCM = &dem.AESGCM{Blob: []byte("ciphertext-blob"), AAD: []byte("aad")}
	case dem.KindHMACHybrid:
		o.HMACHybrid = &dem.HMACHybrid{Blob: []byte("ciphertext-blob")}
	}
	return o
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, kind := range []dem.Kind{dem.KindAESGCM, dem.KindHMACHybrid} {
		o := sampleObject(t, kind)
		enc, err := o.Encode()
		require.NoError(t, err)

		decoded, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, o, decoded)

		reencoded, err := decoded.Encode()
		require.NoError(t, err)
		assert.Equal(t, enc, reencoded)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	o := sampleObject(t, dem.KindAESGCM)
	enc, err := o.Encode()
	require.NoError(t, err)

	_, err = Decode(append(enc, 0xFF))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	o := sampleObject(t, dem.KindAESGCM)
	enc, err := o.Encode()
	require.NoError(t, err)
	enc[0] = 1

	_, err = Decode(enc)
	assert.ErrorIs(t, err, ErrUnsupportedVer)
}

func TestValidateRejectsShareCountMismatch(t *testing.T) {
	o := sampleObject(t, dem.KindAESGCM)
	o.EncryptedShares.Shares = o.EncryptedShares.Shares[:2]
	_, err := o.Encode()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	o := sampleObject(t, dem.KindAESGCM)
	o.Threshold = 0
	_, err := o.Encode()
	assert.ErrorIs(t, err, ErrMalformed)

	o.Threshold = 4
	_, err = o.Encode()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateRejectsDuplicateShareIndex(t *testing.T) {
	o := sampleObject(t, dem.KindAESGCM)
	o.Services[1].ShareIndex = o.Services[0].ShareIndex
	_, err := o.Encode()
	assert.ErrorIs(t, err, ErrMalformed)
}
