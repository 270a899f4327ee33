// Package kmsseed unwraps the operator's master derivation seed from an
// AWS KMS-encrypted blob at startup, so the plaintext seed never lives
// in a config file or environment variable at rest.
package kmsseed

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Unwrapper decrypts a base64-encoded KMS ciphertext into the raw
// master derivation seed.
type Unwrapper struct {
	logger    *zap.Logger
	kmsClient *kms.Client
}

// NewUnwrapper loads the default AWS credential chain for region and
// builds a KMS-backed seed unwrapper.
func NewUnwrapper(ctx context.Context, region string, logger *zap.Logger) (*Unwrapper, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "kmsseed: loading AWS config")
	}
	return &Unwrapper{
		logger:    logger,
		kmsClient: kms.NewFromConfig(awsCfg),
	}, nil
}

// Unwrap decrypts ciphertextB64 under the KMS key keyID, with a fixed
// encryption context binding ("purpose": "seal-master-seed"), returning
// the plaintext seed bytes.
func (u *Unwrapper) Unwrap(ctx context.Context, keyID, ciphertextB64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, errors.Wrap(err, "kmsseed: decoding ciphertext")
	}

	out, err := u.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          aws.String(keyID),
		EncryptionContext: map[string]string{
			"purpose": "seal-master-seed",
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "kmsseed: decrypting seed under key %s", keyID)
	}

	u.logger.Info("unwrapped master seed from KMS", zap.String("key_id", keyID))
	return out.Plaintext, nil
}
