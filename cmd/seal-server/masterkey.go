package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/airloots/seal/pkg/config"
	"github.com/airloots/seal/pkg/kmsseed"
	"github.com/airloots/seal/pkg/masterkey"
)

// buildMasterTable turns the loaded config into a resolution table.
// Open mode serves a single implicit client from MASTER_KEY; the
// Permissioned client_configs entries each name their own master-key
// variant. A Derived seed is read from MASTER_SEED directly, or
// unwrapped via KMS first when the config names a wrapping key.
func buildMasterTable(ctx context.Context, cfg *config.Config, l *zap.Logger, kmsRegion string) (*masterkey.Table, error) {
	if cfg.ServerMode == config.ModeOpen {
		return masterkey.NewOpenTable(&masterkey.Client{
			Name:    "open",
			Variant: masterkey.VariantPlain,
			EnvVar:  "MASTER_KEY",
		})
	}

	seed, err := resolveMasterSeed(ctx, cfg, l, kmsRegion)
	if err != nil {
		return nil, err
	}

	clients := make([]*masterkey.Client, 0, len(cfg.ClientConfigs))
	for _, cc := range cfg.ClientConfigs {
		client, err := decodeClientConfig(cc)
		if err != nil {
			return nil, fmt.Errorf("client %q: %w", cc.Name, err)
		}
		clients = append(clients, client)
	}
	return masterkey.NewTable(clients, seed)
}

// resolveMasterSeed reads the Derived master seed from MASTER_SEED, or
// unwraps it from the configured KMS ciphertext when no plaintext seed
// is present.
func resolveMasterSeed(ctx context.Context, cfg *config.Config, l *zap.Logger, kmsRegion string) ([]byte, error) {
	if raw := os.Getenv("MASTER_SEED"); raw != "" {
		return hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	}
	if cfg.MasterSeedKMSKeyID == "" {
		return nil, nil
	}

	unwrapper, err := kmsseed.NewUnwrapper(ctx, kmsRegion, l)
	if err != nil {
		return nil, fmt.Errorf("building KMS unwrapper: %w", err)
	}
	return unwrapper.Unwrap(ctx, cfg.MasterSeedKMSKeyID, cfg.MasterSeedKMSCiphertextB64)
}

func decodeClientConfig(cc config.ClientConfig) (*masterkey.Client, error) {
	keyServerObjectID, err := decodeObjectID(cc.KeyServerObjectID)
	if err != nil {
		return nil, fmt.Errorf("key_server_object_id: %w", err)
	}
	packageIDs := make([][32]byte, len(cc.PackageIDs))
	for i, p := range cc.PackageIDs {
		id, err := decodeObjectID(p)
		if err != nil {
			return nil, fmt.Errorf("package_ids[%d]: %w", i, err)
		}
		packageIDs[i] = id
	}

	client := &masterkey.Client{
		Name:              cc.Name,
		KeyServerObjectID: keyServerObjectID,
		PackageIDs:        packageIDs,
	}

	mk := cc.ClientMasterKey
	switch {
	case mk.Plain != nil:
		client.Variant = masterkey.VariantPlain
		client.EnvVar = mk.Plain.EnvVar
	case mk.Derived != nil:
		client.Variant = masterkey.VariantDerived
		client.DerivationIndex = mk.Derived.DerivationIndex
	case mk.Exported != nil:
		client.Variant = masterkey.VariantExported
		client.DeprecatedDerivationIndex = mk.Exported.DeprecatedDerivationIndex
	case mk.Imported != nil:
		client.Variant = masterkey.VariantImported
		client.EnvVar = mk.Imported.EnvVar
	default:
		return nil, fmt.Errorf("no master key variant configured")
	}
	return client, nil
}

func decodeObjectID(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
