package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/dem"
	"github.com/airloots/seal/pkg/ibe"
	"github.com/airloots/seal/pkg/object"
	"github.com/airloots/seal/pkg/threshold"
)

// encryptAESCommand implements the `encrypt-aes` command: it samples a
// fresh polynomial whose constant term doubles as the IBE encapsulation
// randomness, one-time-pads a Shamir share per committee slot under
// that slot's master public key, and AES-256-GCM-seals the message
// under the DEM key the threshold layer derives from the same
// randomness.
func encryptAESCommand(c *cli.Context) error {
	message, err := decodeHex(c.String("message"))
	if err != nil {
		return fmt.Errorf("encrypt-aes: invalid message: %w", err)
	}
	packageID, err := decodeHex(c.String("package-id"))
	if err != nil {
		return fmt.Errorf("encrypt-aes: invalid package-id: %w", err)
	}
	if len(packageID) != 32 {
		return fmt.Errorf("encrypt-aes: package-id must be 32 bytes")
	}
	innerID, err := decodeHex(c.String("id"))
	if err != nil {
		return fmt.Errorf("encrypt-aes: invalid id: %w", err)
	}
	threshold_ := int(c.Uint("threshold"))

	pubkeyArgs, objectIDArgs := splitPositional(c.Args().Slice())
	if len(pubkeyArgs) != len(objectIDArgs) {
		return fmt.Errorf("encrypt-aes: %d pubkeys but %d object ids", len(pubkeyArgs), len(objectIDArgs))
	}
	n := len(pubkeyArgs)
	if n == 0 {
		return fmt.Errorf("encrypt-aes: committee must be non-empty")
	}
	if threshold_ < 1 || threshold_ > n {
		return fmt.Errorf("encrypt-aes: threshold %d out of range [1,%d]", threshold_, n)
	}

	pubkeys := make([]*bls.G2Point, n)
	objectIDs := make([][32]byte, n)
	for i := range pubkeyArgs {
		pkBytes, err := decodeHex(pubkeyArgs[i])
		if err != nil {
			return fmt.Errorf("encrypt-aes: invalid pubkey %d: %w", i, err)
		}
		pk, err := bls.G2FromBytes(pkBytes, false)
		if err != nil {
			return fmt.Errorf("encrypt-aes: pubkey %d: %w", i, err)
		}
		pubkeys[i] = pk

		idBytes, err := decodeHex(objectIDArgs[i])
		if err != nil {
			return fmt.Errorf("encrypt-aes: invalid object id %d: %w", i, err)
		}
		if len(idBytes) != 32 {
			return fmt.Errorf("encrypt-aes: object id %d must be 32 bytes", i)
		}
		copy(objectIDs[i][:], idBytes)
	}

	r, err := bls.RandomScalar()
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}
	poly, err := threshold.GeneratePolynomial(r, threshold_)
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}
	indices := make([]uint8, n)
	for i := range indices {
		indices[i] = uint8(i + 1)
	}
	shares, err := threshold.GenerateShares(poly, indices)
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}

	services := make([]object.Service, n)
	encShares := make([][32]byte, n)
	var encapsulation *bls.G2Point
	for i := range pubkeys {
		enc, err := ibe.Encapsulate(&ibe.PublicKey{Point: pubkeys[i]}, packageID, innerID, r)
		if err != nil {
			return fmt.Errorf("encrypt-aes: encapsulating for slot %d: %w", i, err)
		}
		encapsulation = enc.Point

		shareBytes := shares[i].Value.Bytes()
		pad := xorBytes(shareBytes[:], enc.KeyMaterial)
		copy(encShares[i][:], pad)

		services[i] = object.Service{KeyServerObjectID: objectIDs[i], ShareIndex: shares[i].Index}
	}

	demKey, err := ibe.DeriveDEMKey(packageID, innerID, encapsulation)
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}
	aesCt, err := dem.EncryptAESGCM(demKey, message, nil)
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}

	obj := &object.EncryptedObject{
		Version:        object.CurrentVersion,
		InnerID:        innerID,
		Services:       services,
		Threshold:      uint8(threshold_),
		EncryptionKind: dem.KindAESGCM,
		AESGCM:         aesCt,
		EncryptedShares: object.EncryptedShares{
			Scheme: 0,
			Shares: encShares,
		},
	}
	copy(obj.PackageID[:], packageID)
	copy(obj.EncryptedShares.Encapsulation[:], encapsulation.Marshal())

	encoded, err := obj.Encode()
	if err != nil {
		return fmt.Errorf("encrypt-aes: %w", err)
	}
	fmt.Printf("object: %s\n", encodeHex(encoded))
	return nil
}
