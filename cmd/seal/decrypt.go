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

// decryptCommand implements the `decrypt` command: it recovers each
// offered service's Shamir share from its user secret key and the
// object's shared encapsulation, Lagrange-interpolates the shares
// back to the original secret, re-derives the DEM key, and opens the
// ciphertext.
func decryptCommand(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 1 {
		return fmt.Errorf("decrypt: missing <object> argument")
	}
	objArg, rest := args[0], args[1:]

	objBytes, err := readHexOrFile(objArg)
	if err != nil {
		return fmt.Errorf("decrypt: reading object: %w", err)
	}
	obj, err := object.Decode(objBytes)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	uskArgs, objectIDArgs := splitPositional(rest)
	if len(uskArgs) != len(objectIDArgs) {
		return fmt.Errorf("decrypt: %d usks but %d object ids", len(uskArgs), len(objectIDArgs))
	}
	if len(uskArgs) == 0 {
		return fmt.Errorf("decrypt: at least one usk is required")
	}

	encapsulation, err := bls.G2FromBytes(obj.EncryptedShares.Encapsulation[:], false)
	if err != nil {
		return fmt.Errorf("decrypt: malformed encapsulation: %w", err)
	}

	shares := make([]threshold.Share, 0, len(uskArgs))
	for i := range uskArgs {
		uskBytes, err := decodeHex(uskArgs[i])
		if err != nil {
			return fmt.Errorf("decrypt: invalid usk %d: %w", i, err)
		}
		usk, err := bls.G1FromBytes(uskBytes, false)
		if err != nil {
			return fmt.Errorf("decrypt: usk %d: %w", i, err)
		}

		idBytes, err := decodeHex(objectIDArgs[i])
		if err != nil {
			return fmt.Errorf("decrypt: invalid object id %d: %w", i, err)
		}
		var serverID [32]byte
		if len(idBytes) != 32 {
			return fmt.Errorf("decrypt: object id %d must be 32 bytes", i)
		}
		copy(serverID[:], idBytes)

		svc, slot, found := findService(obj.Services, serverID)
		if !found {
			return fmt.Errorf("decrypt: object id %d does not appear in the encrypted object's services", i)
		}

		keyMaterial, err := ibe.Decapsulate(usk, encapsulation)
		if err != nil {
			return fmt.Errorf("decrypt: decapsulating share %d: %w", i, err)
		}
		shareCiphertext := obj.EncryptedShares.Shares[slot]
		shareValueBytes := xorBytes(shareCiphertext[:], keyMaterial)
		shareValue, err := bls.ScalarFromBytes(shareValueBytes)
		if err != nil {
			return fmt.Errorf("decrypt: recovering share %d: %w", i, err)
		}
		shares = append(shares, threshold.Share{Index: svc.ShareIndex, Value: shareValue})
	}

	secret, err := threshold.RecoverSecret(shares, int(obj.Threshold))
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	recombined := bls.ScalarMulG2(bls.G2Generator, secret)
	if !recombined.Equal(encapsulation) {
		return fmt.Errorf("decrypt: recovered secret does not match the object's encapsulation point")
	}

	demKey, err := ibe.DeriveDEMKey(obj.PackageID[:], obj.InnerID, recombined)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	plaintext, err := openDEM(obj, demKey)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	fmt.Printf("plaintext: %s\n", encodeHex(plaintext))
	return nil
}

// symmetricDecryptCommand implements `symmetric-decrypt`: the caller
// already holds the DEM key and skips share recombination entirely.
func symmetricDecryptCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("symmetric-decrypt: expected exactly one <object> argument")
	}
	demKey, err := decodeHex(c.String("key"))
	if err != nil {
		return fmt.Errorf("symmetric-decrypt: invalid key: %w", err)
	}
	objBytes, err := readHexOrFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("symmetric-decrypt: reading object: %w", err)
	}
	obj, err := object.Decode(objBytes)
	if err != nil {
		return fmt.Errorf("symmetric-decrypt: %w", err)
	}

	plaintext, err := openDEM(obj, demKey)
	if err != nil {
		return fmt.Errorf("symmetric-decrypt: %w", err)
	}
	fmt.Printf("plaintext: %s\n", encodeHex(plaintext))
	return nil
}

func openDEM(obj *object.EncryptedObject, demKey []byte) ([]byte, error) {
	switch obj.EncryptionKind {
	case dem.KindAESGCM:
		return dem.DecryptAESGCM(demKey, obj.AESGCM)
	case dem.KindHMACHybrid:
		return dem.DecryptHMACHybrid(demKey, fullID(obj.PackageID, obj.InnerID), obj.HMACHybrid)
	default:
		return nil, fmt.Errorf("unknown encryption kind %d", obj.EncryptionKind)
	}
}

func findService(services []object.Service, id [32]byte) (object.Service, int, bool) {
	for i, s := range services {
		if s.KeyServerObjectID == id {
			return s, i, true
		}
	}
	return object.Service{}, 0, false
}

func fullID(packageID [32]byte, innerID []byte) []byte {
	out := make([]byte, 0, 32+len(innerID))
	out = append(out, packageID[:]...)
	out = append(out, innerID...)
	return out
}
