package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/ibe"
	"github.com/airloots/seal/pkg/masterkey"
	"github.com/airloots/seal/pkg/xcrypto"
)

func genkeyCommand(c *cli.Context) error {
	sk, pk, err := ibe.KeyGen()
	if err != nil {
		return fmt.Errorf("genkey: %w", err)
	}
	skBytes := sk.Scalar().Bytes()
	fmt.Printf("master_key: %s\n", encodeHex(skBytes[:]))
	fmt.Printf("public_key: %s\n", encodeHex(pk.Point.Marshal()))
	return nil
}

func genSeedCommand(c *cli.Context) error {
	seed, err := xcrypto.RandomBytes(32)
	if err != nil {
		return fmt.Errorf("gen-seed: %w", err)
	}
	fmt.Printf("seed: %s\n", encodeHex(seed))
	return nil
}

func deriveKeyCommand(c *cli.Context) error {
	seed, err := decodeHex(c.String("seed"))
	if err != nil {
		return fmt.Errorf("derive-key: invalid seed: %w", err)
	}
	index := uint32(c.Uint("index"))

	scalar, err := masterkey.DeriveScalar(seed, index)
	if err != nil {
		return fmt.Errorf("derive-key: %w", err)
	}
	scalarBytes := scalar.Bytes()
	pub := bls.ScalarMulG2(bls.G2Generator, scalar)

	fmt.Printf("master_key: %s\n", encodeHex(scalarBytes[:]))
	fmt.Printf("public_key: %s\n", encodeHex(pub.Marshal()))
	return nil
}

func extractCommand(c *cli.Context) error {
	packageID, err := decodeHex(c.String("package-id"))
	if err != nil {
		return fmt.Errorf("extract: invalid package-id: %w", err)
	}
	innerID, err := decodeHex(c.String("id"))
	if err != nil {
		return fmt.Errorf("extract: invalid id: %w", err)
	}
	skBytes, err := decodeHex(c.String("master-key"))
	if err != nil {
		return fmt.Errorf("extract: invalid master-key: %w", err)
	}
	sk, err := bls.ScalarFromBytes(skBytes)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	usk, err := ibe.Extract(ibe.PrivateKeyFromScalar(sk), packageID, innerID)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	fmt.Printf("usk: %s\n", encodeHex(usk.Marshal()))
	return nil
}
