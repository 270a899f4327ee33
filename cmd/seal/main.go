// Command seal is the client-side counterpart to the key-server
// daemon: it exercises the Boneh-Franklin IBE engine directly, without
// talking to any key server, for key generation, encryption, manual
// share extraction and combination, and encrypted-object inspection.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "seal",
		Usage:   "identity-based threshold encryption toolkit",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:   "genkey",
				Usage:  "generate a master IBE key pair",
				Action: genkeyCommand,
			},
			{
				Name:   "gen-seed",
				Usage:  "generate a 32-byte Derived master seed",
				Action: genSeedCommand,
			},
			{
				Name:  "derive-key",
				Usage: "derive a master scalar from a seed and index",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "seed", Required: true, Usage: "hex-encoded 32-byte master seed"},
					&cli.UintFlag{Name: "index", Required: true, Usage: "derivation index"},
				},
				Action: deriveKeyCommand,
			},
			{
				Name:      "encrypt-aes",
				Usage:     "encrypt a message under a weighted committee, AES-256-GCM DEM",
				ArgsUsage: "<pubkey>... -- <object-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Required: true, Usage: "hex-encoded plaintext"},
					&cli.StringFlag{Name: "package-id", Required: true, Usage: "hex-encoded 32-byte package id"},
					&cli.StringFlag{Name: "id", Required: true, Usage: "hex-encoded inner id"},
					&cli.UintFlag{Name: "threshold", Required: true, Usage: "reconstruction threshold"},
				},
				Action: encryptAESCommand,
			},
			{
				Name:  "extract",
				Usage: "extract a user secret key for a policy identity under a master key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "package-id", Required: true, Usage: "hex-encoded 32-byte package id"},
					&cli.StringFlag{Name: "id", Required: true, Usage: "hex-encoded inner id"},
					&cli.StringFlag{Name: "master-key", Required: true, Usage: "hex-encoded master scalar"},
				},
				Action: extractCommand,
			},
			{
				Name:      "decrypt",
				Usage:     "recombine shares and decrypt an encrypted object",
				ArgsUsage: "<object> <usk>... -- <object-id>...",
				Action:    decryptCommand,
			},
			{
				Name:  "symmetric-decrypt",
				Usage: "decrypt an encrypted object given its DEM key directly",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Required: true, Usage: "hex-encoded DEM key"},
				},
				ArgsUsage: "<object>",
				Action:    symmetricDecryptCommand,
			},
			{
				Name:      "parse",
				Usage:     "decode and print the fields of an encrypted object",
				ArgsUsage: "<object>",
				Action:    parseCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", categorize(err))
		log.SetFlags(0)
		os.Exit(1)
	}
}

// categorize returns the line printed on failure: the error's full
// message, unchanged. It does not reduce the error to a category name.
func categorize(err error) string {
	return err.Error()
}
