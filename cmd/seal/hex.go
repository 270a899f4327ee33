package main

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// decodeHex parses a hex argument, tolerating an optional 0x prefix.
func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// encodeHex returns the 0x-prefixed hex encoding used throughout the
// CLI's output.
func encodeHex(b []byte) string {
	return hexutil.Encode(b)
}

// readHexOrFile accepts either a hex string or a path to a file holding
// raw bytes, matching how operators pass around encrypted objects.
func readHexOrFile(arg string) ([]byte, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return os.ReadFile(arg)
	}
	return decodeHex(arg)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// splitPositional divides a two-group positional argument list at a
// literal "--" separator. The stdlib flag package the CLI framework is
// built on consumes a leading "--" as "stop parsing flags" rather than
// passing it through as a literal token, so when no separator survives
// into Args() the two groups are recovered by even split instead.
func splitPositional(args []string) (left, right []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	half := len(args) / 2
	return args[:half], args[half:]
}
