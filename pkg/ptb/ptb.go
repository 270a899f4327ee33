// Package ptb parses and validates the programmable-transaction-block
// shape of key-server pipeline stage 4: every command must be a Move
// call whose target is <package_id>::<module>::fn with fn matching the
// "seal_approve" prefix, a single package_id shared across commands,
// and a first argument equal to the inner_id being authorized.
package ptb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/airloots/seal/pkg/sealerrors"
)

const approvePrefix = "seal_approve"

// MoveCall is one command of the transaction: a call into
// <PackageID>::<Module>::<Function> whose first argument is expected
// to be the byte-vector inner_id being authorized.
type MoveCall struct {
	PackageID [32]byte
	Module    string
	Function  string
	FirstArg  []byte
}

// Transaction is the parsed shape of the ptb bytes submitted to
// fetch_keys.
type Transaction struct {
	Commands []MoveCall
}

// Parse decodes the canonical length-prefixed PTB encoding. This
// format is bespoke to Seal's trusted full-node RPC boundary; no
// corpus library models the external platform's transaction format,
// so the decoder mirrors the style of pkg/object's wire codec.
func Parse(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, sealerrors.Wrap(sealerrors.MalformedRequest, "malformed ptb: reading command count", err)
	}
	tx := &Transaction{Commands: make([]MoveCall, count)}
	for i := range tx.Commands {
		cmd := &tx.Commands[i]
		if _, err := io.ReadFull(r, cmd.PackageID[:]); err != nil {
			return nil, sealerrors.Wrap(sealerrors.MalformedRequest, fmt.Sprintf("malformed ptb: command %d package_id", i), err)
		}
		mod, err := readString(r)
		if err != nil {
			return nil, sealerrors.Wrap(sealerrors.MalformedRequest, fmt.Sprintf("malformed ptb: command %d module", i), err)
		}
		cmd.Module = mod
		fn, err := readString(r)
		if err != nil {
			return nil, sealerrors.Wrap(sealerrors.MalformedRequest, fmt.Sprintf("malformed ptb: command %d function", i), err)
		}
		cmd.Function = fn
		arg, err := readBytesField(r)
		if err != nil {
			return nil, sealerrors.Wrap(sealerrors.MalformedRequest, fmt.Sprintf("malformed ptb: command %d first arg", i), err)
		}
		cmd.FirstArg = arg
	}
	if r.Len() != 0 {
		return nil, sealerrors.New(sealerrors.MalformedRequest, "malformed ptb: trailing bytes")
	}
	return tx, nil
}

// Validate enforces pipeline stage 4's shape requirements and returns
// the de-duplicated set of inner_id values the transaction authorizes,
// in first-occurrence order.
func Validate(tx *Transaction, certPackageID [32]byte, clientPackageIDs func([32]byte) bool) ([][]byte, error) {
	if len(tx.Commands) == 0 {
		return nil, sealerrors.New(sealerrors.MalformedRequest, "ptb must contain at least one command")
	}

	seen := make(map[string]bool, len(tx.Commands))
	var innerIDs [][]byte

	for i, cmd := range tx.Commands {
		if !strings.HasPrefix(cmd.Function, approvePrefix) {
			return nil, sealerrors.New(sealerrors.MalformedRequest, fmt.Sprintf("command %d does not call a seal_approve function", i))
		}
		if cmd.PackageID != certPackageID {
			return nil, sealerrors.New(sealerrors.MalformedRequest, fmt.Sprintf("command %d targets a package other than the certificate's package", i))
		}
		if !clientPackageIDs(cmd.PackageID) {
			return nil, sealerrors.New(sealerrors.UnknownPackage, fmt.Sprintf("command %d targets an unregistered package", i))
		}
		if len(cmd.FirstArg) == 0 {
			return nil, sealerrors.New(sealerrors.MalformedRequest, fmt.Sprintf("command %d is missing its inner_id argument", i))
		}
		key := string(cmd.FirstArg)
		if !seen[key] {
			seen[key] = true
			innerIDs = append(innerIDs, cmd.FirstArg)
		}
	}
	return innerIDs, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytesField(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytesField(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
