// Package object implements the canonical binary wire encoding of the
// Seal encrypted object: a versioned, length-prefixed format that
// round-trips byte-for-byte (decode(encode(x)) == x and
// encode(decode(b)) == b for all valid b).
package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/airloots/seal/pkg/dem"
)

const CurrentVersion = 0

var (
	ErrTrailingBytes  = errors.New("object: trailing bytes after decoding")
	ErrMalformed      = errors.New("object: malformed encoded object")
	ErrUnsupportedVer = errors.New("object: unsupported version")
)

// Service is one committee slot: the key server that owns it and its
// positional share index (>=1).
type Service struct {
	KeyServerObjectID [32]byte
	ShareIndex        uint8
}

// EncryptedShares carries the BF-BLS12-381 share scheme identifier,
// the one-time-pad-encrypted Shamir shares (one per service, in
// service order), and the shared encapsulation point.
type EncryptedShares struct {
	Scheme        uint8 // 0 = BF-BLS12-381
	Shares        [][32]byte
	Encapsulation [96]byte // compressed G2
}

// EncryptedObject is the full decoded wire object of spec §3.
type EncryptedObject struct {
	Version         uint8
	PackageID       [32]byte
	InnerID         []byte
	Services        []Service
	Threshold       uint8
	EncryptionKind  dem.Kind
	AESGCM          *dem.AESGCM
	HMACHybrid      *dem.HMACHybrid
	EncryptedShares EncryptedShares
}

// Validate checks the structural invariants of spec §3 that are not
// already enforced by the decoder (length agreement, threshold bound,
// duplicate share indices).
func (o *EncryptedObject) Validate() error {
	if len(o.EncryptedShares.Shares) != len(o.Services) {
		return fmt.Errorf("%w: shares count %d != services count %d", ErrMalformed, len(o.EncryptedShares.Shares), len(o.Services))
	}
	if int(o.Threshold) < 1 || int(o.Threshold) > len(o.Services) {
		return fmt.Errorf("%w: threshold %d out of range [1,%d]", ErrMalformed, o.Threshold, len(o.Services))
	}
	seen := make(map[uint8]bool, len(o.Services))
	for _, s := range o.Services {
		if s.ShareIndex == 0 {
			return fmt.Errorf("%w: share index must be nonzero", ErrMalformed)
		}
		if seen[s.ShareIndex] {
			return fmt.Errorf("%w: duplicate share index %d", ErrMalformed, s.ShareIndex)
		}
		seen[s.ShareIndex] = true
	}
	return nil
}

// Encode serializes the object to its canonical binary form.
func (o *EncryptedObject) Encode() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte(o.Version)
	buf.Write(o.PackageID[:])
	writeBytes(&buf, o.InnerID)

	writeUvarint(&buf, uint64(len(o.Services)))
	for _, s := range o.Services {
		buf.Write(s.KeyServerObjectID[:])
		buf.WriteByte(s.ShareIndex)
	}

	buf.WriteByte(o.Threshold)
	buf.WriteByte(byte(o.EncryptionKind))

	switch o.EncryptionKind {
	case dem.KindAESGCM:
		if o.AESGCM == nil {
			return nil, fmt.Errorf("%w: missing AES-GCM ciphertext", ErrMalformed)
		}
		buf.Write(o.AESGCM.Nonce[:])
		writeBytes(&buf, o.AESGCM.Blob)
		writeOptionalBytes(&buf, o.AESGCM.AAD)
	case dem.KindHMACHybrid:
		if o.HMACHybrid == nil {
			return nil, fmt.Errorf("%w: missing HMAC-hybrid ciphertext", ErrMalformed)
		}
		writeBytes(&buf, o.HMACHybrid.Blob)
		buf.Write(o.HMACHybrid.Tag[:])
		writeOptionalBytes(&buf, o.HMACHybrid.AAD)
	default:
		return nil, fmt.Errorf("%w: unknown encryption kind %d", ErrMalformed, o.EncryptionKind)
	}

	buf.WriteByte(o.EncryptedShares.Scheme)
	writeUvarint(&buf, uint64(len(o.EncryptedShares.Shares)))
	for _, s := range o.EncryptedShares.Shares {
		buf.Write(s[:])
	}
	buf.Write(o.EncryptedShares.Encapsulation[:])

	return buf.Bytes(), nil
}

// Decode parses the canonical binary form, rejecting trailing bytes.
func Decode(data []byte) (*EncryptedObject, error) {
	r := bytes.NewReader(data)
	o := &EncryptedObject{}

	ver, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %v", ErrMalformed, err)
	}
	if ver != CurrentVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVer, ver)
	}
	o.Version = ver

	if _, err := io.ReadFull(r, o.PackageID[:]); err != nil {
		return nil, fmt.Errorf("%w: reading package_id: %v", ErrMalformed, err)
	}

	innerID, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading inner_id: %v", ErrMalformed, err)
	}
	o.InnerID = innerID

	serviceCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading services count: %v", ErrMalformed, err)
	}
	o.Services = make([]Service, serviceCount)
	for i := range o.Services {
		if _, err := io.ReadFull(r, o.Services[i].KeyServerObjectID[:]); err != nil {
			return nil, fmt.Errorf("%w: reading service %d id: %v", ErrMalformed, i, err)
		}
		idx, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: reading service %d index: %v", ErrMalformed, i, err)
		}
		o.Services[i].ShareIndex = idx
	}

	threshold, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: reading threshold: %v", ErrMalformed, err)
	}
	o.Threshold = threshold

	kind, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: reading encryption_kind: %v", ErrMalformed, err)
	}
	o.EncryptionKind = dem.Kind(kind)

	switch o.EncryptionKind {
	case dem.KindAESGCM:
		var c dem.AESGCM
		if _, err := io.ReadFull(r, c.Nonce[:]); err != nil {
			return nil, fmt.Errorf("%w: reading nonce: %v", ErrMalformed, err)
		}
		blob, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading blob: %v", ErrMalformed, err)
		}
		c.Blob = blob
		aad, err := readOptionalBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading aad: %v", ErrMalformed, err)
		}
		c.AAD = aad
		o.AESGCM = &c
	case dem.KindHMACHybrid:
		var c dem.HMACHybrid
		blob, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading blob: %v", ErrMalformed, err)
		}
		c.Blob = blob
		if _, err := io.ReadFull(r, c.Tag[:]); err != nil {
			return nil, fmt.Errorf("%w: reading tag: %v", ErrMalformed, err)
		}
		aad, err := readOptionalBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading aad: %v", ErrMalformed, err)
		}
		c.AAD = aad
		o.HMACHybrid = &c
	default:
		return nil, fmt.Errorf("%w: unknown encryption kind %d", ErrMalformed, kind)
	}

	scheme, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: reading scheme: %v", ErrMalformed, err)
	}
	o.EncryptedShares.Scheme = scheme

	shareCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading shares count: %v", ErrMalformed, err)
	}
	o.EncryptedShares.Shares = make([][32]byte, shareCount)
	for i := range o.EncryptedShares.Shares {
		if _, err := io.ReadFull(r, o.EncryptedShares.Shares[i][:]); err != nil {
			return nil, fmt.Errorf("%w: reading share %d: %v", ErrMalformed, i, err)
		}
	}

	if _, err := io.ReadFull(r, o.EncryptedShares.Encapsulation[:]); err != nil {
		return nil, fmt.Errorf("%w: reading encapsulation: %v", ErrMalformed, err)
	}

	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}

	return o, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeOptionalBytes(buf *bytes.Buffer, b []byte) {
	if b == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeBytes(buf, b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
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

func readOptionalBytes(r *bytes.Reader) ([]byte, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return readBytes(r)
}
