// Package masterkey implements the four master-key variants of the
// client-isolation model — Plain, Derived, Exported, Imported — and
// the read-mostly table a key server resolves a request's scalar
// from. The table is injected through an explicit server context
// rather than held as a package-level global, keeping tests hermetic.
package masterkey

import (
	"fmt"
	"os"
	"sync"

	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/sealerrors"
	"github.com/airloots/seal/pkg/xcrypto"
)

// Variant tags the source of a client's master scalar.
type Variant string

const (
	VariantPlain    Variant = "plain"
	VariantDerived  Variant = "derived"
	VariantExported Variant = "exported"
	VariantImported Variant = "imported"
)

const derivedInfoPrefix = "seal-derived"

// Client is one client record of spec §3: the name, its master-key
// source, the key-server object it is served from, and the packages
// it owns.
type Client struct {
	Name                      string
	Variant                   Variant
	EnvVar                    string // Plain, Imported
	DerivationIndex           uint32 // Derived
	DeprecatedDerivationIndex uint32 // Exported
	KeyServerObjectID         [32]byte
	PackageIDs                [][32]byte

	scalar *bls.Scalar // resolved lazily, cached for process lifetime
}

// Table is the read-mostly map from package_id to the owning client's
// resolved scalar. Config reload replaces the table wholesale rather
// than mutating it in place, so in-flight readers never observe a
// partially-updated view.
type Table struct {
	mu         sync.RWMutex
	byClient   map[string]*Client
	byPkg      map[[32]byte]*Client
	seed       []byte  // Derived master seed, 32 bytes
	openClient *Client // set only in Open mode: serves every package_id
}

// NewTable builds a resolution table from client configs and the
// Derived-variant master seed (nil if no Derived clients exist).
func NewTable(clients []*Client, derivedSeed []byte) (*Table, error) {
	t := &Table{
		byClient: make(map[string]*Client, len(clients)),
		byPkg:    make(map[[32]byte]*Client, len(clients)),
		seed:     derivedSeed,
	}
	for _, c := range clients {
		if _, exists := t.byClient[c.Name]; exists {
			return nil, fmt.Errorf("masterkey: duplicate client name %q", c.Name)
		}
		t.byClient[c.Name] = c
		for _, pkg := range c.PackageIDs {
			if owner, exists := t.byPkg[pkg]; exists {
				return nil, fmt.Errorf("masterkey: package %x claimed by both %q and %q", pkg, owner.Name, c.Name)
			}
			t.byPkg[pkg] = c
		}
	}
	return t, nil
}

// NewOpenTable builds a Table for spec §3's Open server mode: a single
// client serves every package_id, so there is no client-isolation
// registry to populate.
func NewOpenTable(client *Client) (*Table, error) {
	return &Table{
		byClient:   map[string]*Client{client.Name: client},
		byPkg:      make(map[[32]byte]*Client),
		openClient: client,
	}, nil
}

// Resolve returns the scalar that serves packageID, computing and
// caching it on first use. GoneExported is returned for Exported
// slots regardless of any stale cached scalar.
func (t *Table) Resolve(packageID [32]byte) (*bls.Scalar, error) {
	client, ok := t.lookup(packageID)
	if !ok {
		return nil, sealerrors.New(sealerrors.UnknownPackage, "package is not registered to any client")
	}

	if client.Variant == VariantExported {
		return nil, sealerrors.New(sealerrors.GoneExported, "master key slot has been exported and deactivated")
	}

	t.mu.RLock()
	cached := client.scalar
	t.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	scalar, err := t.resolveScalar(client)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	client.scalar = scalar
	t.mu.Unlock()
	return scalar, nil
}

// Registered reports whether packageID is claimed by any configured
// client, without resolving its scalar. In Open mode every package_id
// is claimed by the single open client.
func (t *Table) Registered(packageID [32]byte) bool {
	_, ok := t.lookup(packageID)
	return ok
}

// ClientNameFor returns the name of the client owning packageID, for
// cache keys and logging. The empty string means unregistered.
func (t *Table) ClientNameFor(packageID [32]byte) string {
	client, ok := t.lookup(packageID)
	if !ok {
		return ""
	}
	return client.Name
}

// lookup resolves packageID to its owning client, falling back to the
// Open-mode client when the table was built with NewOpenTable.
func (t *Table) lookup(packageID [32]byte) (*Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.openClient != nil {
		return t.openClient, true
	}
	client, ok := t.byPkg[packageID]
	return client, ok
}

func (t *Table) resolveScalar(c *Client) (*bls.Scalar, error) {
	switch c.Variant {
	case VariantPlain, VariantImported:
		raw := os.Getenv(c.EnvVar)
		if raw == "" {
			return nil, sealerrors.Wrap(sealerrors.Internal, "master key environment variable not set", fmt.Errorf("env %q empty", c.EnvVar))
		}
		return scalarFromHex(raw)
	case VariantDerived:
		if len(t.seed) != 32 {
			return nil, sealerrors.New(sealerrors.Internal, "derived master seed not configured")
		}
		return deriveScalar(t.seed, c.DerivationIndex)
	default:
		return nil, sealerrors.New(sealerrors.Internal, fmt.Sprintf("unknown master key variant %q", c.Variant))
	}
}

// deriveScalar computes HKDF(seed, info="seal-derived"||index) reduced
// into Fr, per spec §3's Derived master key definition.
func deriveScalar(seed []byte, index uint32) (*bls.Scalar, error) {
	info := make([]byte, len(derivedInfoPrefix)+4)
	copy(info, derivedInfoPrefix)
	info[len(derivedInfoPrefix)+0] = byte(index >> 24)
	info[len(derivedInfoPrefix)+1] = byte(index >> 16)
	info[len(derivedInfoPrefix)+2] = byte(index >> 8)
	info[len(derivedInfoPrefix)+3] = byte(index)

	raw, err := xcrypto.HKDFExpand(seed, nil, info, 32)
	if err != nil {
		return nil, fmt.Errorf("masterkey: deriving scalar: %w", err)
	}
	return scalarFromReducedBytes(raw)
}

// PublicKeyFor returns the master public key for a Derived index
// without resolving a full client, used by audit tooling.
func PublicKeyFor(seed []byte, index uint32) (*bls.G2Point, error) {
	s, err := deriveScalar(seed, index)
	if err != nil {
		return nil, err
	}
	return bls.ScalarMulG2(bls.G2Generator, s), nil
}

// DeriveScalar exposes the Derived master-key derivation to operator
// tooling (the seal CLI's derive-key command), which needs the raw
// scalar rather than just its public key.
func DeriveScalar(seed []byte, index uint32) (*bls.Scalar, error) {
	return deriveScalar(seed, index)
}
