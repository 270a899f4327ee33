package session

import "crypto/ed25519"

// Ed25519Verifier is the default WalletVerifier: it treats
// certificate.address as an Ed25519 public key directly and verifies
// the personal-message signature against it. The platform's actual
// account/wallet model (multi-scheme signatures, smart-contract
// wallets) is an external collaborator out of scope here; this gives
// the server a runnable default for deployments where addresses are
// themselves Ed25519 keys, and a template for wiring a richer
// verifier behind the same interface.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(address [32]byte, message []byte, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(address[:]), message, signature)
}
