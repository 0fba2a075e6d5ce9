// Package signer loads the engine's ed25519 keypair and signs messages.
//
// Grounded on original_source's solana_sdk::signature::Keypair usage
// throughout order_manager.rs and fast_tx_builder.rs: a single keypair,
// loaded once at startup from a file, used to sign every outgoing
// transaction. The teacher's Auth type plays the equivalent role (load
// credentials from config, expose a Sign-ish method), generalized here
// from ECDSA/EIP-712/HMAC to this venue's ed25519 signature scheme — see
// DESIGN.md for why go-ethereum's curve doesn't fit this account model.
package signer

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"mm-engine/internal/mmerr"
	"mm-engine/pkg/types"
)

// Signer holds a loaded keypair and can sign arbitrary byte payloads.
type Signer struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Load reads a keypair file containing a JSON array of the raw 64-byte
// ed25519 private key (matching the on-disk keypair file convention implied
// by solana_sdk::signature::Keypair::from_bytes), and returns a Signer.
func Load(path string) (*Signer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mmerr.New(mmerr.KindKeypairFileOpen, err)
	}
	defer f.Close()

	var raw []byte
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, mmerr.New(mmerr.KindKeypairRead, err)
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, mmerr.New(mmerr.KindKeypairLoad,
			fmt.Errorf("expected %d byte keypair, got %d", ed25519.PrivateKeySize, len(raw)))
	}

	priv := ed25519.PrivateKey(raw)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, mmerr.New(mmerr.KindKeypairLoad, fmt.Errorf("unable to derive public key"))
	}

	return &Signer{public: pub, private: priv}, nil
}

// Pubkey returns the signer's public key as the engine's opaque Pubkey type.
func (s *Signer) Pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], s.public)
	return pk
}

// Sign returns the ed25519 signature over message.
func (s *Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.private, message)
}

// Verify checks a signature against this signer's public key.
func (s *Signer) Verify(message, sig []byte) bool {
	return ed25519.Verify(s.public, message, sig)
}
