// Package crypto provides the bridge's account keys: ed25519 signing keys for
// the chain's native transaction signature, address derivation, and the
// chain's recoverable message-signing scheme exposed through eth_sign.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/dappchain/evmbridge/types"
)

// GenerateKey returns a fresh ed25519 account key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate account key")
	}
	return priv, nil
}

// PublicKey extracts the 32-byte public half of an account key.
func PublicKey(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

// LocalAddressFromPublicKey derives the chain-local account identifier: the
// trailing 20 bytes of the keccak hash of the public key.
func LocalAddressFromPublicKey(pub ed25519.PublicKey) types.LocalAddress {
	h := ethcrypto.Keccak256(pub)
	return types.LocalAddress(h[len(h)-types.LocalAddressLength:])
}

// AddressFromPrivateKey derives the account's chain-scoped address.
func AddressFromPrivateKey(chainID string, priv ed25519.PrivateKey) types.Address {
	return types.NewAddress(chainID, LocalAddressFromPublicKey(PublicKey(priv)))
}

// DecodeKeyBase64 parses the standard base64 rendering of a 64-byte ed25519
// private key, the format key files carry.
func DecodeKeyBase64(s string) (ed25519.PrivateKey, error) {
	b, err := types.DecodeBase64(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode account key")
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid account key length %d", len(b))
	}
	return ed25519.PrivateKey(b), nil
}

// EncodeKeyBase64 renders a private key in the key-file format.
func EncodeKeyBase64(priv ed25519.PrivateKey) string {
	return types.EncodeBase64(priv)
}
