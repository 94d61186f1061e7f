package crypto

import (
	"crypto/ed25519"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ethSignPrefix is prepended to the 32-byte message digest before hashing,
// mirroring the personal-message convention Ethereum tooling expects.
const ethSignPrefix = "\x19Ethereum Signed Message:\n32"

// SignTx produces the chain's native detached signature over the exact
// serialized transaction bytes.
func SignTx(priv ed25519.PrivateKey, txBytes []byte) []byte {
	return ed25519.Sign(priv, txBytes)
}

// VerifyTx checks a detached transaction signature.
func VerifyTx(pub ed25519.PublicKey, txBytes, sig []byte) bool {
	return ed25519.Verify(pub, txBytes, sig)
}

// EthSign implements the chain's recoverable message signature: the message
// is hashed under the prefixed personal-message digest, and the secp256k1
// signing secret is the keccak hash of the raw account key. The result is the
// 65-byte r||s||v concatenation. The secret derivation is a convention of the
// chain, not a general ECDSA step; it must not be replaced with the raw key.
func EthSign(priv ed25519.PrivateKey, msg []byte) ([]byte, error) {
	digest := ethcrypto.Keccak256([]byte(ethSignPrefix), msg)
	secret := ethcrypto.Keccak256(priv)
	key, err := ethcrypto.ToECDSA(secret)
	if err != nil {
		return nil, errors.Wrap(err, "derive signing secret")
	}
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return nil, errors.Wrap(err, "sign message")
	}
	return sig, nil
}

// EthSignDigest returns the digest EthSign signs, for verification by tests
// and callers recovering the signer.
func EthSignDigest(msg []byte) []byte {
	return ethcrypto.Keccak256([]byte(ethSignPrefix), msg)
}
