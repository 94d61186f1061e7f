// Package middleware implements the ordered transaction-transform pipeline
// applied to every serialized transaction before broadcast. Stages consume
// and produce raw envelope bytes; a stage that needs structure re-wraps the
// bytes itself.
package middleware

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/dappchain/evmbridge/crypto"
	"github.com/dappchain/evmbridge/vm"
)

// TxMiddleware transforms serialized transaction bytes. Handle either returns
// the bytes to feed the next stage or fails the whole commit.
type TxMiddleware interface {
	Handle(ctx context.Context, txBytes []byte) ([]byte, error)
}

// Chain is an ordered sequence of stages. A chain is built once per account
// and is read-shared afterwards; it must never be mutated concurrently.
type Chain []TxMiddleware

// Apply runs every stage in order, feeding each stage's output to the next.
// The first failing stage aborts with its error. Nothing is partially
// retried here; retrying a commit re-runs the whole chain.
func (c Chain) Apply(ctx context.Context, txBytes []byte) ([]byte, error) {
	out := txBytes
	var err error
	for _, m := range c {
		out, err = m.Handle(ctx, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NonceSource answers the current sequence number recorded by the chain for
// a signer, keyed by the hex form of its public key.
type NonceSource interface {
	Nonce(ctx context.Context, key string) (uint64, error)
}

// NonceTxMiddleware stamps the sender's next sequence number onto the
// transaction. The source is consulted on every application, so a retried
// commit picks up the latest value.
type NonceTxMiddleware struct {
	publicKey ed25519.PublicKey
	source    NonceSource
}

func NewNonceTxMiddleware(pub ed25519.PublicKey, source NonceSource) *NonceTxMiddleware {
	return &NonceTxMiddleware{publicKey: pub, source: source}
}

func (m *NonceTxMiddleware) Handle(ctx context.Context, txBytes []byte) ([]byte, error) {
	nonce, err := m.source.Nonce(ctx, hex.EncodeToString(m.publicKey))
	if err != nil {
		return nil, errors.Wrap(err, "fetch sequence number")
	}
	tx := &vm.NonceTx{Inner: txBytes, Sequence: nonce + 1}
	return tx.Marshal()
}

// SignedTxMiddleware signs the exact bytes produced by the preceding stage,
// so it must run after any stage whose output the chain verifies.
type SignedTxMiddleware struct {
	privateKey ed25519.PrivateKey
}

func NewSignedTxMiddleware(priv ed25519.PrivateKey) *SignedTxMiddleware {
	return &SignedTxMiddleware{privateKey: priv}
}

func (m *SignedTxMiddleware) Handle(_ context.Context, txBytes []byte) ([]byte, error) {
	tx := &vm.SignedTx{
		Inner:     txBytes,
		Signature: crypto.SignTx(m.privateKey, txBytes),
		PublicKey: crypto.PublicKey(m.privateKey),
	}
	return tx.Marshal()
}

// DefaultChain is the chain every account gets at registration: sequence
// stamping followed by signing, so the signature covers the sequence number.
func DefaultChain(priv ed25519.PrivateKey, source NonceSource) Chain {
	return Chain{
		NewNonceTxMiddleware(crypto.PublicKey(priv), source),
		NewSignedTxMiddleware(priv),
	}
}
