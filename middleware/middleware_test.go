package middleware_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/crypto"
	"github.com/dappchain/evmbridge/middleware"
	"github.com/dappchain/evmbridge/vm"
)

type stampStage struct {
	stamp byte
}

func (s stampStage) Handle(_ context.Context, txBytes []byte) ([]byte, error) {
	return append(txBytes, s.stamp), nil
}

type failStage struct {
	err error
}

func (s failStage) Handle(context.Context, []byte) ([]byte, error) {
	return nil, s.err
}

type fixedNonceSource struct {
	nonce   uint64
	lastKey string
	calls   int
}

func (s *fixedNonceSource) Nonce(_ context.Context, key string) (uint64, error) {
	s.lastKey = key
	s.calls++
	return s.nonce, nil
}

func TestChainAppliesInOrder(t *testing.T) {
	chain := middleware.Chain{stampStage{'a'}, stampStage{'b'}, stampStage{'c'}}
	out, err := chain.Apply(context.Background(), []byte("tx:"))
	require.NoError(t, err)
	require.Equal(t, "tx:abc", string(out))
}

func TestChainShortCircuitsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	chain := middleware.Chain{stampStage{'a'}, failStage{boom}, stampStage{'c'}}
	out, err := chain.Apply(context.Background(), []byte("tx:"))
	require.ErrorIs(t, err, boom)
	require.Nil(t, out)
}

func TestEmptyChainIsIdentity(t *testing.T) {
	out, err := middleware.Chain{}.Apply(context.Background(), []byte("tx"))
	require.NoError(t, err)
	require.Equal(t, []byte("tx"), out)
}

func TestNonceMiddlewareStampsNextSequence(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	source := &fixedNonceSource{nonce: 41}
	mw := middleware.NewNonceTxMiddleware(pub, source)

	inner := []byte("serialized tx")
	out, err := mw.Handle(context.Background(), inner)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(pub), source.lastKey)

	var tx vm.NonceTx
	require.NoError(t, tx.Unmarshal(out))
	require.Equal(t, uint64(42), tx.Sequence)
	require.Equal(t, inner, tx.Inner)
}

func TestSignedMiddlewareSignsExactBytes(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	inner := []byte("bytes under signature")
	out, err := middleware.NewSignedTxMiddleware(priv).Handle(context.Background(), inner)
	require.NoError(t, err)

	var tx vm.SignedTx
	require.NoError(t, tx.Unmarshal(out))
	require.Equal(t, inner, tx.Inner)
	require.Equal(t, []byte(crypto.PublicKey(priv)), tx.PublicKey)
	require.True(t, crypto.VerifyTx(tx.PublicKey, tx.Inner, tx.Signature))
}

func TestDefaultChainSignatureCoversSequence(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	source := &fixedNonceSource{nonce: 3}
	chain := middleware.DefaultChain(priv, source)

	out, err := chain.Apply(context.Background(), []byte("inner tx"))
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	var signed vm.SignedTx
	require.NoError(t, signed.Unmarshal(out))
	// the signature covers the sequence-stamped bytes, not the raw inner tx
	require.True(t, crypto.VerifyTx(signed.PublicKey, signed.Inner, signed.Signature))

	var nonceTx vm.NonceTx
	require.NoError(t, nonceTx.Unmarshal(signed.Inner))
	require.Equal(t, uint64(4), nonceTx.Sequence)
	require.Equal(t, []byte("inner tx"), nonceTx.Inner)
}
