package vm_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/types"
	"github.com/dappchain/evmbridge/vm"
)

func mustAddr(t *testing.T, s string) types.Address {
	t.Helper()
	addr, err := types.ParseAddress(s)
	require.NoError(t, err)
	return addr
}

func TestDeployEnvelopeRoundTrip(t *testing.T) {
	from := mustAddr(t, "default:0x7cb61d4117ae31a12e393a1cfa3bac666481d02e")
	to := types.ZeroAddress("default")

	deploy := &vm.DeployTx{
		VMType: vm.VMTypeEVM,
		Code:   []byte{0x60, 0x80, 0x60, 0x40},
	}
	deployBytes, err := deploy.Marshal()
	require.NoError(t, err)

	msg := &vm.MessageTx{From: from, To: to, Data: deployBytes}
	msgBytes, err := msg.Marshal()
	require.NoError(t, err)

	tx := &vm.Tx{ID: vm.DeployTxID, Data: msgBytes}
	txBytes, err := tx.Marshal()
	require.NoError(t, err)

	// peel the envelope back apart layer by layer
	var outerTx vm.Tx
	require.NoError(t, outerTx.Unmarshal(txBytes))
	require.Equal(t, vm.DeployTxID, outerTx.ID)

	var outerMsg vm.MessageTx
	require.NoError(t, outerMsg.Unmarshal(outerTx.Data))
	require.True(t, from.Equal(outerMsg.From))
	require.True(t, to.Equal(outerMsg.To))

	var outerDeploy vm.DeployTx
	require.NoError(t, outerDeploy.Unmarshal(outerMsg.Data))
	require.Equal(t, vm.VMTypeEVM, outerDeploy.VMType)
	require.Equal(t, deploy.Code, outerDeploy.Code)
}

func TestCallEnvelopeRoundTrip(t *testing.T) {
	call := &vm.CallTx{
		VMType: vm.VMTypeEVM,
		Input:  []byte{0xa9, 0x05, 0x9c, 0xbb},
		Value:  vm.NewBigUInt(big.NewInt(12345)),
	}
	callBytes, err := call.Marshal()
	require.NoError(t, err)

	var got vm.CallTx
	require.NoError(t, got.Unmarshal(callBytes))
	require.Equal(t, call.Input, got.Input)
	require.NotNil(t, got.Value)
	require.Equal(t, int64(12345), got.Value.Int().Int64())
}

func TestCallTxOmitsNilValue(t *testing.T) {
	call := &vm.CallTx{VMType: vm.VMTypeEVM, Input: []byte{0x01}}
	callBytes, err := call.Marshal()
	require.NoError(t, err)

	var got vm.CallTx
	require.NoError(t, got.Unmarshal(callBytes))
	require.Nil(t, got.Value)
}

func TestBigUInt(t *testing.T) {
	testCases := []struct {
		name  string
		input *big.Int
		exp   int64
	}{
		{"nil maps to zero", nil, 0},
		{"negative maps to zero", big.NewInt(-5), 0},
		{"zero", big.NewInt(0), 0},
		{"positive", big.NewInt(1 << 40), 1 << 40},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u := vm.NewBigUInt(tc.input)
			require.Equal(t, tc.exp, u.Int().Int64())
		})
	}
}

func TestNonceAndSignedWrappers(t *testing.T) {
	inner := []byte("serialized transaction bytes")

	nonceTx := &vm.NonceTx{Inner: inner, Sequence: 7}
	nonceBytes, err := nonceTx.Marshal()
	require.NoError(t, err)

	signed := &vm.SignedTx{
		Inner:     nonceBytes,
		Signature: []byte{0x01, 0x02},
		PublicKey: []byte{0x03, 0x04},
	}
	signedBytes, err := signed.Marshal()
	require.NoError(t, err)

	var gotSigned vm.SignedTx
	require.NoError(t, gotSigned.Unmarshal(signedBytes))
	require.Equal(t, signed.Signature, gotSigned.Signature)
	require.Equal(t, signed.PublicKey, gotSigned.PublicKey)

	var gotNonce vm.NonceTx
	require.NoError(t, gotNonce.Unmarshal(gotSigned.Inner))
	require.Equal(t, uint64(7), gotNonce.Sequence)
	require.Equal(t, inner, gotNonce.Inner)
}

func TestFilterEnvelopeDiscriminant(t *testing.T) {
	testCases := []struct {
		name  string
		build func() *vm.EthFilterEnvelope
		check func(t *testing.T, env *vm.EthFilterEnvelope)
	}{
		{
			"block hashes",
			func() *vm.EthFilterEnvelope {
				return &vm.EthFilterEnvelope{
					BlockHashes: &vm.EthBlockHashList{Hashes: [][]byte{{0xaa}, {0xbb}}},
				}
			},
			func(t *testing.T, env *vm.EthFilterEnvelope) {
				require.NotNil(t, env.BlockHashes)
				require.Nil(t, env.TxHashes)
				require.Nil(t, env.FilterLogs)
				require.Len(t, env.BlockHashes.Hashes, 2)
			},
		},
		{
			"tx hashes",
			func() *vm.EthFilterEnvelope {
				return &vm.EthFilterEnvelope{
					TxHashes: &vm.EthTxHashList{Hashes: [][]byte{{0xcc}}},
				}
			},
			func(t *testing.T, env *vm.EthFilterEnvelope) {
				require.Nil(t, env.BlockHashes)
				require.NotNil(t, env.TxHashes)
				require.Len(t, env.TxHashes.Hashes, 1)
			},
		},
		{
			"filter logs",
			func() *vm.EthFilterEnvelope {
				return &vm.EthFilterEnvelope{
					FilterLogs: &vm.EthFilterLogList{
						Logs: []*vm.EthFilterLog{{BlockNumber: 42, Data: []byte{0x01}}},
					},
				}
			},
			func(t *testing.T, env *vm.EthFilterEnvelope) {
				require.NotNil(t, env.FilterLogs)
				require.Len(t, env.FilterLogs.Logs, 1)
				require.Equal(t, int64(42), env.FilterLogs.Logs[0].BlockNumber)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.build().Marshal()
			require.NoError(t, err)

			var got vm.EthFilterEnvelope
			require.NoError(t, got.Unmarshal(b))
			tc.check(t, &got)
		})
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	caller := mustAddr(t, "default:0x7cb61d4117ae31a12e393a1cfa3bac666481d02e")
	receipt := &vm.EvmTxReceipt{
		TransactionIndex: 3,
		BlockHash:        []byte{0x01},
		BlockNumber:      99,
		ContractAddress:  []byte{0x02},
		Status:           1,
		TxHash:           []byte{0x03},
		CallerAddress:    caller,
		Nonce:            5,
		Logs: []*vm.EventData{
			{
				Topics:      []string{"0xdeadbeef"},
				Address:     caller,
				BlockHeight: 99,
				Data:        []byte{0x04},
				TxHash:      []byte{0x03},
			},
		},
	}

	b, err := receipt.Marshal()
	require.NoError(t, err)

	var got vm.EvmTxReceipt
	require.NoError(t, got.Unmarshal(b))
	require.False(t, got.IsEmpty())
	require.Equal(t, receipt.BlockNumber, got.BlockNumber)
	require.True(t, caller.Equal(got.CallerAddress))
	require.Len(t, got.Logs, 1)
	require.Equal(t, receipt.Logs[0].Topics, got.Logs[0].Topics)

	require.True(t, (&vm.EvmTxReceipt{}).IsEmpty())
}
