package types

// TxResult is the per-phase result of a committed transaction as reported by
// the chain. Data travels base64-encoded on the wire, which encoding/json
// already applies to byte slices.
type TxResult struct {
	Code uint32 `json:"code"`
	Log  string `json:"log"`
	Data []byte `json:"data"`
}

// BroadcastTxResult is the response shape of the chain's broadcast_tx_commit
// call. CheckTx reports mempool admission, DeliverTx reports execution.
type BroadcastTxResult struct {
	CheckTx   TxResult `json:"check_tx"`
	DeliverTx TxResult `json:"deliver_tx"`
}
