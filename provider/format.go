package provider

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/dappchain/evmbridge/client"
	"github.com/dappchain/evmbridge/types"
	"github.com/dappchain/evmbridge/vm"
)

// blockTxObjects pins the block queries to full transaction objects. The
// chain only serializes receipt payloads into the transaction list, so the
// boolean flag of eth_getBlockByNumber is not honored per-request.
const blockTxObjects = true

// normalizeBlockNumber maps an Ethereum block-number parameter onto what the
// chain accepts: a symbolic height or a plain decimal string.
func normalizeBlockNumber(param string) (string, error) {
	switch param {
	case "", "latest":
		return "latest", nil
	case "earliest", "pending":
		return param, nil
	}
	if strings.HasPrefix(param, "0x") {
		n, err := hexutil.DecodeUint64(param)
		if err != nil {
			return "", errors.Wrap(err, "block number")
		}
		return strconv.FormatUint(n, 10), nil
	}
	if _, err := strconv.ParseUint(param, 10, 64); err != nil {
		return "", errors.Wrap(err, "block number")
	}
	return param, nil
}

func (p *Provider) formatBlock(info *vm.EthBlockInfo, full bool) (map[string]interface{}, error) {
	txs := make([]interface{}, 0, len(info.Transactions))
	for _, raw := range info.Transactions {
		if !full {
			txs = append(txs, types.EncodeHex(raw))
			continue
		}
		receipt := &vm.EvmTxReceipt{}
		if err := receipt.Unmarshal(raw); err != nil {
			return nil, errors.Wrap(err, "malformed block transaction")
		}
		txs = append(txs, p.formatReceipt(receipt))
	}
	return map[string]interface{}{
		"number":       hexutil.EncodeUint64(uint64(info.Number)),
		"hash":         types.EncodeHex(info.Hash),
		"parentHash":   types.EncodeHex(info.ParentHash),
		"logsBloom":    types.EncodeHex(info.LogsBloom),
		"timestamp":    hexutil.EncodeUint64(uint64(info.Timestamp)),
		"gasLimit":     types.HexEmpty,
		"gasUsed":      types.HexEmpty,
		"transactions": txs,
	}, nil
}

func (p *Provider) formatReceipt(r *vm.EvmTxReceipt) map[string]interface{} {
	logs := make([]interface{}, 0, len(r.Logs))
	for i, l := range r.Logs {
		logs = append(logs, formatEventLog(r, i, l))
	}

	out := map[string]interface{}{
		"transactionHash":   types.EncodeHex(r.TxHash),
		"transactionIndex":  hexutil.EncodeUint64(uint64(r.TransactionIndex)),
		"blockHash":         types.EncodeHex(r.BlockHash),
		"blockNumber":       hexutil.EncodeUint64(uint64(r.BlockNumber)),
		"cumulativeGasUsed": hexutil.EncodeUint64(r.CumulativeGasUsed),
		"gasUsed":           hexutil.EncodeUint64(r.GasUsed),
		"logsBloom":         types.EncodeHex(r.LogsBloom),
		"status":            hexutil.EncodeUint64(uint64(r.Status)),
		"from":              types.EncodeHex(r.CallerAddress.Local),
		"logs":              logs,
	}
	// tooling keys deployments off a non-null contractAddress
	if len(r.ContractAddress) > 0 {
		out["contractAddress"] = types.EncodeHex(r.ContractAddress)
	} else {
		out["contractAddress"] = nil
	}
	return out
}

// formatEventLog reshapes a receipt log entry; position and block fields come
// from the enclosing receipt.
func formatEventLog(r *vm.EvmTxReceipt, index int, l *vm.EventData) map[string]interface{} {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = strings.ToLower(t)
	}
	return map[string]interface{}{
		"removed":          false,
		"logIndex":         hexutil.EncodeUint64(uint64(index)),
		"transactionIndex": hexutil.EncodeUint64(uint64(r.TransactionIndex)),
		"transactionHash":  types.EncodeHex(r.TxHash),
		"blockHash":        types.EncodeHex(r.BlockHash),
		"blockNumber":      hexutil.EncodeUint64(l.BlockHeight),
		"address":          types.EncodeHex(l.Address.Local),
		"data":             types.EncodeHex(l.Data),
		"topics":           topics,
	}
}

func formatTxObject(t *vm.EvmTxObject) map[string]interface{} {
	out := map[string]interface{}{
		"hash":             types.EncodeHex(t.Hash),
		"nonce":            hexutil.EncodeUint64(t.Nonce),
		"blockHash":        types.EncodeHex(t.BlockHash),
		"blockNumber":      hexutil.EncodeUint64(uint64(t.BlockNumber)),
		"transactionIndex": hexutil.EncodeUint64(uint64(t.TransactionIndex)),
		"from":             types.EncodeHex(t.From),
		"value":            hexutil.EncodeUint64(t.Value),
		"input":            types.EncodeHex(t.Input),
		"gas":              types.HexEmpty,
		"gasPrice":         types.HexEmpty,
	}
	if len(t.To) > 0 {
		out["to"] = types.EncodeHex(t.To)
	} else {
		out["to"] = nil
	}
	return out
}

func formatFilterLog(l *vm.EthFilterLog) map[string]interface{} {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = types.EncodeHex(t)
	}
	return map[string]interface{}{
		"removed":          l.Removed,
		"logIndex":         hexutil.EncodeUint64(uint64(l.LogIndex)),
		"transactionIndex": hexutil.EncodeUint64(uint64(l.TransactionIndex)),
		"transactionHash":  types.EncodeHex(l.TransactionHash),
		"blockHash":        types.EncodeHex(l.BlockHash),
		"blockNumber":      hexutil.EncodeUint64(uint64(l.BlockNumber)),
		"address":          types.EncodeHex(l.Address),
		"data":             types.EncodeHex(l.Data),
		"topics":           topics,
	}
}

func formatFilterLogList(list *vm.EthFilterLogList) []interface{} {
	out := []interface{}{}
	if list == nil {
		return out
	}
	for _, l := range list.Logs {
		out = append(out, formatFilterLog(l))
	}
	return out
}

// formatFilterEnvelope flattens a filter-changes answer into the array shape
// eth_getFilterChanges returns: hex hashes for block and pending-tx filters,
// log objects for log filters. No pending changes yields an empty array.
func formatFilterEnvelope(env *vm.EthFilterEnvelope) []interface{} {
	out := []interface{}{}
	if env == nil {
		return out
	}
	switch {
	case env.BlockHashes != nil:
		for _, h := range env.BlockHashes.Hashes {
			out = append(out, types.EncodeHex(h))
		}
	case env.TxHashes != nil:
		for _, h := range env.TxHashes.Hashes {
			out = append(out, types.EncodeHex(h))
		}
	case env.FilterLogs != nil:
		out = formatFilterLogList(env.FilterLogs)
	}
	return out
}

// formatContractEvent reshapes a pushed contract event into the log object
// delivered inside an eth_subscription notification.
func formatContractEvent(ev *client.ContractEventData) map[string]interface{} {
	topics := make([]string, len(ev.Topics))
	for i, t := range ev.Topics {
		topics[i] = strings.ToLower(t)
	}
	return map[string]interface{}{
		"address":         localHex(ev.Address),
		"topics":          topics,
		"data":            types.EncodeHex(ev.Data),
		"blockNumber":     hexutil.EncodeUint64(ev.BlockHeight),
		"transactionHash": types.EncodeHex(ev.TxHash),
	}
}

// localHex strips the chain prefix from a "<chainID>:0x<hex>" address.
func localHex(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		addr = addr[i+1:]
	}
	return strings.ToLower(addr)
}

// netVersionFromChainID derives a stable numeric network id from the chain's
// string id: the first four bytes of its keccak256 hash, rendered in decimal.
func netVersionFromChainID(chainID string) string {
	sum := ethcrypto.Keccak256([]byte(chainID))
	return strconv.FormatUint(uint64(binary.BigEndian.Uint32(sum[:4])), 10)
}
