package vm

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dappchain/evmbridge/types"
)

// EventData is a contract event emitted during transaction execution, both as
// a receipt log entry and as the payload of push notifications.
type EventData struct {
	Topics      []string
	Caller      types.Address
	Address     types.Address
	BlockHeight uint64
	Data        []byte
	TxHash      []byte
}

func (e *EventData) Marshal() ([]byte, error) {
	var buf []byte
	for _, t := range e.Topics {
		buf = appendStringField(buf, 1, t)
	}
	buf = appendAddressField(buf, 2, e.Caller)
	buf = appendAddressField(buf, 3, e.Address)
	buf = appendVarintField(buf, 4, e.BlockHeight)
	buf = appendBytesField(buf, 5, e.Data)
	buf = appendBytesField(buf, 6, e.TxHash)
	return buf, nil
}

func (e *EventData) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			var t string
			t, b, err = consumeString(b)
			e.Topics = append(e.Topics, t)
		case num == 2 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				e.Caller, err = unmarshalAddress(sub)
			}
		case num == 3 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				e.Address, err = unmarshalAddress(sub)
			}
		case num == 4 && typ == protowire.VarintType:
			e.BlockHeight, b, err = consumeVarint(b)
		case num == 5 && typ == protowire.BytesType:
			e.Data, b, err = consumeBytes(b)
		case num == 6 && typ == protowire.BytesType:
			e.TxHash, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EvmTxReceipt is the chain's execution receipt for an EVM transaction.
type EvmTxReceipt struct {
	TransactionIndex  int32
	BlockHash         []byte
	BlockNumber       int64
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   []byte
	Logs              []*EventData
	LogsBloom         []byte
	Status            int32
	TxHash            []byte
	CallerAddress     types.Address
	Nonce             uint64
}

func (r *EvmTxReceipt) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(r.TransactionIndex))
	buf = appendBytesField(buf, 2, r.BlockHash)
	buf = appendVarintField(buf, 3, uint64(r.BlockNumber))
	buf = appendVarintField(buf, 4, r.CumulativeGasUsed)
	buf = appendVarintField(buf, 5, r.GasUsed)
	buf = appendBytesField(buf, 6, r.ContractAddress)
	for _, l := range r.Logs {
		sub, err := l.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 7, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	buf = appendBytesField(buf, 8, r.LogsBloom)
	buf = appendVarintField(buf, 9, uint64(r.Status))
	buf = appendBytesField(buf, 10, r.TxHash)
	buf = appendAddressField(buf, 11, r.CallerAddress)
	buf = appendVarintField(buf, 12, r.Nonce)
	return buf, nil
}

func (r *EvmTxReceipt) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			r.TransactionIndex = int32(v)
		case num == 2 && typ == protowire.BytesType:
			r.BlockHash, b, err = consumeBytes(b)
		case num == 3 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			r.BlockNumber = int64(v)
		case num == 4 && typ == protowire.VarintType:
			r.CumulativeGasUsed, b, err = consumeVarint(b)
		case num == 5 && typ == protowire.VarintType:
			r.GasUsed, b, err = consumeVarint(b)
		case num == 6 && typ == protowire.BytesType:
			r.ContractAddress, b, err = consumeBytes(b)
		case num == 7 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				ev := &EventData{}
				if err = ev.Unmarshal(sub); err == nil {
					r.Logs = append(r.Logs, ev)
				}
			}
		case num == 8 && typ == protowire.BytesType:
			r.LogsBloom, b, err = consumeBytes(b)
		case num == 9 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			r.Status = int32(v)
		case num == 10 && typ == protowire.BytesType:
			r.TxHash, b, err = consumeBytes(b)
		case num == 11 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				r.CallerAddress, err = unmarshalAddress(sub)
			}
		case num == 12 && typ == protowire.VarintType:
			r.Nonce, b, err = consumeVarint(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the receipt carries no execution result at all,
// which the chain answers for transactions it has not yet indexed.
func (r *EvmTxReceipt) IsEmpty() bool {
	return len(r.TxHash) == 0 && r.BlockNumber == 0 && len(r.BlockHash) == 0
}

// EvmTxObject is the chain's projection of a committed EVM transaction.
type EvmTxObject struct {
	Hash             []byte
	Nonce            uint64
	BlockHash        []byte
	BlockNumber      int64
	TransactionIndex int32
	From             []byte
	To               []byte
	Value            uint64
	Input            []byte
}

func (t *EvmTxObject) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, t.Hash)
	buf = appendVarintField(buf, 2, t.Nonce)
	buf = appendBytesField(buf, 3, t.BlockHash)
	buf = appendVarintField(buf, 4, uint64(t.BlockNumber))
	buf = appendVarintField(buf, 5, uint64(t.TransactionIndex))
	buf = appendBytesField(buf, 6, t.From)
	buf = appendBytesField(buf, 7, t.To)
	buf = appendVarintField(buf, 8, t.Value)
	buf = appendBytesField(buf, 9, t.Input)
	return buf, nil
}

func (t *EvmTxObject) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			t.Hash, b, err = consumeBytes(b)
		case num == 2 && typ == protowire.VarintType:
			t.Nonce, b, err = consumeVarint(b)
		case num == 3 && typ == protowire.BytesType:
			t.BlockHash, b, err = consumeBytes(b)
		case num == 4 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			t.BlockNumber = int64(v)
		case num == 5 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			t.TransactionIndex = int32(v)
		case num == 6 && typ == protowire.BytesType:
			t.From, b, err = consumeBytes(b)
		case num == 7 && typ == protowire.BytesType:
			t.To, b, err = consumeBytes(b)
		case num == 8 && typ == protowire.VarintType:
			t.Value, b, err = consumeVarint(b)
		case num == 9 && typ == protowire.BytesType:
			t.Input, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EthBlockInfo is the chain's block projection. Transactions holds either raw
// transaction hashes or serialized EvmTxReceipt messages depending on the
// "full" flag of the originating request.
type EthBlockInfo struct {
	Hash         []byte
	ParentHash   []byte
	LogsBloom    []byte
	Number       int64
	Timestamp    int64
	Transactions [][]byte
}

func (i *EthBlockInfo) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, i.Hash)
	buf = appendBytesField(buf, 2, i.ParentHash)
	buf = appendBytesField(buf, 3, i.LogsBloom)
	buf = appendVarintField(buf, 4, uint64(i.Number))
	buf = appendVarintField(buf, 5, uint64(i.Timestamp))
	for _, tx := range i.Transactions {
		buf = appendBytesField(buf, 6, tx)
	}
	return buf, nil
}

func (i *EthBlockInfo) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			i.Hash, b, err = consumeBytes(b)
		case num == 2 && typ == protowire.BytesType:
			i.ParentHash, b, err = consumeBytes(b)
		case num == 3 && typ == protowire.BytesType:
			i.LogsBloom, b, err = consumeBytes(b)
		case num == 4 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			i.Number = int64(v)
		case num == 5 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			i.Timestamp = int64(v)
		case num == 6 && typ == protowire.BytesType:
			var tx []byte
			tx, b, err = consumeBytes(b)
			i.Transactions = append(i.Transactions, tx)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EthFilterLog is a single log entry answered by log filters and queries.
type EthFilterLog struct {
	Removed          bool
	LogIndex         int64
	TransactionIndex int32
	TransactionHash  []byte
	BlockHash        []byte
	BlockNumber      int64
	Address          []byte
	Data             []byte
	Topics           [][]byte
}

func (l *EthFilterLog) Marshal() ([]byte, error) {
	var buf []byte
	if l.Removed {
		buf = appendVarintField(buf, 1, 1)
	}
	buf = appendVarintField(buf, 2, uint64(l.LogIndex))
	buf = appendVarintField(buf, 3, uint64(l.TransactionIndex))
	buf = appendBytesField(buf, 4, l.TransactionHash)
	buf = appendBytesField(buf, 5, l.BlockHash)
	buf = appendVarintField(buf, 6, uint64(l.BlockNumber))
	buf = appendBytesField(buf, 7, l.Address)
	buf = appendBytesField(buf, 8, l.Data)
	for _, t := range l.Topics {
		buf = appendBytesField(buf, 9, t)
	}
	return buf, nil
}

func (l *EthFilterLog) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			l.Removed = v != 0
		case num == 2 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			l.LogIndex = int64(v)
		case num == 3 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			l.TransactionIndex = int32(v)
		case num == 4 && typ == protowire.BytesType:
			l.TransactionHash, b, err = consumeBytes(b)
		case num == 5 && typ == protowire.BytesType:
			l.BlockHash, b, err = consumeBytes(b)
		case num == 6 && typ == protowire.VarintType:
			var v uint64
			v, b, err = consumeVarint(b)
			l.BlockNumber = int64(v)
		case num == 7 && typ == protowire.BytesType:
			l.Address, b, err = consumeBytes(b)
		case num == 8 && typ == protowire.BytesType:
			l.Data, b, err = consumeBytes(b)
		case num == 9 && typ == protowire.BytesType:
			var t []byte
			t, b, err = consumeBytes(b)
			l.Topics = append(l.Topics, t)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// EthFilterLogList carries the log entries answered for a log filter.
type EthFilterLogList struct {
	Logs []*EthFilterLog
}

func (ll *EthFilterLogList) Marshal() ([]byte, error) {
	var buf []byte
	for _, l := range ll.Logs {
		sub, err := l.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf, nil
}

func (ll *EthFilterLogList) Unmarshal(b []byte) error {
	return unmarshalRepeatedMessage(b, func(sub []byte) error {
		l := &EthFilterLog{}
		if err := l.Unmarshal(sub); err != nil {
			return err
		}
		ll.Logs = append(ll.Logs, l)
		return nil
	})
}

// EthBlockHashList carries the block hashes answered for a block filter.
type EthBlockHashList struct {
	Hashes [][]byte
}

func (bl *EthBlockHashList) Marshal() ([]byte, error) {
	var buf []byte
	for _, h := range bl.Hashes {
		buf = appendBytesField(buf, 1, h)
	}
	return buf, nil
}

func (bl *EthBlockHashList) Unmarshal(b []byte) error {
	return unmarshalRepeatedBytes(b, func(v []byte) {
		bl.Hashes = append(bl.Hashes, v)
	})
}

// EthTxHashList carries the transaction hashes answered for a pending-tx
// filter.
type EthTxHashList struct {
	Hashes [][]byte
}

func (tl *EthTxHashList) Marshal() ([]byte, error) {
	var buf []byte
	for _, h := range tl.Hashes {
		buf = appendBytesField(buf, 1, h)
	}
	return buf, nil
}

func (tl *EthTxHashList) Unmarshal(b []byte) error {
	return unmarshalRepeatedBytes(b, func(v []byte) {
		tl.Hashes = append(tl.Hashes, v)
	})
}

func unmarshalRepeatedBytes(b []byte, add func([]byte)) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		if num == 1 && typ == protowire.BytesType {
			var v []byte
			v, b, err = consumeBytes(b)
			if err != nil {
				return err
			}
			add(v)
			continue
		}
		if b, err = skipField(num, typ, b); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalRepeatedMessage(b []byte, add func([]byte) error) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		if num == 1 && typ == protowire.BytesType {
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err != nil {
				return err
			}
			if err = add(sub); err != nil {
				return err
			}
			continue
		}
		if b, err = skipField(num, typ, b); err != nil {
			return err
		}
	}
	return nil
}

// EthFilterEnvelope is the discriminated answer to a filter-changes poll:
// exactly one of the three lists is set, matching the kind of filter polled.
type EthFilterEnvelope struct {
	BlockHashes *EthBlockHashList
	TxHashes    *EthTxHashList
	FilterLogs  *EthFilterLogList
}

func (e *EthFilterEnvelope) Marshal() ([]byte, error) {
	var buf []byte
	switch {
	case e.BlockHashes != nil:
		sub, err := e.BlockHashes.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	case e.TxHashes != nil:
		sub, err := e.TxHashes.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	case e.FilterLogs != nil:
		sub, err := e.FilterLogs.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf, nil
}

func (e *EthFilterEnvelope) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				e.BlockHashes = &EthBlockHashList{}
				err = e.BlockHashes.Unmarshal(sub)
			}
		case num == 2 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				e.TxHashes = &EthTxHashList{}
				err = e.TxHashes.Unmarshal(sub)
			}
		case num == 3 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				e.FilterLogs = &EthFilterLogList{}
				err = e.FilterLogs.Unmarshal(sub)
			}
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
