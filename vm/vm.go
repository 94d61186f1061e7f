// Package vm holds the chain's protobuf message set: the transaction envelope
// committed through broadcast_tx_commit and the query projections decoded from
// the read RPC surface. The schema is an external contract (see proto/); the
// messages here are marshaled by hand on the protobuf wire format so the
// package carries no generated code.
package vm

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dappchain/evmbridge/types"
)

// VMType selects the virtual machine a transaction targets.
type VMType int32

const (
	VMTypePlugin VMType = 0
	VMTypeEVM    VMType = 1
)

// TxID tags the kind of message wrapped by a Tx envelope.
type TxID uint32

const (
	DeployTxID TxID = 1
	CallTxID   TxID = 2
)

func consumeTag(b []byte) (protowire.Number, protowire.Type, []byte, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, 0, nil, protowire.ParseError(n)
	}
	return num, typ, b[n:], nil
}

func consumeBytes(b []byte) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	// copy out: callers retain the result past the life of the input buffer
	return append([]byte(nil), v...), b[n:], nil
}

func consumeString(b []byte) (string, []byte, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func consumeVarint(b []byte) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return b[n:], nil
}

func appendBytesField(buf []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

func appendStringField(buf []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, v)
}

func appendVarintField(buf []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

// Address marshals as { chain_id = 1 (string), local = 2 (bytes) }.

func appendAddressField(buf []byte, num protowire.Number, a types.Address) []byte {
	if a.IsEmpty() {
		return buf
	}
	var sub []byte
	sub = appendStringField(sub, 1, a.ChainID)
	sub = appendBytesField(sub, 2, a.Local)
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, sub)
}

func unmarshalAddress(b []byte) (types.Address, error) {
	var a types.Address
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return a, err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			a.ChainID, b, err = consumeString(b)
		case num == 2 && typ == protowire.BytesType:
			var local []byte
			local, b, err = consumeBytes(b)
			a.Local = types.LocalAddress(local)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return a, err
		}
	}
	return a, nil
}
