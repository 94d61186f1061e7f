package vm

import (
	"math/big"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dappchain/evmbridge/types"
)

// Tx is the outermost transaction envelope: a kind tag plus the serialized
// inner message. Once serialized the envelope is immutable; middleware
// transforms operate on its bytes, not this structured form.
type Tx struct {
	ID   TxID
	Data []byte
}

func (t *Tx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(t.ID))
	buf = appendBytesField(buf, 2, t.Data)
	return buf, nil
}

func (t *Tx) Unmarshal(b []byte) error {
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
			t.ID = TxID(v)
		case num == 2 && typ == protowire.BytesType:
			t.Data, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MessageTx routes a serialized DeployTx or CallTx between two accounts.
type MessageTx struct {
	From types.Address
	To   types.Address
	Data []byte
}

func (m *MessageTx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendAddressField(buf, 1, m.From)
	buf = appendAddressField(buf, 2, m.To)
	buf = appendBytesField(buf, 3, m.Data)
	return buf, nil
}

func (m *MessageTx) Unmarshal(b []byte) error {
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
				m.From, err = unmarshalAddress(sub)
			}
		case num == 2 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				m.To, err = unmarshalAddress(sub)
			}
		case num == 3 && typ == protowire.BytesType:
			m.Data, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DeployTx carries contract bytecode to be installed under a fresh address.
type DeployTx struct {
	VMType VMType
	Code   []byte
	Name   string
}

func (d *DeployTx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(d.VMType))
	buf = appendBytesField(buf, 2, d.Code)
	buf = appendStringField(buf, 3, d.Name)
	return buf, nil
}

func (d *DeployTx) Unmarshal(b []byte) error {
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
			d.VMType = VMType(v)
		case num == 2 && typ == protowire.BytesType:
			d.Code, b, err = consumeBytes(b)
		case num == 3 && typ == protowire.BytesType:
			d.Name, b, err = consumeString(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CallTx invokes a method on an already-deployed contract.
type CallTx struct {
	VMType VMType
	Input  []byte
	Value  *BigUInt
}

func (c *CallTx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(c.VMType))
	buf = appendBytesField(buf, 2, c.Input)
	if c.Value != nil {
		sub, err := c.Value.Marshal()
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, 3, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf, nil
}

func (c *CallTx) Unmarshal(b []byte) error {
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
			c.VMType = VMType(v)
		case num == 2 && typ == protowire.BytesType:
			c.Input, b, err = consumeBytes(b)
		case num == 3 && typ == protowire.BytesType:
			var sub []byte
			sub, b, err = consumeBytes(b)
			if err == nil {
				c.Value = &BigUInt{}
				err = c.Value.Unmarshal(sub)
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

// BigUInt is an arbitrary-precision unsigned integer carried as big-endian
// bytes, used for transfer values.
type BigUInt struct {
	Value []byte
}

// NewBigUInt wraps v; nil or negative values map to zero.
func NewBigUInt(v *big.Int) *BigUInt {
	if v == nil || v.Sign() <= 0 {
		return &BigUInt{}
	}
	return &BigUInt{Value: v.Bytes()}
}

func (u *BigUInt) Int() *big.Int {
	return new(big.Int).SetBytes(u.Value)
}

func (u *BigUInt) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, u.Value)
	return buf, nil
}

func (u *BigUInt) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			u.Value, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// NonceTx binds a serialized transaction to the sender's next sequence
// number. The chain rejects commits whose sequence does not match.
type NonceTx struct {
	Inner    []byte
	Sequence uint64
}

func (n *NonceTx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, n.Inner)
	buf = appendVarintField(buf, 2, n.Sequence)
	return buf, nil
}

func (n *NonceTx) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			n.Inner, b, err = consumeBytes(b)
		case num == 2 && typ == protowire.VarintType:
			n.Sequence, b, err = consumeVarint(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SignedTx wraps a serialized transaction with the sender's signature over
// those exact bytes.
type SignedTx struct {
	Inner     []byte
	Signature []byte
	PublicKey []byte
}

func (s *SignedTx) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, s.Inner)
	buf = appendBytesField(buf, 2, s.Signature)
	buf = appendBytesField(buf, 3, s.PublicKey)
	return buf, nil
}

func (s *SignedTx) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, rest, err := consumeTag(b)
		if err != nil {
			return err
		}
		b = rest
		switch {
		case num == 1 && typ == protowire.BytesType:
			s.Inner, b, err = consumeBytes(b)
		case num == 2 && typ == protowire.BytesType:
			s.Signature, b, err = consumeBytes(b)
		case num == 3 && typ == protowire.BytesType:
			s.PublicKey, b, err = consumeBytes(b)
		default:
			b, err = skipField(num, typ, b)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
