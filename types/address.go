package types

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// LocalAddressLength is the byte length of the chain's account identifiers.
const LocalAddressLength = 20

// LocalAddress is the chain-local account identifier, the 20-byte suffix of
// the keccak hash of an account public key.
type LocalAddress []byte

// LocalAddressFromHex parses a 0x-prefixed hex string into a LocalAddress.
func LocalAddressFromHex(s string) (LocalAddress, error) {
	b, err := hexutil.Decode(strings.ToLower(s))
	if err != nil {
		return nil, errors.Wrap(err, "invalid local address")
	}
	if len(b) != LocalAddressLength {
		return nil, errors.Errorf("invalid local address length %d", len(b))
	}
	return LocalAddress(b), nil
}

// String renders the address as lower-case 0x-prefixed hex.
func (a LocalAddress) String() string {
	return hexutil.Encode(a)
}

func (a LocalAddress) Equal(other LocalAddress) bool {
	return bytes.Equal(a, other)
}

// Address identifies an account on a specific chain. It is an immutable value;
// the chain identifier never changes after construction.
type Address struct {
	ChainID string
	Local   LocalAddress
}

// NewAddress returns the Address for the given chain and local identifier.
func NewAddress(chainID string, local LocalAddress) Address {
	return Address{ChainID: chainID, Local: local}
}

// ZeroAddress returns the all-zero address on the given chain, used as the
// deploy target for contract creation transactions.
func ZeroAddress(chainID string) Address {
	return Address{ChainID: chainID, Local: make(LocalAddress, LocalAddressLength)}
}

// ParseAddress parses the "<chainID>:0x<hex>" form produced by String.
func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Address{}, errors.Errorf("invalid address %q", s)
	}
	local, err := LocalAddressFromHex(parts[1])
	if err != nil {
		return Address{}, errors.Wrapf(err, "invalid address %q", s)
	}
	return Address{ChainID: parts[0], Local: local}, nil
}

// String renders the address as "<chainID>:0x<hex-local>" with lower-case hex.
func (a Address) String() string {
	return a.ChainID + ":" + a.Local.String()
}

func (a Address) Equal(other Address) bool {
	return a.ChainID == other.ChainID && a.Local.Equal(other.Local)
}

// IsEmpty reports whether the address carries no identity at all.
func (a Address) IsEmpty() bool {
	return a.ChainID == "" && len(a.Local) == 0
}
