package types

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// HexEmpty is the sentinel rendered wherever callers expect a hex string but
// the chain returned no data.
const HexEmpty = "0x0"

// EncodeHex renders b as lower-case 0x-prefixed hex. Empty input renders as
// HexEmpty.
func EncodeHex(b []byte) string {
	if len(b) == 0 {
		return HexEmpty
	}
	return hexutil.Encode(b)
}

// DecodeHex decodes a 0x-prefixed hex string. Unlike hexutil.Decode it
// tolerates odd-length input by left-padding a zero nibble, and decodes the
// HexEmpty sentinel to no bytes.
func DecodeHex(s string) ([]byte, error) {
	if s == "" || s == HexEmpty || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, errors.Errorf("hex string without 0x prefix: %q", s)
	}
	h := s[2:]
	if len(h)%2 != 0 {
		h = "0" + h
	}
	b, err := hex.DecodeString(strings.ToLower(h))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex string %q", s)
	}
	return b, nil
}

// EncodeBase64 renders b in the chain's standard base64 wire encoding.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes the chain's standard base64 wire encoding.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 payload")
	}
	return b, nil
}
