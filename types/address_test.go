package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/types"
)

func TestLocalAddressFromHex(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		expPass bool
	}{
		{"valid lower-case", "0x7cb61d4117ae31a12e393a1cfa3bac666481d02e", true},
		{"valid mixed-case", "0x7cB61D4117AE31a12E393a1Cfa3BaC666481D02E", true},
		{"missing prefix", "7cb61d4117ae31a12e393a1cfa3bac666481d02e", false},
		{"too short", "0x7cb61d41", false},
		{"too long", "0x7cb61d4117ae31a12e393a1cfa3bac666481d02e00", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			local, err := types.LocalAddressFromHex(tc.input)
			if !tc.expPass {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, []byte(local), types.LocalAddressLength)
			// rendering is always lower-case regardless of input case
			require.Equal(t, "0x7cb61d4117ae31a12e393a1cfa3bac666481d02e", local.String())
		})
	}
}

func TestAddressRoundTrip(t *testing.T) {
	local, err := types.LocalAddressFromHex("0x7cb61d4117ae31a12e393a1cfa3bac666481d02e")
	require.NoError(t, err)

	addr := types.NewAddress("default", local)
	require.Equal(t, "default:0x7cb61d4117ae31a12e393a1cfa3bac666481d02e", addr.String())

	parsed, err := types.ParseAddress(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(parsed))
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"default",
		"default:",
		"default:0x12",
		":0x7cb61d4117ae31a12e393a1cfa3bac666481d02e",
	} {
		_, err := types.ParseAddress(input)
		if input == ":0x7cb61d4117ae31a12e393a1cfa3bac666481d02e" {
			// an empty chain id still parses; only the local part is validated
			require.NoError(t, err, input)
			continue
		}
		require.Error(t, err, input)
	}
}

func TestZeroAddress(t *testing.T) {
	zero := types.ZeroAddress("default")
	require.Equal(t, "default:0x0000000000000000000000000000000000000000", zero.String())
	require.False(t, zero.IsEmpty())
	require.True(t, types.Address{}.IsEmpty())
}
