package maincontract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
)

func TestIncrement_TlbEncodingDecoding(t *testing.T) {
	original := Increment{IncrementBy: 5}

	c, err := tlb.ToCell(original)
	require.NoError(t, err, "tlb.ToCell encoding failed")
	require.Equal(t, "64[0000000100000005]", c.Dump())

	var decoded Increment
	err = tlb.LoadFromCell(&decoded, c.BeginParse())
	require.NoError(t, err, "tlb.LoadFromCell decoding failed")
	require.Equal(t, original.IncrementBy, decoded.IncrementBy)
}

func TestDeposit_TlbEncoding(t *testing.T) {
	c, err := tlb.ToCell(Deposit{})
	require.NoError(t, err)
	require.Equal(t, "32[00000002]", c.Dump())

	var decoded Deposit
	require.NoError(t, tlb.LoadFromCell(&decoded, c.BeginParse()))

	increment, err := tlb.ToCell(Increment{IncrementBy: 1})
	require.NoError(t, err)
	err = tlb.LoadFromCell(&decoded, increment.BeginParse())
	require.Error(t, err, "the opcode must match")
}

func TestWithdraw_TlbEncodingDecoding(t *testing.T) {
	original := Withdraw{Amount: tlb.MustFromTON("1.5")}

	c, err := tlb.ToCell(original)
	require.NoError(t, err)

	slice := c.BeginParse()
	op, err := slice.LoadUInt(32)
	require.NoError(t, err)
	require.Equal(t, uint64(OpcodeWithdraw), op)
	amount, err := slice.LoadBigCoins()
	require.NoError(t, err)
	require.Equal(t, original.Amount.Nano(), amount)

	var decoded Withdraw
	require.NoError(t, tlb.LoadFromCell(&decoded, c.BeginParse()))
	require.Equal(t, original.Amount.Nano(), decoded.Amount.Nano())
}

func TestConfig_ToCell(t *testing.T) {
	sender := address.MustParseRawAddr("0:1111111111111111111111111111111111111111111111111111111111111111")
	owner := address.MustParseRawAddr("0:2222222222222222222222222222222222222222222222222222222222222222")

	testCases := []struct {
		name          string
		config        Config
		expectedOwner *address.Address
		expectError   bool
	}{
		{
			name:          "explicit owner",
			config:        Config{Number: 7, Address: sender, OwnerAddress: owner},
			expectedOwner: owner,
		},
		{
			name:          "owner defaults to address",
			config:        Config{Number: 0, Address: sender},
			expectedOwner: sender,
		},
		{
			name:        "missing address",
			config:      Config{Number: 1},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := tc.config.ToCell()
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, uint(32+267+267), c.BitsSize())

			var storage StorageData
			require.NoError(t, tlb.LoadFromCell(&storage, c.BeginParse()))
			require.Equal(t, tc.config.Number, storage.Counter)
			require.True(t, storage.RecentSender.Equals(sender))
			require.True(t, storage.Owner.Equals(tc.expectedOwner))
		})
	}
}
