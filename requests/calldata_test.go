package requests

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-dashboard/types"
)

var (
	sourcePubkey = "a99a76ed7796f7be22d5b7e85deeb7c5677e88e511e0b337618f8c4eb61349b4bf2d153f649f7b53359fe8b94a38e44c"
	targetPubkey = "b89bebc699769726a318c8e9971bd3171297c61aea4a6578a7a4f94b547dcba5bac16a89108b6b6a1fe3695d1a874a0b"
)

func TestConsolidationCalldata(t *testing.T) {
	calldata := ConsolidationCalldata(sourcePubkey, targetPubkey)
	assert.Equal(t, "0x"+sourcePubkey+targetPubkey, calldata)
	assert.Len(t, calldata, 2+192)

	source, target, err := DecodeConsolidationCalldata(calldata)
	require.NoError(t, err)
	assert.Equal(t, sourcePubkey, source)
	assert.Equal(t, targetPubkey, target)

	_, _, err = DecodeConsolidationCalldata("0x" + sourcePubkey)
	assert.Error(t, err)
}

func TestWithdrawalCalldata(t *testing.T) {
	tests := []struct {
		amount string
		suffix string
		gwei   uint64
	}{
		{amount: "16", suffix: "00000003b9aca000", gwei: 16_000_000_000},
		{amount: "0", suffix: "0000000000000000", gwei: 0},
		{amount: "0.000000001", suffix: "0000000000000001", gwei: 1},
		{amount: "1.5", suffix: "0000000059682f00", gwei: 1_500_000_000},
		{amount: "2048", suffix: "000001dcd6500000", gwei: 2_048_000_000_000},
	}

	for _, test := range tests {
		t.Run(test.amount, func(t *testing.T) {
			calldata, err := WithdrawalCalldata(sourcePubkey, test.amount)
			require.NoError(t, err)
			assert.Equal(t, "0x"+sourcePubkey+test.suffix, calldata)
			assert.Len(t, calldata, 2+112)

			pubkey, gwei, err := DecodeWithdrawalCalldata(calldata)
			require.NoError(t, err)
			assert.Equal(t, sourcePubkey, pubkey)
			assert.Equal(t, test.gwei, gwei)
		})
	}

	_, err := WithdrawalCalldata(sourcePubkey, "sixteen")
	assert.Error(t, err)

	_, _, err = DecodeWithdrawalCalldata("0x" + sourcePubkey + "zz")
	assert.Error(t, err)
}

func TestBuildRequestTx(t *testing.T) {
	chain := &types.ChainConfig{
		ChainId:               1,
		WithdrawalContract:    "0x00000961Ef480Eb55e80D19ad83579A64c007002",
		ConsolidationContract: "0x0000BBdDc7CE488642fb579F8B00f3a590007251",
	}

	calldata, err := WithdrawalCalldata(sourcePubkey, "16")
	require.NoError(t, err)

	tx, err := BuildRequestTx(chain, KindWithdrawal, calldata, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(chain.WithdrawalContract), tx.To)
	assert.Equal(t, int64(3), tx.Value.ToInt().Int64())
	assert.Equal(t, calldata, tx.Data.String())
	assert.Equal(t, RequestGasLimit, uint64(tx.Gas))

	tx, err = BuildRequestTx(chain, KindConsolidation, ConsolidationCalldata(sourcePubkey, targetPubkey), nil)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(chain.ConsolidationContract), tx.To)
	assert.Equal(t, 0, tx.Value.ToInt().Sign())
	assert.Len(t, tx.Data, 96)

	_, err = BuildRequestTx(&types.ChainConfig{ChainId: 5}, KindWithdrawal, calldata, nil)
	assert.ErrorContains(t, err, "no withdrawal request contract")

	_, err = BuildRequestTx(chain, KindWithdrawal, "0x"+strings.Repeat("z", 4), nil)
	assert.Error(t, err)

	_, err = ParseRequestKind("deposit")
	assert.Error(t, err)
	kind, err := ParseRequestKind("consolidation")
	require.NoError(t, err)
	assert.Equal(t, KindConsolidation, kind)
}
