package deposit

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-dashboard/types"
)

func TestDepositCalldata(t *testing.T) {
	rec := newTestRecord(t, 0x03, 0x02, 64_000_000_000, holeskyForkVersion)

	data, err := DepositCalldata(rec)
	require.NoError(t, err)

	// deposit(bytes,bytes,bytes,bytes32)
	assert.Equal(t, "22895118", hex.EncodeToString(data[:4]))
	// 4 head words, then length + padded content for each bytes argument
	assert.Len(t, data, 4+4*32+(32+64)+(32+32)+(32+96))

	decoded, err := DecodeDepositCalldata(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Pubkey, decoded.Pubkey)
	assert.Equal(t, rec.WithdrawalCredentials, decoded.WithdrawalCredentials)
	assert.Equal(t, rec.Signature, decoded.Signature)
	assert.Equal(t, rec.DepositDataRoot, decoded.DepositDataRoot)

	_, err = DecodeDepositCalldata([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	assert.Error(t, err)
}

func TestBuildDepositTx(t *testing.T) {
	rec := newTestRecord(t, 0x04, 0x01, 32_000_000_000, holeskyForkVersion)
	chain := &types.ChainConfig{
		ChainId:         holeskyChainID,
		DepositContract: "0x4242424242424242424242424242424242424242",
	}

	tx, err := BuildDepositTx(rec, chain)
	require.NoError(t, err)
	assert.Equal(t, uint64(holeskyChainID), tx.ChainId)
	assert.Equal(t, common.HexToAddress("0x4242424242424242424242424242424242424242"), tx.To)

	expectedValue, _ := new(big.Int).SetString("32000000000000000000", 10)
	assert.Equal(t, 0, expectedValue.Cmp(tx.Value.ToInt()))
	assert.Equal(t, uint64(0), uint64(tx.Gas))
	assert.Contains(t, tx.Label, "deposit 32 ETH")

	_, err = BuildDepositTx(rec, &types.ChainConfig{ChainId: 1})
	assert.Error(t, err)
}

func TestNewTopUpRecord(t *testing.T) {
	rec := newTestRecord(t, 0x05, 0x02, 5_000_000_000, holeskyForkVersion)

	topUp := NewTopUpRecord(rec.Pubkey, rec.WithdrawalCredentials, rec.Amount)
	assert.Equal(t, rec.DepositMessageRoot, topUp.DepositMessageRoot)
	assert.NotEqual(t, rec.DepositDataRoot, topUp.DepositDataRoot)
	assert.Equal(t, DataRootBytes(topUp), [32]byte(topUp.DepositDataRoot))

	data, err := DepositCalldata(topUp)
	require.NoError(t, err)
	decoded, err := DecodeDepositCalldata(data)
	require.NoError(t, err)
	assert.Equal(t, topUp.DepositDataRoot, decoded.DepositDataRoot)
}
