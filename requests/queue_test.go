package requests

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageWord(value string) string {
	return "0x" + strings.Repeat("0", 64-len(value)) + value
}

func TestParseQueueLength(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want uint64
	}{
		{name: "empty", raw: "", want: 0},
		{name: "zero word", raw: storageWord("0"), want: 0},
		{name: "five", raw: storageWord("5"), want: 5},
		{name: "no prefix", raw: strings.TrimPrefix(storageWord("14"), "0x"), want: 20},
		{name: "short word", raw: "0x0100", want: 256},
		{name: "excess inhibitor", raw: "0x" + strings.Repeat("f", 64), want: 0},
		{name: "oversized inhibitor", raw: "0x" + strings.Repeat("f", 66), want: 0},
		{name: "above uint64", raw: storageWord("10000000000000000"), want: 0},
		{name: "max uint64", raw: storageWord("ffffffffffffffff"), want: 18446744073709551615},
		{name: "not hex", raw: "0xzz", want: 0},
		{name: "odd length", raw: "0x123", want: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ParseQueueLength(test.raw))
		})
	}
}

func TestRequestFeeValues(t *testing.T) {
	tests := []struct {
		excess int64
		fee    int64
	}{
		{excess: 0, fee: 1},
		{excess: 5, fee: 1},
		{excess: 17, fee: 2},
		{excess: 20, fee: 3},
	}

	for _, test := range tests {
		assert.Equal(t, big.NewInt(test.fee), RequestFee(big.NewInt(test.excess)), "excess %v", test.excess)
	}
}

func TestComputeQueueMonotonic(t *testing.T) {
	low := ComputeQueue(storageWord("5"), 0)
	high := ComputeQueue(storageWord("14"), 0)
	assert.Equal(t, uint64(5), low.Length)
	assert.Equal(t, uint64(20), high.Length)
	assert.Equal(t, 1, high.Fee.Cmp(low.Fee))

	previous := big.NewInt(0)
	for length := uint64(0); length < 1500; length += 7 {
		queue := ComputeQueue(storageWord(big.NewInt(int64(length)).Text(16)), 0)
		assert.True(t, queue.Fee.Cmp(previous) >= 0, "fee decreased at length %v", length)
		previous = queue.Fee
	}

	previous = big.NewInt(0)
	for addition := uint64(0); addition < 200; addition++ {
		queue := ComputeQueue(storageWord("40"), addition)
		assert.True(t, queue.Fee.Cmp(previous) >= 0, "fee decreased at addition %v", addition)
		previous = queue.Fee
	}
}

func TestComputeQueueLargeExcess(t *testing.T) {
	// fees for realistic queue sizes exceed 64 bit integers
	queue := ComputeQueue(storageWord("7d0"), 0)
	assert.Equal(t, uint64(2000), queue.Length)
	assert.Greater(t, queue.Fee.BitLen(), 64)
}

func TestComputeQueueDisabled(t *testing.T) {
	queue := ComputeQueue("0x"+strings.Repeat("f", 64), 1)
	assert.Equal(t, uint64(0), queue.Length)
	assert.Equal(t, uint64(1), queue.Addition)
	require.NotNil(t, queue.Fee)
	assert.Equal(t, big.NewInt(1), queue.Fee)
}

type mockStorageReader struct {
	value []byte
	err   error
	calls int
}

func (m *mockStorageReader) GetStorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	m.calls++
	return m.value, m.err
}

func TestQueueReader(t *testing.T) {
	logger, hook := test.NewNullLogger()
	contract := common.HexToAddress("0x00000961Ef480Eb55e80D19ad83579A64c007002")

	word := make([]byte, 32)
	word[31] = 20
	reader := NewQueueReader(&mockStorageReader{value: word}, logger)
	queue := reader.ReadQueue(context.Background(), contract, 0)
	assert.Equal(t, uint64(20), queue.Length)
	assert.Equal(t, big.NewInt(3), queue.Fee)
	assert.Empty(t, hook.AllEntries())

	failing := &mockStorageReader{err: errors.New("connection refused")}
	reader = NewQueueReader(failing, logger)
	queue = reader.ReadQueue(context.Background(), contract, 2)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, uint64(0), queue.Length)
	assert.Equal(t, big.NewInt(1), queue.Fee)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
