package txbatch

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-dashboard/types"
)

type scriptedTransport struct {
	mutex    sync.Mutex
	active   int32
	calls    []string
	failures map[string]int
}

func (t *scriptedTransport) Submit(ctx context.Context, tx *types.TxDescriptor) (*Submission, error) {
	if atomic.AddInt32(&t.active, 1) != 1 {
		panic("concurrent submit")
	}
	defer atomic.AddInt32(&t.active, -1)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.calls = append(t.calls, tx.Label)
	if t.failures[tx.Label] > 0 {
		t.failures[tx.Label]--
		return nil, fmt.Errorf("user rejected %v", tx.Label)
	}

	return &Submission{TxHash: common.BytesToHash([]byte(tx.Label))}, nil
}

func testItems(labels ...string) []*types.TxDescriptor {
	items := make([]*types.TxDescriptor, len(labels))
	for idx, label := range labels {
		items[idx] = &types.TxDescriptor{
			ChainId: 17000,
			To:      common.HexToAddress("0x00000961Ef480Eb55e80D19ad83579A64c007002"),
			Value:   (*hexutil.Big)(common.Big1),
			Label:   label,
		}
	}
	return items
}

func TestSequencerRetryAndSkip(t *testing.T) {
	transport := &scriptedTransport{failures: map[string]int{"b": 2, "c": 1}}
	decisions := map[string][]Decision{
		"b": {DecisionRetry, DecisionRetry},
		"c": {DecisionSkip},
	}

	logger, _ := test.NewNullLogger()
	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		assert.Equal(t, StatusFailed, item.Status)
		assert.Contains(t, item.Error, "user rejected")
		next := decisions[item.Label][0]
		decisions[item.Label] = decisions[item.Label][1:]
		return next, nil
	}, logger)

	updates := []ItemStatus{}
	sequencer.OnUpdate(func(result *ItemResult) {
		if result.Index == 2 {
			updates = append(updates, result.Status)
		}
	})

	results, err := sequencer.Run(context.Background(), testItems("a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "b", "b", "c", "d"}, transport.calls)
	require.Len(t, results, 4)

	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, common.BytesToHash([]byte("a")).Hex(), results[0].TxHash)

	assert.Equal(t, StatusSuccess, results[1].Status)
	assert.Equal(t, 3, results[1].Attempts)
	assert.Empty(t, results[1].Error)

	assert.Equal(t, StatusSkipped, results[2].Status)
	assert.Equal(t, "user rejected c", results[2].Error)
	assert.Equal(t, []ItemStatus{StatusSigning, StatusFailed, StatusSkipped}, updates)

	assert.Equal(t, StatusSuccess, results[3].Status)
}

func TestSequencerCancelledDuringDecision(t *testing.T) {
	transport := &scriptedTransport{failures: map[string]int{"a": 1}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, _ := test.NewNullLogger()
	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	}, logger)

	results, err := sequencer.Run(ctx, testItems("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusPending, results[1].Status)
	assert.Equal(t, []string{"a"}, transport.calls)
}

func TestSequencerInvalidDecision(t *testing.T) {
	transport := &scriptedTransport{failures: map[string]int{"a": 1}}

	logger, _ := test.NewNullLogger()
	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		return Decision(42), nil
	}, logger)

	_, err := sequencer.Run(context.Background(), testItems("a"))
	assert.ErrorContains(t, err, "invalid decision")
}

func TestSequencerRetryAfterBroadcast(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeChainClient{receiptStatus: ethtypes.ReceiptStatusSuccessful, receiptErrors: 1}
	transport, err := NewWalletTransport(testPrivateKey, staticClient(client), time.Millisecond, logger)
	require.NoError(t, err)

	decisions := 0
	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		decisions++
		require.NotNil(t, item.Broadcast)
		assert.Equal(t, item.Broadcast.TxHash.Hex(), item.TxHash)
		assert.Contains(t, item.Error, "connection reset by peer")
		return DecisionRetry, nil
	}, logger)

	items := testItems("deposit")
	items[0].Value = (*hexutil.Big)(new(big.Int).Mul(big.NewInt(32), big.NewInt(1e18)))

	results, err := sequencer.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, decisions)

	// the retry waits for the first transaction instead of sending a second one
	require.Len(t, client.sent, 1)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, client.sent[0].Hash().Hex(), results[0].TxHash)
	assert.Nil(t, results[0].Broadcast)
}

func TestSequencerRetryReplacesDroppedTx(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeChainClient{nonce: 4, receiptStatus: ethtypes.ReceiptStatusSuccessful, receiptErrors: 1}
	transport, err := NewWalletTransport(testPrivateKey, staticClient(client), time.Millisecond, logger)
	require.NoError(t, err)

	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		client.drop(item.Broadcast.TxHash)
		return DecisionRetry, nil
	}, logger)

	results, err := sequencer.Run(context.Background(), testItems("a"))
	require.NoError(t, err)

	require.Len(t, client.sent, 2)
	assert.Equal(t, uint64(4), client.sent[0].Nonce())
	assert.Equal(t, uint64(4), client.sent[1].Nonce())
	assert.NotEqual(t, client.sent[0].Hash(), client.sent[1].Hash())
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, client.sent[1].Hash().Hex(), results[0].TxHash)
}

func TestSequencerOfflineRetryKeepsSignature(t *testing.T) {
	logger, _ := test.NewNullLogger()
	signer := NewOfflineSigner()
	client := &fakeChainClient{receiptStatus: ethtypes.ReceiptStatusSuccessful, receiptErrors: 1}
	transport := NewOfflineTransport(signer, staticClient(client), time.Millisecond, logger)

	sequencer := NewSequencer(transport, func(ctx context.Context, item *ItemResult) (Decision, error) {
		return DecisionRetry, nil
	}, logger)

	go resolveNext(t, signer, func(request *SignatureRequest) *SignatureResult {
		return &SignatureResult{SignedTx: signDescriptor(t, request.Tx)}
	})

	results, err := sequencer.Run(context.Background(), testItems("a"))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Attempts)
	require.Len(t, client.sent, 1)
	assert.Equal(t, client.sent[0].Hash().Hex(), results[0].TxHash)

	// no second signature was requested
	assert.Equal(t, SignerResolved, signer.State())
	assert.Nil(t, signer.Pending())
}

func TestParseDecision(t *testing.T) {
	decision, err := ParseDecision("retry")
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision)
	assert.Equal(t, "skip", DecisionSkip.String())

	_, err = ParseDecision("drop")
	assert.Error(t, err)

	assert.True(t, StatusSkipped.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
}
