package services

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/requests"
	"github.com/ethpandaops/validator-dashboard/txbatch"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/validators"
)

const (
	testChainID = 17000
	testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func testLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func testRegistry(t *testing.T) *chains.Registry {
	registry, err := chains.NewRegistry(map[string]*types.ChainConfig{
		"holesky": {
			Name:                  "Holesky",
			ChainId:               testChainID,
			GenesisForkVersion:    "0x01017000",
			DepositContract:       "0x4242424242424242424242424242424242424242",
			WithdrawalContract:    "0x00000961Ef480Eb55e80D19ad83579A64c007002",
			ConsolidationContract: "0x0000BBdDc7CE488642fb579F8B00f3a590007251",
		},
	})
	require.NoError(t, err)
	return registry
}

type fakeStorage struct {
	word []byte
	err  error
}

func (s *fakeStorage) GetStorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	return s.word, s.err
}

func storageProvider(storage *fakeStorage) StorageProvider {
	return func(ctx context.Context, chainID uint64) (requests.StorageReader, error) {
		return storage, nil
	}
}

type fakeValidators struct {
	list []*validators.Validator
}

func (f *fakeValidators) GetNormalizedValidators(ctx context.Context, address common.Address) ([]*validators.Validator, error) {
	return f.list, nil
}

func testValidator(index uint64, prefix byte, balance uint64) *validators.Validator {
	pubkey := phase0.BLSPubKey{}
	pubkey[0] = 0xa0
	pubkey[47] = byte(index)

	credentials := make([]byte, 32)
	credentials[0] = prefix
	copy(credentials[12:], common.HexToAddress(testAddress).Bytes())

	return validators.Normalize(&apiv1.Validator{
		Index:   phase0.ValidatorIndex(index),
		Balance: phase0.Gwei(balance),
		Status:  apiv1.ValidatorStateActiveOngoing,
		Validator: &phase0.Validator{
			PublicKey:             pubkey,
			WithdrawalCredentials: credentials,
			EffectiveBalance:      phase0.Gwei(32_000_000_000),
			ExitEpoch:             phase0.Epoch(0xffffffffffffffff),
			WithdrawableEpoch:     phase0.Epoch(0xffffffffffffffff),
		},
	}, nil, nil)
}

func queueWord(length uint64) []byte {
	word := make([]byte, 32)
	new(big.Int).SetUint64(length).FillBytes(word)
	return word
}

func newTestDashboard(t *testing.T, queueLength uint64) *DashboardService {
	return NewDashboardService(testLogger(), testRegistry(t), storageProvider(&fakeStorage{word: queueWord(queueLength)}), &fakeValidators{
		list: []*validators.Validator{
			testValidator(7, 0x02, 40_000_000_000),
			testValidator(8, 0x01, 32_000_000_000),
		},
	}, testChainID)
}

func TestResolveChainID(t *testing.T) {
	ds := newTestDashboard(t, 0)

	chainID, err := ds.ResolveChainID("")
	require.NoError(t, err)
	assert.Equal(t, uint64(testChainID), chainID)

	chainID, err = ds.ResolveChainID("1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chainID)

	_, err = ds.ResolveChainID("abc")
	assert.Error(t, err)

	_, err = ds.GetChain(1)
	assert.True(t, errors.Is(err, ErrUnknownChain))
}

func TestGetQueue(t *testing.T) {
	ds := newTestDashboard(t, 17)

	queue, err := ds.GetQueue(context.Background(), testChainID, requests.KindWithdrawal, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), queue.Length)
	assert.Equal(t, int64(2), queue.Fee.Int64())

	failing := NewDashboardService(testLogger(), testRegistry(t), storageProvider(&fakeStorage{err: errors.New("boom")}), nil, testChainID)
	queue, err = failing.GetQueue(context.Background(), testChainID, requests.KindConsolidation, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), queue.Length)
	assert.Equal(t, int64(1), queue.Fee.Int64())

	_, err = ds.GetQueue(context.Background(), 1, requests.KindWithdrawal, 0)
	assert.Error(t, err)
}

func TestBuildWithdrawalTxs(t *testing.T) {
	ds := newTestDashboard(t, 17)
	address := common.HexToAddress(testAddress)

	txs, err := ds.BuildWithdrawalTxs(context.Background(), testChainID, address, []*WithdrawalRequest{
		{ValidatorIndex: 7, Amount: "5"},
		{ValidatorIndex: 8, Amount: "0"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	pubkey, amount, err := requests.DecodeWithdrawalCalldata(hex.EncodeToString(txs[0].Data))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(pubkey, "07"))
	assert.Equal(t, uint64(5_000_000_000), amount)
	assert.Equal(t, common.HexToAddress("0x00000961Ef480Eb55e80D19ad83579A64c007002"), txs[0].To)
	assert.Equal(t, int64(2), txs[0].Value.ToInt().Int64())
	assert.Equal(t, uint64(requests.RequestGasLimit), uint64(txs[0].Gas))
	assert.Equal(t, "withdraw 5 ETH from validator 7", txs[0].Label)

	_, amount, err = requests.DecodeWithdrawalCalldata(hex.EncodeToString(txs[1].Data))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), amount)
	assert.Equal(t, "exit validator 8", txs[1].Label)
	assert.GreaterOrEqual(t, txs[1].Value.ToInt().Cmp(txs[0].Value.ToInt()), 0)

	// partial withdrawals need compounding credentials
	_, err = ds.BuildWithdrawalTxs(context.Background(), testChainID, address, []*WithdrawalRequest{{ValidatorIndex: 8, Amount: "1"}}, 0)
	assert.Error(t, err)

	_, err = ds.BuildWithdrawalTxs(context.Background(), testChainID, address, []*WithdrawalRequest{{ValidatorIndex: 99, Amount: "1"}}, 0)
	assert.True(t, errors.Is(err, ErrValidatorNotFound))
}

func TestBuildConsolidationTxs(t *testing.T) {
	ds := newTestDashboard(t, 0)
	address := common.HexToAddress(testAddress)

	txs, err := ds.BuildConsolidationTxs(context.Background(), testChainID, address, []*ConsolidationRequest{
		{SourceIndex: 8, TargetIndex: 7},
		{SourceIndex: 8, TargetIndex: 8},
	}, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	source, target, err := requests.DecodeConsolidationCalldata(hex.EncodeToString(txs[0].Data))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(source, "08"))
	assert.True(t, strings.HasSuffix(target, "07"))
	assert.Equal(t, common.HexToAddress("0x0000BBdDc7CE488642fb579F8B00f3a590007251"), txs[0].To)
	assert.Equal(t, "consolidate validator 8 into 7", txs[0].Label)
	assert.Equal(t, "switch validator 8 to compounding", txs[1].Label)

	// target must be compounding
	_, err = ds.BuildConsolidationTxs(context.Background(), testChainID, address, []*ConsolidationRequest{{SourceIndex: 7, TargetIndex: 8}}, 0)
	assert.Error(t, err)
}

func TestBuildTopUpTxs(t *testing.T) {
	ds := newTestDashboard(t, 0)
	address := common.HexToAddress(testAddress)

	txs, err := ds.BuildTopUpTxs(context.Background(), testChainID, address, []*TopUpRequest{{ValidatorIndex: 7, Amount: "1.5"}})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, common.HexToAddress("0x4242424242424242424242424242424242424242"), txs[0].To)
	assert.Equal(t, "1500000000000000000", txs[0].Value.ToInt().String())
	assert.Equal(t, "top up validator 7 with 1.5 ETH", txs[0].Label)

	// 0x01 validators are capped at 32 ETH
	_, err = ds.BuildTopUpTxs(context.Background(), testChainID, address, []*TopUpRequest{{ValidatorIndex: 8, Amount: "1"}})
	assert.Error(t, err)
}

func TestVerifyDepositsMalformed(t *testing.T) {
	ds := newTestDashboard(t, 0)

	result, err := ds.VerifyDeposits([]byte(`{"pubkey": "00"}`), testChainID)
	require.NoError(t, err)
	assert.False(t, result.Valid())
	require.NotNil(t, result.Error)
	assert.Equal(t, -1, result.Error.Index)
}

type scriptedTransport struct {
	mutex    sync.Mutex
	failures int
	calls    int
}

func (s *scriptedTransport) Submit(ctx context.Context, tx *types.TxDescriptor) (*txbatch.Submission, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("wallet rejected")
	}
	return &txbatch.Submission{TxHash: common.BytesToHash([]byte{byte(s.calls)})}, nil
}

func batchTxs(count int) []*types.TxDescriptor {
	txs := make([]*types.TxDescriptor, count)
	for idx := range txs {
		txs[idx] = &types.TxDescriptor{
			ChainId: testChainID,
			To:      common.HexToAddress("0x4242424242424242424242424242424242424242"),
			Label:   "item",
		}
	}
	return txs
}

func TestBatchServiceRetry(t *testing.T) {
	transport := &scriptedTransport{failures: 1}
	bs := NewBatchService(testLogger(), transport, nil)

	assert.Equal(t, ErrNoBatch, bs.Decide(txbatch.DecisionRetry))

	status, err := bs.Start(batchTxs(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.ID)

	require.Eventually(t, func() bool {
		current := bs.Current()
		return current.AwaitingFor != nil && *current.AwaitingFor == 0
	}, 2*time.Second, 5*time.Millisecond)

	current := bs.Current()
	assert.Equal(t, txbatch.StatusFailed, current.Items[0].Status)
	assert.Equal(t, txbatch.StatusPending, current.Items[1].Status)

	_, err = bs.Start(batchTxs(1))
	assert.Equal(t, ErrBatchRunning, err)

	require.NoError(t, bs.Decide(txbatch.DecisionRetry))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bs.Wait(ctx))

	current = bs.Current()
	assert.False(t, current.Running)
	assert.Empty(t, current.Error)
	assert.Equal(t, txbatch.StatusSuccess, current.Items[0].Status)
	assert.Equal(t, 2, current.Items[0].Attempts)
	assert.Equal(t, txbatch.StatusSuccess, current.Items[1].Status)
	assert.Equal(t, ErrNoDecisionWanted, bs.Decide(txbatch.DecisionSkip))
}

func TestBatchServiceOffline(t *testing.T) {
	signer := txbatch.NewOfflineSigner()
	bs := NewBatchService(testLogger(), txbatch.NewOfflineTransport(signer, nil, time.Millisecond, testLogger()), signer)
	assert.True(t, bs.OfflineEnabled())
	assert.Equal(t, txbatch.SignerIdle, bs.SignerState())

	_, err := bs.Start(batchTxs(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bs.PendingSignature() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, txbatch.SignerAwaiting, bs.SignerState())

	pending := bs.PendingSignature()
	assert.Equal(t, txbatch.ErrRequestMismatch, bs.SubmitSignature(pending.ID+1, nil, common.Hash{0x01}, ""))

	txHash := common.HexToHash("0xabcdef")
	require.NoError(t, bs.SubmitSignature(pending.ID, nil, txHash, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bs.Wait(ctx))

	current := bs.Current()
	assert.Equal(t, txbatch.StatusSuccess, current.Items[0].Status)
	assert.Equal(t, txHash.Hex(), current.Items[0].TxHash)
	assert.Equal(t, txbatch.SignerResolved, bs.SignerState())

	// cancelling rejects the outstanding request
	_, err = bs.Start(batchTxs(1))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return bs.PendingSignature() != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bs.Cancel())
	current = bs.Current()
	assert.False(t, current.Running)
	assert.Equal(t, context.Canceled.Error(), current.Error)
	assert.Nil(t, bs.PendingSignature())
}
