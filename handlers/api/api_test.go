package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/requests"
	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/txbatch"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/validators"
)

const (
	testChainID = 17000
	testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

type fakeStorage struct {
	length uint64
}

func (s *fakeStorage) GetStorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	word := make([]byte, 32)
	new(big.Int).SetUint64(s.length).FillBytes(word)
	return word, nil
}

type fakeValidators struct {
	list []*validators.Validator
}

func (f *fakeValidators) GetNormalizedValidators(ctx context.Context, address common.Address) ([]*validators.Validator, error) {
	return f.list, nil
}

func testValidator(index uint64, prefix byte, balance uint64) *validators.Validator {
	pubkey := phase0.BLSPubKey{}
	pubkey[0] = 0xb0
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

type instantTransport struct {
	mutex sync.Mutex
	calls int
	fail  bool
}

func (t *instantTransport) Submit(ctx context.Context, tx *types.TxDescriptor) (*txbatch.Submission, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.calls++
	if t.fail {
		t.fail = false
		return nil, context.DeadlineExceeded
	}
	return &txbatch.Submission{TxHash: common.BytesToHash([]byte{byte(t.calls)})}, nil
}

func setupServices(t *testing.T, batch *services.BatchService) *mux.Router {
	logger, _ := logtest.NewNullLogger()

	registry, err := chains.NewRegistry(map[string]*types.ChainConfig{
		"holesky": {
			Name:                  "Holesky",
			ChainId:               testChainID,
			GenesisForkVersion:    "0x01017000",
			DepositContract:       "0x4242424242424242424242424242424242424242",
			WithdrawalContract:    "0x00000961Ef480Eb55e80D19ad83579A64c007002",
			ConsolidationContract: "0x0000BBdDc7CE488642fb579F8B00f3a590007251",
			ExplorerTxUrl:         "https://holesky.etherscan.io/tx/{hash}",
			ExplorerAddressUrl:    "https://holesky.etherscan.io/address/{address}",
		},
	})
	require.NoError(t, err)

	storage := &fakeStorage{length: 17}
	services.GlobalDashboardService = services.NewDashboardService(logger, registry, func(ctx context.Context, chainID uint64) (requests.StorageReader, error) {
		return storage, nil
	}, &fakeValidators{list: []*validators.Validator{
		testValidator(7, 0x02, 40_000_000_000),
		testValidator(8, 0x01, 32_000_000_000),
	}}, testChainID)

	if batch == nil {
		batch = services.NewBatchService(logger, &instantTransport{}, nil)
	}
	services.GlobalBatchService = batch

	t.Cleanup(func() {
		services.GlobalDashboardService = nil
		services.GlobalBatchService = nil
	})

	router := mux.NewRouter()
	RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router http.Handler, method string, path string, body interface{}) (int, *ApiResponse, json.RawMessage) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	return rec.Code, &ApiResponse{Status: raw.Status}, raw.Data
}

func TestChainEndpoints(t *testing.T) {
	router := setupServices(t, nil)

	code, resp, data := doRequest(t, router, http.MethodGet, "/api/v1/chains/17000", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", resp.Status)

	chain := &APIChainInfo{}
	require.NoError(t, json.Unmarshal(data, chain))
	assert.Equal(t, "Holesky", chain.Name)
	assert.Equal(t, "0x01017000", chain.GenesisForkVersion)

	code, resp, _ = doRequest(t, router, http.MethodGet, "/api/v1/chains/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, resp.Status, "ERROR: ")

	code, _, data = doRequest(t, router, http.MethodGet, "/api/v1/chains", nil)
	require.Equal(t, http.StatusOK, code)
	var list []*APIChainInfo
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list, 1)
}

func TestQueueEndpoint(t *testing.T) {
	router := setupServices(t, nil)

	code, _, data := doRequest(t, router, http.MethodGet, "/api/v1/queue/withdrawal?addition=0", nil)
	require.Equal(t, http.StatusOK, code)

	queue := &APIQueueData{}
	require.NoError(t, json.Unmarshal(data, queue))
	assert.Equal(t, uint64(17), queue.Length)
	assert.Equal(t, "2", queue.Fee)
	assert.Equal(t, "0.000000000000000002", queue.FeeEth)
	assert.Equal(t, "0x00000961Ef480Eb55e80D19ad83579A64c007002", queue.Contract)

	code, _, _ = doRequest(t, router, http.MethodGet, "/api/v1/queue/deposit", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = doRequest(t, router, http.MethodGet, "/api/v1/queue/consolidation?addition=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDepositVerifyEndpoint(t *testing.T) {
	router := setupServices(t, nil)

	code, _, data := doRequest(t, router, http.MethodPost, "/api/v1/deposits/verify?chain_id=17000", []byte(`[{"pubkey": "abc"}]`))
	require.Equal(t, http.StatusOK, code)

	result := &APIDepositVerifyData{}
	require.NoError(t, json.Unmarshal(data, result))
	assert.False(t, result.Valid)
	require.NotNil(t, result.Error)
	assert.Equal(t, "malformed", result.Error.Kind)
	assert.Equal(t, 0, result.Error.Index)
}

func TestValidatorsEndpoint(t *testing.T) {
	router := setupServices(t, nil)

	code, _, data := doRequest(t, router, http.MethodGet, "/api/v1/validators/"+testAddress, nil)
	require.Equal(t, http.StatusOK, code)

	result := &APIValidatorsData{}
	require.NoError(t, json.Unmarshal(data, result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "02", result.Validators[0].CredentialType)
	assert.Equal(t, "https://holesky.etherscan.io/address/"+common.HexToAddress(testAddress).Hex(), result.AddressUrl)

	code, _, _ = doRequest(t, router, http.MethodGet, "/api/v1/validators/"+testAddress+"?chain_id=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = doRequest(t, router, http.MethodGet, "/api/v1/validators/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCalldataEndpoints(t *testing.T) {
	router := setupServices(t, nil)

	code, _, data := doRequest(t, router, http.MethodPost, "/api/v1/calldata/withdrawal", &APIWithdrawalCalldataRequest{
		Address:     testAddress,
		Withdrawals: []*services.WithdrawalRequest{{ValidatorIndex: 7, Amount: "1.25"}},
	})
	require.Equal(t, http.StatusOK, code)

	var txs []*types.TxDescriptor
	require.NoError(t, json.Unmarshal(data, &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, uint64(testChainID), txs[0].ChainId)
	assert.Len(t, txs[0].Data, 56)
	assert.Equal(t, int64(2), txs[0].Value.ToInt().Int64())

	code, _, data = doRequest(t, router, http.MethodPost, "/api/v1/calldata/consolidation", &APIConsolidationCalldataRequest{
		ChainId:        testChainID,
		Address:        testAddress,
		Consolidations: []*services.ConsolidationRequest{{SourceIndex: 8, TargetIndex: 7}},
	})
	require.Equal(t, http.StatusOK, code)
	txs = nil
	require.NoError(t, json.Unmarshal(data, &txs))
	require.Len(t, txs, 1)
	assert.Len(t, txs[0].Data, 96)

	code, resp, _ := doRequest(t, router, http.MethodPost, "/api/v1/calldata/withdrawal", &APIWithdrawalCalldataRequest{
		Address:     testAddress,
		Withdrawals: []*services.WithdrawalRequest{{ValidatorIndex: 7, Amount: "20"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Status, "at most")

	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/calldata/topup", []byte(`{"address": "`+testAddress+`", "unknown": 1}`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBatchEndpoints(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	transport := &instantTransport{fail: true}
	router := setupServices(t, services.NewBatchService(logger, transport, nil))

	code, _, _ := doRequest(t, router, http.MethodGet, "/api/v1/batches/current", nil)
	assert.Equal(t, http.StatusNotFound, code)

	tx := &types.TxDescriptor{ChainId: testChainID, To: common.HexToAddress("0x4242424242424242424242424242424242424242"), Label: "deposit"}
	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/batches", &APIBatchRequest{Transactions: []*types.TxDescriptor{tx}})
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		status := services.GlobalBatchService.Current()
		return status.AwaitingFor != nil
	}, 2*time.Second, 5*time.Millisecond)

	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/batches/current/decision", &APIBatchDecisionRequest{Decision: "maybe"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/batches/current/decision", &APIBatchDecisionRequest{Decision: "retry"})
	require.Equal(t, http.StatusOK, code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, services.GlobalBatchService.Wait(ctx))

	code, _, data := doRequest(t, router, http.MethodGet, "/api/v1/batches/current", nil)
	require.Equal(t, http.StatusOK, code)
	status := &services.BatchStatus{}
	require.NoError(t, json.Unmarshal(data, status))
	assert.False(t, status.Running)
	require.Len(t, status.Items, 1)
	assert.Equal(t, txbatch.StatusSuccess, status.Items[0].Status)
	assert.Equal(t, 2, status.Items[0].Attempts)
	assert.Equal(t, "https://holesky.etherscan.io/tx/"+status.Items[0].TxHash, status.Items[0].TxUrl)

	tx.ChainId = 1
	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/batches", &APIBatchRequest{Transactions: []*types.TxDescriptor{tx}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOfflineEndpoints(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	code, _, _ := doRequest(t, setupServices(t, nil), http.MethodGet, "/api/v1/offline/pending", nil)
	assert.Equal(t, http.StatusNotFound, code)

	signer := txbatch.NewOfflineSigner()
	router := setupServices(t, services.NewBatchService(logger, txbatch.NewOfflineTransport(signer, nil, time.Millisecond, logger), signer))

	code, _, data := doRequest(t, router, http.MethodGet, "/api/v1/offline/pending", nil)
	require.Equal(t, http.StatusOK, code)
	pending := &APIOfflinePendingData{}
	require.NoError(t, json.Unmarshal(data, pending))
	assert.Equal(t, txbatch.SignerIdle, pending.State)
	assert.Nil(t, pending.Request)

	tx := &types.TxDescriptor{ChainId: testChainID, To: common.HexToAddress("0x4242424242424242424242424242424242424242"), Label: "deposit"}
	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/batches", &APIBatchRequest{Transactions: []*types.TxDescriptor{tx}})
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		return services.GlobalBatchService.PendingSignature() != nil
	}, 2*time.Second, 5*time.Millisecond)

	code, _, data = doRequest(t, router, http.MethodGet, "/api/v1/offline/pending", nil)
	require.Equal(t, http.StatusOK, code)
	pending = &APIOfflinePendingData{}
	require.NoError(t, json.Unmarshal(data, pending))
	assert.Equal(t, txbatch.SignerAwaiting, pending.State)
	require.NotNil(t, pending.Request)

	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/offline/signature", &APIOfflineSignatureRequest{ID: pending.Request.ID})
	assert.Equal(t, http.StatusBadRequest, code)

	txHash := common.HexToHash("0x1234")
	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/offline/signature", &APIOfflineSignatureRequest{ID: pending.Request.ID, TxHash: &txHash})
	require.Equal(t, http.StatusOK, code)

	// resolution is one-shot
	code, _, _ = doRequest(t, router, http.MethodPost, "/api/v1/offline/signature", &APIOfflineSignatureRequest{ID: pending.Request.ID, TxHash: &txHash})
	assert.Equal(t, http.StatusConflict, code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, services.GlobalBatchService.Wait(ctx))
	assert.Equal(t, txHash.Hex(), services.GlobalBatchService.Current().Items[0].TxHash)
}
