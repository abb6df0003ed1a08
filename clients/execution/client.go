package execution

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client wraps a single execution layer RPC endpoint.
type Client struct {
	name     string
	endpoint string
	headers  map[string]string
	chainID  uint64
	logger   logrus.FieldLogger

	initMutex sync.Mutex
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient is used to create a new execution client. The connection is opened by Initialize.
func NewClient(name, endpoint string, chainID uint64, headers map[string]string, logger logrus.FieldLogger) *Client {
	if name == "" {
		name = fmt.Sprintf("chain-%v", chainID)
	}

	return &Client{
		name:     name,
		endpoint: endpoint,
		headers:  headers,
		chainID:  chainID,
		logger:   logger.WithField("client", name),
	}
}

// Initialize dials the endpoint and checks it serves the configured chain.
func (ec *Client) Initialize(ctx context.Context) error {
	ec.initMutex.Lock()
	defer ec.initMutex.Unlock()

	if ec.ethClient != nil {
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, ec.endpoint)
	if err != nil {
		return errors.Wrapf(err, "error dialing %v", ec.name)
	}

	for hKey, hVal := range ec.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	ethClient := ethclient.NewClient(rpcClient)
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return errors.Wrapf(err, "error getting chain id from %v", ec.name)
	}
	if ec.chainID != 0 && chainID.Uint64() != ec.chainID {
		rpcClient.Close()
		return fmt.Errorf("client %v serves chain %v, expected %v", ec.name, chainID, ec.chainID)
	}

	ec.chainID = chainID.Uint64()
	ec.rpcClient = rpcClient
	ec.ethClient = ethClient

	version, err := ec.GetClientVersion(ctx)
	if err != nil {
		ec.logger.WithError(err).Debugf("error getting client version")
		version = "unknown"
	}
	ec.logger.Infof("connected to execution client %v (chain %v)", version, ec.chainID)
	return nil
}

func (ec *Client) GetName() string {
	return ec.name
}

func (ec *Client) GetChainID() uint64 {
	return ec.chainID
}

func (ec *Client) GetClientVersion(ctx context.Context) (string, error) {
	var result string
	err := ec.rpcClient.CallContext(ctx, &result, "web3_clientVersion")

	return result, err
}

func (ec *Client) GetStorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	return ec.ethClient.StorageAt(ctx, account, key, blockNumber)
}

func (ec *Client) GetLatestHeader(ctx context.Context) (*types.Header, error) {
	return ec.ethClient.HeaderByNumber(ctx, nil)
}

func (ec *Client) GetPendingNonce(ctx context.Context, wallet common.Address) (uint64, error) {
	return ec.ethClient.PendingNonceAt(ctx, wallet)
}

func (ec *Client) GetBalanceAt(ctx context.Context, wallet common.Address, blockNumber *big.Int) (*big.Int, error) {
	return ec.ethClient.BalanceAt(ctx, wallet, blockNumber)
}

func (ec *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return ec.ethClient.SuggestGasTipCap(ctx)
}

func (ec *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return ec.ethClient.EstimateGas(ctx, msg)
}

func (ec *Client) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return ec.ethClient.TransactionReceipt(ctx, txHash)
}

func (ec *Client) GetTransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	return ec.ethClient.TransactionByHash(ctx, txHash)
}

func (ec *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return ec.ethClient.SendTransaction(ctx, tx)
}

// Close shuts down the RPC connection.
func (ec *Client) Close() {
	ec.initMutex.Lock()
	defer ec.initMutex.Unlock()

	if ec.rpcClient != nil {
		ec.rpcClient.Close()
		ec.rpcClient = nil
		ec.ethClient = nil
	}
}
