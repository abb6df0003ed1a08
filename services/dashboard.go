package services

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/clients/execution"
	"github.com/ethpandaops/validator-dashboard/deposit"
	"github.com/ethpandaops/validator-dashboard/metrics"
	"github.com/ethpandaops/validator-dashboard/requests"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
	"github.com/ethpandaops/validator-dashboard/validators"
)

var (
	ErrUnknownChain      = errors.New("unknown chain")
	ErrValidatorNotFound = errors.New("validator not found for address")
	ErrValidatorApi      = errors.New("validator api unavailable")
)

// StorageProvider returns a storage reader connected to chainID.
type StorageProvider func(ctx context.Context, chainID uint64) (requests.StorageReader, error)

// ValidatorSource looks up the validators owned by a withdrawal address.
type ValidatorSource interface {
	GetNormalizedValidators(ctx context.Context, address common.Address) ([]*validators.Validator, error)
}

type DashboardService struct {
	logger         logrus.FieldLogger
	registry       *chains.Registry
	storage        StorageProvider
	validators     ValidatorSource
	defaultChainID uint64
	executionPool  *execution.Pool
}

var GlobalDashboardService *DashboardService

// InitDashboardService builds the global dashboard service from utils.Config.
func InitDashboardService(logger logrus.FieldLogger) error {
	if GlobalDashboardService != nil {
		return nil
	}

	registry, err := chains.LoadRegistry(utils.Config)
	if err != nil {
		return fmt.Errorf("error loading chain registry: %v", err)
	}

	executionPool := execution.NewPool(logger.WithField("service", "el-pool"))
	for idx := range utils.Config.ExecutionApi.Endpoints {
		endpoint := utils.Config.ExecutionApi.Endpoints[idx]
		if registry.Get(endpoint.ChainId) == nil {
			logger.Warnf("execution endpoint %v serves unregistered chain %v", endpoint.Name, endpoint.ChainId)
		}
		if _, err := executionPool.AddEndpoint(&endpoint); err != nil {
			return fmt.Errorf("error adding execution endpoint %v: %v", endpoint.Name, err)
		}
	}

	logger.Infof("execution endpoints configured for chains %v", executionPool.GetChainIDs())

	var validatorSource ValidatorSource
	if utils.Config.ValidatorApi.Endpoint != "" {
		client, err := validators.NewClient(validators.ClientConfig{
			Endpoint:  utils.Config.ValidatorApi.Endpoint,
			Headers:   utils.Config.ValidatorApi.Headers,
			Timeout:   utils.Config.ValidatorApi.Timeout,
			CacheSize: utils.Config.ValidatorApi.CacheSize,
			CacheTTL:  utils.Config.ValidatorApi.CacheTTL,

			RedisAddress: utils.Config.ValidatorApi.RedisCacheAddr,
			RedisPrefix:  utils.Config.ValidatorApi.RedisCachePrefix,
		}, logger.WithField("service", "validator-api"))
		if err != nil {
			return err
		}
		validatorSource = client
	} else {
		logger.Warn("no validator api endpoint configured, validator lookups are disabled")
	}

	storage := func(ctx context.Context, chainID uint64) (requests.StorageReader, error) {
		client, err := executionPool.GetClient(ctx, chainID)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	GlobalDashboardService = NewDashboardService(logger.WithField("service", "dashboard"), registry, storage, validatorSource, utils.Config.Chain.DefaultChainId)
	GlobalDashboardService.executionPool = executionPool
	return nil
}

func NewDashboardService(logger logrus.FieldLogger, registry *chains.Registry, storage StorageProvider, validatorSource ValidatorSource, defaultChainID uint64) *DashboardService {
	return &DashboardService{
		logger:         logger,
		registry:       registry,
		storage:        storage,
		validators:     validatorSource,
		defaultChainID: defaultChainID,
	}
}

func (ds *DashboardService) Registry() *chains.Registry {
	return ds.registry
}

// ExecutionPool is nil unless the service was built by InitDashboardService.
func (ds *DashboardService) ExecutionPool() *execution.Pool {
	return ds.executionPool
}

// Close releases the execution clients and the validator cache.
func (ds *DashboardService) Close() {
	if ds.executionPool != nil {
		ds.executionPool.Close()
	}
	if closer, ok := ds.validators.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			ds.logger.WithError(err).Warn("error closing validator source")
		}
	}
}

// ResolveChainID parses a chain id parameter, falling back to the default chain.
func (ds *DashboardService) ResolveChainID(param string) (uint64, error) {
	if param == "" {
		return ds.defaultChainID, nil
	}
	chainID, err := strconv.ParseUint(param, 10, 64)
	if err != nil || chainID == 0 {
		return 0, fmt.Errorf("invalid chain id: %v", param)
	}
	return chainID, nil
}

func (ds *DashboardService) GetChain(chainID uint64) (*types.ChainConfig, error) {
	chain := ds.registry.Get(chainID)
	if chain == nil {
		return nil, errors.Wrapf(ErrUnknownChain, "chain %v", chainID)
	}
	return chain, nil
}

// DepositVerification is the outcome of a deposit file check.
type DepositVerification struct {
	Records       []*deposit.DepositRecord
	SignatureOk   []bool
	Error         *deposit.ValidationError
	ChainMismatch *deposit.ChainMismatchError
}

func (v *DepositVerification) Valid() bool {
	return v.Error == nil && v.ChainMismatch == nil
}

// VerifyDeposits checks a deposit file against chainID. Validation failures are reported in the result,
// only unexpected errors are returned.
func (ds *DashboardService) VerifyDeposits(data []byte, chainID uint64) (*DepositVerification, error) {
	result := &DepositVerification{}

	records, err := deposit.VerifyFile(data, chainID, ds.registry)
	if err != nil {
		var validationErr *deposit.ValidationError
		var mismatchErr *deposit.ChainMismatchError
		switch {
		case errors.As(err, &validationErr):
			result.Error = validationErr
			metrics.ObserveDepositVerification(string(validationErr.Kind))
		case errors.As(err, &mismatchErr):
			result.ChainMismatch = mismatchErr
			metrics.ObserveDepositVerification("chain-mismatch")
		default:
			return nil, err
		}
		return result, nil
	}

	result.Records = records
	result.SignatureOk = make([]bool, len(records))
	for idx, rec := range records {
		result.SignatureOk[idx] = deposit.VerifySignature(rec)
	}
	metrics.ObserveDepositVerification("valid")

	return result, nil
}

// BuildDepositTxs turns a verified deposit file into deposit contract transactions.
func (ds *DashboardService) BuildDepositTxs(data []byte, chainID uint64) ([]*types.TxDescriptor, error) {
	chain, err := ds.GetChain(chainID)
	if err != nil {
		return nil, err
	}

	records, err := deposit.VerifyFile(data, chainID, ds.registry)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.TxDescriptor, 0, len(records))
	for _, rec := range records {
		tx, err := deposit.BuildDepositTx(rec, chain)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetQueue reads the request queue of kind on chainID.
func (ds *DashboardService) GetQueue(ctx context.Context, chainID uint64, kind requests.RequestKind, addition uint64) (*requests.Queue, error) {
	chain, err := ds.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	contract, err := requests.ContractAddress(chain, kind)
	if err != nil {
		return nil, err
	}

	var queue *requests.Queue
	client, err := ds.storage(ctx, chainID)
	if err != nil {
		ds.logger.WithError(err).Warnf("no execution client for chain %v, assuming empty %v queue", chainID, kind)
		queue = requests.ComputeQueue("", addition)
	} else {
		queue = requests.NewQueueReader(client, ds.logger).ReadQueue(ctx, contract, addition)
	}

	fee, _ := queue.Fee.Float64()
	metrics.SetQueue(strconv.FormatUint(chainID, 10), string(kind), queue.Length, fee)

	return queue, nil
}

func (ds *DashboardService) GetValidators(ctx context.Context, address common.Address) ([]*validators.Validator, error) {
	if ds.validators == nil {
		return nil, errors.Wrap(ErrValidatorApi, "not configured")
	}
	list, err := ds.validators.GetNormalizedValidators(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidatorApi, err)
	}
	return list, nil
}

func (ds *DashboardService) getValidatorMap(ctx context.Context, address common.Address) (map[uint64]*validators.Validator, error) {
	list, err := ds.GetValidators(ctx, address)
	if err != nil {
		return nil, err
	}
	validatorMap := make(map[uint64]*validators.Validator, len(list))
	for _, validator := range list {
		validatorMap[validator.Index] = validator
	}
	return validatorMap, nil
}

func lookupValidator(validatorMap map[uint64]*validators.Validator, index uint64) (*validators.Validator, error) {
	validator := validatorMap[index]
	if validator == nil {
		return nil, errors.Wrapf(ErrValidatorNotFound, "validator %v", index)
	}
	return validator, nil
}

type WithdrawalRequest struct {
	ValidatorIndex uint64 `json:"validator_index"`
	Amount         string `json:"amount"`
}

type ConsolidationRequest struct {
	SourceIndex uint64 `json:"source_index"`
	TargetIndex uint64 `json:"target_index"`
}

// BuildWithdrawalTxs validates withdrawal requests for validators of address and builds one
// request transaction per entry. Entry i pays the fee quoted for the queue plus addition+i.
func (ds *DashboardService) BuildWithdrawalTxs(ctx context.Context, chainID uint64, address common.Address, entries []*WithdrawalRequest, addition uint64) ([]*types.TxDescriptor, error) {
	if len(entries) == 0 {
		return nil, errors.New("no withdrawals requested")
	}
	chain, err := ds.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	validatorMap, err := ds.getValidatorMap(ctx, address)
	if err != nil {
		return nil, err
	}

	queue, err := ds.GetQueue(ctx, chainID, requests.KindWithdrawal, addition)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.TxDescriptor, 0, len(entries))
	for idx, request := range entries {
		validator, err := lookupValidator(validatorMap, request.ValidatorIndex)
		if err != nil {
			return nil, err
		}

		entry := &validators.WithdrawalEntry{Validator: validator, Amount: request.Amount}
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		amount, err := entry.AmountGwei()
		if err != nil {
			return nil, err
		}

		calldata := requests.WithdrawalCalldataGwei(strings.TrimPrefix(validator.Pubkey, "0x"), amount)
		fee := requests.RequestFee(new(big.Int).SetUint64(queue.Length + addition + uint64(idx)))
		tx, err := requests.BuildRequestTx(chain, requests.KindWithdrawal, calldata, fee)
		if err != nil {
			return nil, err
		}
		if amount == 0 {
			tx.Label = fmt.Sprintf("exit validator %v", validator.Index)
		} else {
			tx.Label = fmt.Sprintf("withdraw %v ETH from validator %v", utils.GWeiUint64ToEther(amount), validator.Index)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// BuildConsolidationTxs validates consolidations between validators of address and builds one
// request transaction per entry, priced like BuildWithdrawalTxs.
func (ds *DashboardService) BuildConsolidationTxs(ctx context.Context, chainID uint64, address common.Address, entries []*ConsolidationRequest, addition uint64) ([]*types.TxDescriptor, error) {
	if len(entries) == 0 {
		return nil, errors.New("no consolidations requested")
	}
	chain, err := ds.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	validatorMap, err := ds.getValidatorMap(ctx, address)
	if err != nil {
		return nil, err
	}

	queue, err := ds.GetQueue(ctx, chainID, requests.KindConsolidation, addition)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.TxDescriptor, 0, len(entries))
	for idx, request := range entries {
		source, err := lookupValidator(validatorMap, request.SourceIndex)
		if err != nil {
			return nil, err
		}
		target, err := lookupValidator(validatorMap, request.TargetIndex)
		if err != nil {
			return nil, err
		}

		entry := &validators.ConsolidateEntry{Source: source, Target: target}
		if err := entry.Validate(); err != nil {
			return nil, err
		}

		calldata := requests.ConsolidationCalldata(strings.TrimPrefix(source.Pubkey, "0x"), strings.TrimPrefix(target.Pubkey, "0x"))
		fee := requests.RequestFee(new(big.Int).SetUint64(queue.Length + addition + uint64(idx)))
		tx, err := requests.BuildRequestTx(chain, requests.KindConsolidation, calldata, fee)
		if err != nil {
			return nil, err
		}
		if entry.IsUpgrade() {
			tx.Label = fmt.Sprintf("switch validator %v to compounding", source.Index)
		} else {
			tx.Label = fmt.Sprintf("consolidate validator %v into %v", source.Index, target.Index)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

type TopUpRequest struct {
	ValidatorIndex uint64 `json:"validator_index"`
	Amount         string `json:"amount"`
}

// BuildTopUpTxs builds deposit contract transactions adding balance to validators of address.
func (ds *DashboardService) BuildTopUpTxs(ctx context.Context, chainID uint64, address common.Address, entries []*TopUpRequest) ([]*types.TxDescriptor, error) {
	if len(entries) == 0 {
		return nil, errors.New("no top-ups requested")
	}
	chain, err := ds.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	validatorMap, err := ds.getValidatorMap(ctx, address)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.TxDescriptor, 0, len(entries))
	for _, request := range entries {
		validator, err := lookupValidator(validatorMap, request.ValidatorIndex)
		if err != nil {
			return nil, err
		}

		entry := &validators.TopUpEntry{Validator: validator, Amount: request.Amount}
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		amount, err := entry.AmountGwei()
		if err != nil {
			return nil, err
		}

		pubkey, err := hexutil.Decode(validator.Pubkey)
		if err != nil || len(pubkey) != len(phase0.BLSPubKey{}) {
			return nil, errors.Errorf("validator %v has an invalid pubkey", validator.Index)
		}

		rec := deposit.NewTopUpRecord(phase0.BLSPubKey(pubkey), topUpCredentials(validator), phase0.Gwei(amount))
		tx, err := deposit.BuildDepositTx(rec, chain)
		if err != nil {
			return nil, err
		}
		tx.Label = fmt.Sprintf("top up validator %v with %v ETH", validator.Index, utils.GWeiUint64ToEther(amount))
		txs = append(txs, tx)
	}

	return txs, nil
}

func topUpCredentials(validator *validators.Validator) [32]byte {
	var credentials [32]byte
	if !validator.HasExecutionCredentials() {
		return credentials
	}
	if validator.IsCompounding() {
		credentials[0] = utils.CompoundingWithdrawalPrefix
	} else {
		credentials[0] = utils.ExecutionWithdrawalPrefix
	}
	copy(credentials[12:], common.HexToAddress(validator.WithdrawalAddress).Bytes())
	return credentials
}
