package requests

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/validator-dashboard/types"
)

// RequestKind selects the execution layer request contract.
type RequestKind string

const (
	KindWithdrawal    RequestKind = "withdrawal"
	KindConsolidation RequestKind = "consolidation"
)

// RequestGasLimit is the gas limit set on request transactions.
const RequestGasLimit uint64 = 200_000

// ParseRequestKind validates a request kind from user input.
func ParseRequestKind(kind string) (RequestKind, error) {
	switch RequestKind(kind) {
	case KindWithdrawal, KindConsolidation:
		return RequestKind(kind), nil
	}
	return "", fmt.Errorf("unknown request kind: %v", kind)
}

// ContractAddress returns the request contract of the given kind for a chain.
func ContractAddress(chain *types.ChainConfig, kind RequestKind) (common.Address, error) {
	if chain == nil {
		return common.Address{}, fmt.Errorf("unknown chain")
	}

	var address string
	switch kind {
	case KindWithdrawal:
		address = chain.WithdrawalContract
	case KindConsolidation:
		address = chain.ConsolidationContract
	default:
		return common.Address{}, fmt.Errorf("unknown request kind: %v", kind)
	}

	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("chain %v has no %v request contract", chain.ChainId, kind)
	}
	return common.HexToAddress(address), nil
}

// BuildRequestTx wraps request calldata into a transaction paying fee to the request contract.
func BuildRequestTx(chain *types.ChainConfig, kind RequestKind, calldata string, fee *big.Int) (*types.TxDescriptor, error) {
	contract, err := ContractAddress(chain, kind)
	if err != nil {
		return nil, err
	}

	data, err := hexutil.Decode(calldata)
	if err != nil {
		return nil, fmt.Errorf("invalid %v calldata: %w", kind, err)
	}

	value := new(big.Int)
	if fee != nil {
		value.Set(fee)
	}

	return &types.TxDescriptor{
		ChainId: chain.ChainId,
		To:      contract,
		Value:   (*hexutil.Big)(value),
		Data:    data,
		Gas:     hexutil.Uint64(RequestGasLimit),
		Label:   fmt.Sprintf("%v request", kind),
	}, nil
}
