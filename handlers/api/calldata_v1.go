package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/types"
)

type APIWithdrawalCalldataRequest struct {
	ChainId     uint64                        `json:"chain_id"`
	Address     string                        `json:"address"`
	Addition    uint64                        `json:"addition"`
	Withdrawals []*services.WithdrawalRequest `json:"withdrawals"`
}

type APIConsolidationCalldataRequest struct {
	ChainId        uint64                           `json:"chain_id"`
	Address        string                           `json:"address"`
	Addition       uint64                           `json:"addition"`
	Consolidations []*services.ConsolidationRequest `json:"consolidations"`
}

type APITopUpCalldataRequest struct {
	ChainId uint64                   `json:"chain_id"`
	Address string                   `json:"address"`
	TopUps  []*services.TopUpRequest `json:"topups"`
}

func requestChainID(chainID uint64) uint64 {
	if chainID == 0 {
		resolved, _ := services.GlobalDashboardService.ResolveChainID("")
		return resolved
	}
	return chainID
}

// sendTxsResult reports policy violations as bad requests.
func sendTxsResult(w http.ResponseWriter, r *http.Request, txs []*types.TxDescriptor, err error) {
	if err == nil {
		sendOKResponse(w, r.URL.String(), txs)
		return
	}

	switch {
	case errors.Is(err, services.ErrUnknownChain):
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrValidatorApi):
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusBadGateway)
	default:
		sendBadRequestResponse(w, r.URL.String(), err.Error())
	}
}

func parseRequestAddress(w http.ResponseWriter, r *http.Request, value string) (common.Address, bool) {
	address, err := parseAddress(value)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return common.Address{}, false
	}
	return address, true
}

// APIWithdrawalCalldataV1 builds withdrawal request transactions
// @Summary Build withdrawal requests
// @Description Validates partial withdrawals and exits for validators of an address and returns request transactions including the queue fee as value. An amount of 0 requests a full exit.
// @Tags requests
// @Accept json
// @Produce json
// @Param request body APIWithdrawalCalldataRequest true "Withdrawals"
// @Success 200 {object} ApiResponse{data=[]types.TxDescriptor}
// @Router /v1/calldata/withdrawal [post]
func APIWithdrawalCalldataV1(w http.ResponseWriter, r *http.Request) {
	request := &APIWithdrawalCalldataRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	address, ok := parseRequestAddress(w, r, request.Address)
	if !ok {
		return
	}

	txs, err := services.GlobalDashboardService.BuildWithdrawalTxs(r.Context(), requestChainID(request.ChainId), address, request.Withdrawals, request.Addition)
	sendTxsResult(w, r, txs, err)
}

// APIConsolidationCalldataV1 builds consolidation request transactions
// @Summary Build consolidation requests
// @Description A source equal to the target switches a 0x01 validator to compounding credentials.
// @Tags requests
// @Accept json
// @Produce json
// @Param request body APIConsolidationCalldataRequest true "Consolidations"
// @Success 200 {object} ApiResponse{data=[]types.TxDescriptor}
// @Router /v1/calldata/consolidation [post]
func APIConsolidationCalldataV1(w http.ResponseWriter, r *http.Request) {
	request := &APIConsolidationCalldataRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	address, ok := parseRequestAddress(w, r, request.Address)
	if !ok {
		return
	}

	txs, err := services.GlobalDashboardService.BuildConsolidationTxs(r.Context(), requestChainID(request.ChainId), address, request.Consolidations, request.Addition)
	sendTxsResult(w, r, txs, err)
}

// APITopUpCalldataV1 builds deposit transactions topping up existing validators
// @Summary Build top-up deposits
// @Tags deposits
// @Accept json
// @Produce json
// @Param request body APITopUpCalldataRequest true "Top-ups"
// @Success 200 {object} ApiResponse{data=[]types.TxDescriptor}
// @Router /v1/calldata/topup [post]
func APITopUpCalldataV1(w http.ResponseWriter, r *http.Request) {
	request := &APITopUpCalldataRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	address, ok := parseRequestAddress(w, r, request.Address)
	if !ok {
		return
	}

	txs, err := services.GlobalDashboardService.BuildTopUpTxs(r.Context(), requestChainID(request.ChainId), address, request.TopUps)
	sendTxsResult(w, r, txs, err)
}
