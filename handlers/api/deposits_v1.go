package api

import (
	"encoding/hex"
	"io"
	"net/http"

	"github.com/ethpandaops/validator-dashboard/services"
)

type APIDepositVerifyData struct {
	Valid         bool                      `json:"valid"`
	Error         *APIDepositVerifyError    `json:"error,omitempty"`
	SwitchChainId uint64                    `json:"switch_chain_id,omitempty"`
	Deposits      []*APIVerifiedDepositInfo `json:"deposits,omitempty"`
}

type APIDepositVerifyError struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type APIVerifiedDepositInfo struct {
	Pubkey                string `json:"pubkey"`
	WithdrawalCredentials string `json:"withdrawal_credentials"`
	Amount                uint64 `json:"amount"`
	DepositDataRoot       string `json:"deposit_data_root"`
	SignatureValid        bool   `json:"signature_valid"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
}

// APIDepositsVerifyV1 checks an uploaded deposit file
// @Summary Verify deposit file
// @Description Checks fields, amounts, roots and fork version of a deposit file against the selected chain. A chain mismatch reports the chain the file was generated for.
// @Tags deposits
// @Accept json
// @Produce json
// @Param chain_id query int false "Chain id, defaults to the configured default chain"
// @Success 200 {object} ApiResponse{data=APIDepositVerifyData}
// @Router /v1/deposits/verify [post]
func APIDepositsVerifyV1(w http.ResponseWriter, r *http.Request) {
	chainID, err := resolveChainID(r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	result, err := services.GlobalDashboardService.VerifyDeposits(body, chainID)
	if err != nil {
		sendServerErrorResponse(w, r.URL.String(), err.Error())
		return
	}

	data := &APIDepositVerifyData{
		Valid: result.Valid(),
	}
	if result.Error != nil {
		data.Error = &APIDepositVerifyError{
			Kind:    string(result.Error.Kind),
			Index:   result.Error.Index,
			Field:   result.Error.Field,
			Message: result.Error.Message,
		}
	}
	if result.ChainMismatch != nil {
		data.SwitchChainId = result.ChainMismatch.ExpectedChainID
		data.Error = &APIDepositVerifyError{
			Kind:    "chain_mismatch",
			Index:   -1,
			Message: result.ChainMismatch.Error(),
		}
	}
	for idx, rec := range result.Records {
		data.Deposits = append(data.Deposits, &APIVerifiedDepositInfo{
			Pubkey:                rec.Pubkey.String(),
			WithdrawalCredentials: "0x" + hex.EncodeToString(rec.WithdrawalCredentials[:]),
			Amount:                uint64(rec.Amount),
			DepositDataRoot:       rec.DepositDataRoot.String(),
			SignatureValid:        result.SignatureOk[idx],
		})
	}

	sendOKResponse(w, r.URL.String(), data)
}

// APIDepositsTxsV1 turns a verified deposit file into deposit contract transactions
// @Summary Build deposit transactions
// @Tags deposits
// @Accept json
// @Produce json
// @Param chain_id query int false "Chain id"
// @Success 200 {object} ApiResponse{data=[]types.TxDescriptor}
// @Failure 400 {object} ApiResponse
// @Router /v1/deposits/transactions [post]
func APIDepositsTxsV1(w http.ResponseWriter, r *http.Request) {
	chainID, err := resolveChainID(r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	txs, err := services.GlobalDashboardService.BuildDepositTxs(body, chainID)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	sendOKResponse(w, r.URL.String(), txs)
}
