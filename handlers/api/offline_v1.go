package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/txbatch"
)

type APIOfflinePendingData struct {
	State   txbatch.SignerState       `json:"state"`
	Request *txbatch.SignatureRequest `json:"request,omitempty"`
}

type APIOfflineSignatureRequest struct {
	ID       uint64        `json:"id"`
	SignedTx hexutil.Bytes `json:"signed_tx,omitempty"`
	TxHash   *common.Hash  `json:"tx_hash,omitempty"`
	Reject   string        `json:"reject,omitempty"`
}

// APIOfflinePendingV1 returns the transaction waiting for the external signer
// @Summary Get pending offline signature request
// @Tags offline
// @Produce json
// @Success 200 {object} ApiResponse{data=APIOfflinePendingData}
// @Router /v1/offline/pending [get]
func APIOfflinePendingV1(w http.ResponseWriter, r *http.Request) {
	if !services.GlobalBatchService.OfflineEnabled() {
		sendErrorWithCodeResponse(w, r.URL.String(), services.ErrOfflineDisabled.Error(), http.StatusNotFound)
		return
	}

	sendOKResponse(w, r.URL.String(), &APIOfflinePendingData{
		State:   services.GlobalBatchService.SignerState(),
		Request: services.GlobalBatchService.PendingSignature(),
	})
}

// APIOfflineSignatureV1 resolves the pending signature request
// @Summary Submit offline signature
// @Description Resolves the pending request once, with a signed raw transaction, the hash of a transaction broadcast by the signer, or a rejection.
// @Tags offline
// @Accept json
// @Produce json
// @Param request body APIOfflineSignatureRequest true "Signature"
// @Success 200 {object} ApiResponse
// @Failure 409 {object} ApiResponse
// @Router /v1/offline/signature [post]
func APIOfflineSignatureV1(w http.ResponseWriter, r *http.Request) {
	request := &APIOfflineSignatureRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	var txHash common.Hash
	if request.TxHash != nil {
		txHash = *request.TxHash
	}

	err := services.GlobalBatchService.SubmitSignature(request.ID, request.SignedTx, txHash, request.Reject)
	switch {
	case err == nil:
		sendOKResponse(w, r.URL.String(), nil)
	case errors.Is(err, services.ErrOfflineDisabled):
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
	case errors.Is(err, txbatch.ErrSignatureEmpty):
		sendBadRequestResponse(w, r.URL.String(), err.Error())
	default:
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusConflict)
	}
}
