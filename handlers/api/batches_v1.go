package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/txbatch"
	"github.com/ethpandaops/validator-dashboard/types"
)

type APIBatchRequest struct {
	Transactions []*types.TxDescriptor `json:"transactions"`
}

type APIBatchDecisionRequest struct {
	Decision string `json:"decision"`
}

// withExplorerLinks fills the explorer link of every submitted item.
func withExplorerLinks(status *services.BatchStatus) *services.BatchStatus {
	if status == nil {
		return nil
	}
	registry := services.GlobalDashboardService.Registry()
	for _, item := range status.Items {
		if item.TxHash != "" && item.Tx != nil {
			item.TxUrl = chains.TxUrl(registry.Get(item.Tx.ChainId), item.TxHash)
		}
	}
	return status
}

// APIBatchStartV1 starts processing a transaction batch
// @Summary Start batch
// @Description Items are signed and submitted one at a time in the given order. A failed item waits for a retry or skip decision.
// @Tags batches
// @Accept json
// @Produce json
// @Param request body APIBatchRequest true "Transactions"
// @Success 200 {object} ApiResponse{data=services.BatchStatus}
// @Failure 409 {object} ApiResponse
// @Router /v1/batches [post]
func APIBatchStartV1(w http.ResponseWriter, r *http.Request) {
	request := &APIBatchRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	for idx, tx := range request.Transactions {
		if tx != nil && tx.ChainId != 0 && services.GlobalDashboardService.Registry().Get(tx.ChainId) == nil {
			sendBadRequestResponse(w, r.URL.String(), errors.Wrapf(services.ErrUnknownChain, "batch item %v", idx).Error())
			return
		}
	}

	status, err := services.GlobalBatchService.Start(request.Transactions)
	if err != nil {
		if errors.Is(err, services.ErrBatchRunning) {
			sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusConflict)
		} else {
			sendBadRequestResponse(w, r.URL.String(), err.Error())
		}
		return
	}

	sendOKResponse(w, r.URL.String(), withExplorerLinks(status))
}

// APIBatchCurrentV1 returns the state of the current batch
// @Summary Get current batch
// @Tags batches
// @Produce json
// @Success 200 {object} ApiResponse{data=services.BatchStatus}
// @Failure 404 {object} ApiResponse
// @Router /v1/batches/current [get]
func APIBatchCurrentV1(w http.ResponseWriter, r *http.Request) {
	status := services.GlobalBatchService.Current()
	if status == nil {
		sendErrorWithCodeResponse(w, r.URL.String(), services.ErrNoBatch.Error(), http.StatusNotFound)
		return
	}
	sendOKResponse(w, r.URL.String(), withExplorerLinks(status))
}

// APIBatchDecisionV1 answers a failed batch item with retry or skip
// @Summary Decide failed batch item
// @Tags batches
// @Accept json
// @Produce json
// @Param request body APIBatchDecisionRequest true "retry or skip"
// @Success 200 {object} ApiResponse{data=services.BatchStatus}
// @Failure 409 {object} ApiResponse
// @Router /v1/batches/current/decision [post]
func APIBatchDecisionV1(w http.ResponseWriter, r *http.Request) {
	request := &APIBatchDecisionRequest{}
	if err := decodeJSONBody(w, r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	decision, err := txbatch.ParseDecision(request.Decision)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	if err := services.GlobalBatchService.Decide(decision); err != nil {
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusConflict)
		return
	}

	sendOKResponse(w, r.URL.String(), withExplorerLinks(services.GlobalBatchService.Current()))
}

// APIBatchCancelV1 stops the current batch
// @Summary Cancel current batch
// @Tags batches
// @Produce json
// @Success 200 {object} ApiResponse{data=services.BatchStatus}
// @Router /v1/batches/current/cancel [post]
func APIBatchCancelV1(w http.ResponseWriter, r *http.Request) {
	if err := services.GlobalBatchService.Cancel(); err != nil {
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
		return
	}
	sendOKResponse(w, r.URL.String(), withExplorerLinks(services.GlobalBatchService.Current()))
}

type APIBatchHistoryData struct {
	Total   uint64                   `json:"total"`
	Offset  uint64                   `json:"offset"`
	Limit   uint64                   `json:"limit"`
	Batches []*services.BatchSummary `json:"batches"`
}

// APIBatchHistoryV1 lists archived batches
// @Summary List archived batches
// @Description Finished batches are archived when a database is configured. Newest batches come first.
// @Tags batches
// @Produce json
// @Param chain_id query int false "Only batches with items for this chain"
// @Param offset query int false "Number of batches to skip"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} ApiResponse{data=APIBatchHistoryData}
// @Failure 404 {object} ApiResponse
// @Router /v1/batches/history [get]
func APIBatchHistoryV1(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseUintQuery(r, "chain_id")
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	offset, err := parseUintQuery(r, "offset")
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	limit, err := parseUintQuery(r, "limit")
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}
	if limit == 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	batches, total, err := services.GlobalBatchService.BatchHistory(r.Context(), chainID, offset, uint32(limit))
	if err != nil {
		if errors.Is(err, services.ErrArchiveDisabled) {
			sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
		} else {
			sendServerErrorResponse(w, r.URL.String(), err.Error())
		}
		return
	}

	sendOKResponse(w, r.URL.String(), &APIBatchHistoryData{
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		Batches: batches,
	})
}

// APIBatchArchivedV1 returns an archived batch with its items
// @Summary Get archived batch
// @Tags batches
// @Produce json
// @Param id path int true "Batch id"
// @Success 200 {object} ApiResponse{data=services.BatchStatus}
// @Failure 404 {object} ApiResponse
// @Router /v1/batches/{id} [get]
func APIBatchArchivedV1(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), "invalid batch id")
		return
	}

	batch, err := services.GlobalBatchService.ArchivedBatch(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrArchiveDisabled):
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
	case err != nil:
		sendServerErrorResponse(w, r.URL.String(), err.Error())
	case batch == nil:
		sendErrorWithCodeResponse(w, r.URL.String(), "batch not found", http.StatusNotFound)
	default:
		sendOKResponse(w, r.URL.String(), withExplorerLinks(batch))
	}
}
