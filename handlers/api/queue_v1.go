package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ethpandaops/validator-dashboard/requests"
	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/utils"
)

type APIQueueData struct {
	ChainId  uint64 `json:"chain_id"`
	Kind     string `json:"kind"`
	Contract string `json:"contract"`
	Length   uint64 `json:"length"`
	Addition uint64 `json:"addition"`
	Fee      string `json:"fee"`
	FeeEth   string `json:"fee_eth"`
}

// APIQueueV1 quotes the request fee of a request contract queue
// @Summary Get request queue
// @Description Reads the queue excess of the withdrawal or consolidation request contract and returns the fee (in wei) for queueing addition more requests.
// @Tags requests
// @Produce json
// @Param kind path string true "withdrawal or consolidation"
// @Param chain_id query int false "Chain id"
// @Param addition query int false "Requests queued on top of the current queue"
// @Success 200 {object} ApiResponse{data=APIQueueData}
// @Router /v1/queue/{kind} [get]
func APIQueueV1(w http.ResponseWriter, r *http.Request) {
	kind, err := requests.ParseRequestKind(mux.Vars(r)["kind"])
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	chainID, err := resolveChainID(r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	addition, err := parseUintQuery(r, "addition")
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	chain, err := services.GlobalDashboardService.GetChain(chainID)
	if err != nil {
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
		return
	}
	contract, err := requests.ContractAddress(chain, kind)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	queue, err := services.GlobalDashboardService.GetQueue(r.Context(), chainID, kind, addition)
	if err != nil {
		sendServerErrorResponse(w, r.URL.String(), err.Error())
		return
	}

	sendOKResponse(w, r.URL.String(), &APIQueueData{
		ChainId:  chainID,
		Kind:     string(kind),
		Contract: contract.Hex(),
		Length:   queue.Length,
		Addition: queue.Addition,
		Fee:      queue.Fee.String(),
		FeeEth:   utils.WeiToEther(queue.Fee).String(),
	})
}
