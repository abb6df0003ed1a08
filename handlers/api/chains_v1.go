package api

import (
	"net/http"

	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/types"
)

// APIChainInfo describes a registered chain.
type APIChainInfo struct {
	Name                  string `json:"name"`
	ChainId               uint64 `json:"chain_id"`
	GenesisForkVersion    string `json:"genesis_fork_version"`
	DepositContract       string `json:"deposit_contract"`
	WithdrawalContract    string `json:"withdrawal_contract"`
	ConsolidationContract string `json:"consolidation_contract"`
	ExplorerTxUrl         string `json:"explorer_tx_url,omitempty"`
	ExplorerAddressUrl    string `json:"explorer_address_url,omitempty"`
	BeaconExplorerUrl     string `json:"beacon_explorer_url,omitempty"`
}

func buildChainInfo(chain *types.ChainConfig) *APIChainInfo {
	return &APIChainInfo{
		Name:                  chain.Name,
		ChainId:               chain.ChainId,
		GenesisForkVersion:    chain.GenesisForkVersion,
		DepositContract:       chain.DepositContract,
		WithdrawalContract:    chain.WithdrawalContract,
		ConsolidationContract: chain.ConsolidationContract,
		ExplorerTxUrl:         chain.ExplorerTxUrl,
		ExplorerAddressUrl:    chain.ExplorerAddressUrl,
		BeaconExplorerUrl:     chain.BeaconExplorerUrl,
	}
}

// APIChainsV1 lists all registered chains
// @Summary Get chains
// @Tags chains
// @Produce json
// @Success 200 {object} ApiResponse{data=[]APIChainInfo}
// @Router /v1/chains [get]
func APIChainsV1(w http.ResponseWriter, r *http.Request) {
	chains := services.GlobalDashboardService.Registry().Chains()
	result := make([]*APIChainInfo, 0, len(chains))
	for _, chain := range chains {
		result = append(result, buildChainInfo(chain))
	}
	sendOKResponse(w, r.URL.String(), result)
}

// APIChainV1 returns a single registry entry
// @Summary Get chain
// @Tags chains
// @Produce json
// @Param chainId path int true "Chain id"
// @Success 200 {object} ApiResponse{data=APIChainInfo}
// @Failure 404 {object} ApiResponse
// @Router /v1/chains/{chainId} [get]
func APIChainV1(w http.ResponseWriter, r *http.Request) {
	chainID, err := resolveChainID(r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	chain, err := services.GlobalDashboardService.GetChain(chainID)
	if err != nil {
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusNotFound)
		return
	}

	sendOKResponse(w, r.URL.String(), buildChainInfo(chain))
}
