package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/validators"
)

type APIValidatorsData struct {
	Address    string                  `json:"address"`
	AddressUrl string                  `json:"address_url,omitempty"`
	Validators []*validators.Validator `json:"validators"`
	Count      int                     `json:"count"`
}

// APIValidatorsV1 returns the validators withdrawing to an address
// @Summary Get validators by withdrawal address
// @Tags validators
// @Produce json
// @Param address path string true "Withdrawal address"
// @Param chain_id query int false "Chain id for explorer links"
// @Success 200 {object} ApiResponse{data=APIValidatorsData}
// @Failure 400 {object} ApiResponse
// @Failure 502 {object} ApiResponse
// @Router /v1/validators/{address} [get]
func APIValidatorsV1(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	chainID, err := resolveChainID(r)
	if err != nil {
		sendBadRequestResponse(w, r.URL.String(), err.Error())
		return
	}

	list, err := services.GlobalDashboardService.GetValidators(r.Context(), address)
	if err != nil {
		sendErrorWithCodeResponse(w, r.URL.String(), err.Error(), http.StatusBadGateway)
		return
	}
	if list == nil {
		list = []*validators.Validator{}
	}

	sendOKResponse(w, r.URL.String(), &APIValidatorsData{
		Address:    address.Hex(),
		AddressUrl: chains.AddressUrl(services.GlobalDashboardService.Registry().Get(chainID), address.Hex()),
		Validators: list,
		Count:      len(list),
	})
}
