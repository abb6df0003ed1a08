package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/services"
)

type ApiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

const maxRequestBodySize = 4 << 20

func sendBadRequestResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusBadRequest)
}

func sendServerErrorResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusInternalServerError)
}

func sendErrorWithCodeResponse(w http.ResponseWriter, route, message string, errorcode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorcode)
	response := &ApiResponse{
		Status: "ERROR: " + message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.Errorf("error serializing json error for API %v route: %v", route, err)
	}
}

func sendOKResponse(w http.ResponseWriter, route string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := &ApiResponse{
		Status: "OK",
		Data:   data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.Errorf("error serializing json data for API %v route: %v", route, err)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// resolveChainID reads the chain id from the chainId path variable or the chain_id query parameter.
func resolveChainID(r *http.Request) (uint64, error) {
	param := mux.Vars(r)["chainId"]
	if param == "" {
		param = r.URL.Query().Get("chain_id")
	}
	return services.GlobalDashboardService.ResolveChainID(param)
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address: %v", value)
	}
	return common.HexToAddress(value), nil
}

func parseUintQuery(r *http.Request, name string) (uint64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %v: %v", name, value)
	}
	return parsed, nil
}
