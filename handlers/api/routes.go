package api

// @title Validator Dashboard API
// @version 1.0
// @description Deposit verification, request fee quotes and transaction batches for validator management.

// @BasePath /api/v1
// @schemes http https

// @tag.name deposits
// @tag.description Deposit file verification and deposit transactions

// @tag.name requests
// @tag.description Withdrawal and consolidation requests

// @tag.name batches
// @tag.description Sequential transaction batches and offline signing

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/ethpandaops/validator-dashboard/metrics"
)

// RegisterRoutes mounts the v1 api below /api/v1 on router. middlewares run in the given order.
func RegisterRoutes(router *mux.Router, middlewares ...mux.MiddlewareFunc) *mux.Router {
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(instrumentMiddleware)
	apiRouter.Use(middlewares...)

	apiRouter.HandleFunc("/chains", APIChainsV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/chains/{chainId:[0-9]+}", APIChainV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/deposits/verify", APIDepositsVerifyV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/deposits/transactions", APIDepositsTxsV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/queue/{kind}", APIQueueV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/validators/{address}", APIValidatorsV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/calldata/withdrawal", APIWithdrawalCalldataV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/calldata/consolidation", APIConsolidationCalldataV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/calldata/topup", APITopUpCalldataV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/batches", APIBatchStartV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/batches/current", APIBatchCurrentV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/batches/current/decision", APIBatchDecisionV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/batches/current/cancel", APIBatchCancelV1).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/batches/history", APIBatchHistoryV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/batches/{id:[0-9]+}", APIBatchArchivedV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/offline/pending", APIOfflinePendingV1).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/offline/signature", APIOfflineSignatureV1).Methods("POST", "OPTIONS")

	return apiRouter
}

func instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		start := time.Now()
		rw := negroni.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		metrics.ObserveApiCall(route, rw.Status(), time.Since(start))
	})
}
