package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"

	"github.com/ethpandaops/validator-dashboard/db"
	"github.com/ethpandaops/validator-dashboard/handlers/api"
	"github.com/ethpandaops/validator-dashboard/handlers/middleware"
	"github.com/ethpandaops/validator-dashboard/metrics"
	"github.com/ethpandaops/validator-dashboard/services"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to the config file, if empty string defaults will be used")
	flag.Parse()

	cfg := &types.Config{}
	err := utils.ReadConfig(cfg, *configPath)
	if err != nil {
		logrus.Fatalf("error reading config file: %v", err)
	}
	utils.Config = cfg
	logWriter, logger := utils.InitLogger()
	defer logWriter.Dispose()

	logger.WithFields(logrus.Fields{
		"config":  *configPath,
		"version":   utils.GetDashboardVersion(),
		"buildtime": utils.Buildtime,
	}).Printf("starting")

	if cfg.Database.Engine != "" {
		if err := db.InitDB(&cfg.Database); err != nil {
			utils.LogFatal(err, "error initializing database", 0)
		}
		defer db.CloseDB()

		if err := db.ApplyEmbeddedDbSchema(-2); err != nil {
			utils.LogFatal(err, "error applying db schema", 0)
		}
	}

	err = services.InitDashboardService(logger)
	if err != nil {
		logger.Fatalf("error initializing dashboard service: %v", err)
	}

	err = services.InitBatchService(logger)
	if err != nil {
		logger.Fatalf("error initializing batch service: %v", err)
	}

	if cfg.Metrics.Enabled && !cfg.Metrics.Public {
		err = metrics.StartMetricsServer(logger.WithField("module", "metrics"), cfg.Metrics.Host, cfg.Metrics.Port)
		if err != nil {
			logger.Fatalf("error starting metrics server: %v", err)
		}
	}

	webserver, rateLimiter, err := startWebserver(logger)
	if err != nil {
		logger.Fatalf("error starting webserver: %v", err)
	}

	utils.WaitForCtrlC()
	logger.Println("exiting...")

	if services.GlobalBatchService.Current() != nil {
		if err := services.GlobalBatchService.Cancel(); err != nil {
			logger.WithError(err).Warn("error cancelling batch")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webserver.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("error shutting down webserver")
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	services.GlobalDashboardService.Close()
}

func startWebserver(logger logrus.FieldLogger) (*http.Server, *middleware.RateLimiter, error) {
	router := mux.NewRouter()

	var rateLimiter *middleware.RateLimiter
	if utils.Config.Api.Enabled {
		settings := middleware.SettingsFromConfig(utils.Config)

		// verifying a deposit file checks BLS signatures for every record
		costs := middleware.NewCallCosts()
		costs.Set("/api/v1/deposits", 5)
		costs.Set("/api/v1/calldata", 2)

		rateLimiter = middleware.NewRateLimiter(settings, costs, logger)
		api.RegisterRoutes(router,
			middleware.NewCors(settings).Middleware,
			middleware.NewTokenAuth(settings, logger).Middleware,
			rateLimiter.Middleware,
		)
	}

	if utils.Config.Metrics.Enabled && utils.Config.Metrics.Public {
		router.Handle("/metrics", metrics.GetMetricsHandler())
	}

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(router)

	srv := &http.Server{
		Addr:         utils.Config.Server.Host + ":" + utils.Config.Server.Port,
		WriteTimeout: utils.Config.Server.HttpWriteTimeout,
		ReadTimeout:  utils.Config.Server.HttpReadTimeout,
		IdleTimeout:  utils.Config.Server.HttpIdleTimeout,
		Handler:      n,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, nil, err
	}

	logger.Printf("http server listening on %v", srv.Addr)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Error serving api")
		}
	}()

	return srv, rateLimiter, nil
}
