package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/validator-dashboard/config"
	"github.com/ethpandaops/validator-dashboard/types"
)

// Config is the globally accessible configuration
var Config *types.Config

// ReadConfig will process a configuration
func ReadConfig(cfg *types.Config, path string) error {
	err := readConfigFile(cfg, path)
	if err != nil {
		return err
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error reading config from environment: %v", err)
	}

	applyConfigDefaults(cfg)

	for idx, endpoint := range cfg.ExecutionApi.Endpoints {
		if endpoint.Url == "" {
			return fmt.Errorf("execution endpoint %v has no url", idx)
		}
		if endpoint.ChainId == 0 {
			return fmt.Errorf("execution endpoint %v (%v) has no chainId", idx, endpoint.Url)
		}
	}

	switch cfg.Signer.Mode {
	case "offline":
	case "wallet":
		if cfg.Signer.PrivateKey == "" {
			return fmt.Errorf("signer mode 'wallet' requires signer.privateKey")
		}
	default:
		return fmt.Errorf("unknown signer mode: %v", cfg.Signer.Mode)
	}

	switch cfg.Database.Engine {
	case "", "sqlite", "pgsql":
	default:
		return fmt.Errorf("unknown database engine type: %v", cfg.Database.Engine)
	}

	log.WithFields(log.Fields{
		"defaultChainId":     cfg.Chain.DefaultChainId,
		"executionEndpoints": len(cfg.ExecutionApi.Endpoints),
		"validatorApi":       cfg.ValidatorApi.Endpoint,
		"signerMode":         cfg.Signer.Mode,
		"databaseEngine":     cfg.Database.Engine,
	}).Infof("did init config")

	return nil
}

func readConfigFile(cfg *types.Config, path string) error {
	err := yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	if err != nil {
		return fmt.Errorf("error decoding default config: %v", err)
	}
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}

func applyConfigDefaults(cfg *types.Config) {
	if cfg.Server.HttpWriteTimeout == 0 {
		cfg.Server.HttpWriteTimeout = time.Second * 15
	}
	if cfg.Server.HttpReadTimeout == 0 {
		cfg.Server.HttpReadTimeout = time.Second * 15
	}
	if cfg.Server.HttpIdleTimeout == 0 {
		cfg.Server.HttpIdleTimeout = time.Second * 60
	}
	if cfg.ValidatorApi.Timeout == 0 {
		cfg.ValidatorApi.Timeout = time.Second * 30
	}
	if cfg.Signer.Mode == "" {
		cfg.Signer.Mode = "offline"
	}
	if cfg.Signer.ReceiptInterval == 0 {
		cfg.Signer.ReceiptInterval = time.Second * 4
	}
	if cfg.Chain.DefaultChainId == 0 {
		cfg.Chain.DefaultChainId = 1
	}
}
