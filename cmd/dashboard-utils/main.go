package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
)

var rootCmd = &cobra.Command{
	Use:     "dashboard-utils",
	Short:   "Validator dashboard utilities",
	Long:    "Utilities for the validator dashboard: deposit file verification, request fee quotes, calldata encoding and api token generation",
	Version: utils.GetDashboardVersion(),
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "", "", "Path to the dashboard config file")
}

// loadConfig reads the config given by --config, or the built-in defaults.
func loadConfig(cmd *cobra.Command) (*types.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := &types.Config{}
	if err := utils.ReadConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	utils.Config = cfg
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
