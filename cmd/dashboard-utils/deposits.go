package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/deposit"
	"github.com/ethpandaops/validator-dashboard/utils"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <deposit-file>",
	Short: "Verify a deposit data file",
	Long:  "Checks fields, amounts, SSZ roots and fork version of a deposit data file and verifies the BLS signature of every record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verifyDeposits(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Uint64P("chain-id", "i", 0, "Chain id to verify against (defaults to chain.defaultChainId)")
}

func verifyDeposits(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry, err := chains.LoadRegistry(cfg)
	if err != nil {
		return err
	}

	chainID, _ := cmd.Flags().GetUint64("chain-id")
	if chainID == 0 {
		chainID = cfg.Chain.DefaultChainId
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	records, err := deposit.VerifyFile(data, chainID, registry)
	if err != nil {
		var mismatch *deposit.ChainMismatchError
		if errors.As(err, &mismatch) && mismatch.ExpectedChainID != 0 {
			fmt.Fprintf(out, "deposit file belongs to %v\n", registry.Get(mismatch.ExpectedChainID).Name)
		}
		return err
	}

	invalid := 0
	for idx, rec := range records {
		status := "ok"
		if !deposit.VerifySignature(rec) {
			status = "INVALID SIGNATURE"
			invalid++
		}
		fmt.Fprintf(out, "%3d  %v  %v ETH  %v\n", idx, rec.Pubkey.String(), utils.GWeiUint64ToEther(uint64(rec.Amount)), status)
	}

	if invalid > 0 {
		return fmt.Errorf("%v of %v deposits have invalid signatures", invalid, len(records))
	}
	fmt.Fprintf(out, "%v deposits valid for chain %v\n", len(records), chainID)
	return nil
}
