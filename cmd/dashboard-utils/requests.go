package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-dashboard/chains"
	"github.com/ethpandaops/validator-dashboard/clients/execution"
	"github.com/ethpandaops/validator-dashboard/deposit"
	"github.com/ethpandaops/validator-dashboard/requests"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
)

var queueCmd = &cobra.Command{
	Use:   "queue <withdrawal|consolidation>",
	Short: "Quote the request fee of a request contract",
	Long:  "Computes the request fee from a raw queue excess word (--raw) or reads it from an execution endpoint (--rpc)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return quoteQueue(cmd, args[0])
	},
}

var calldataCmd = &cobra.Command{
	Use:   "calldata",
	Short: "Encode request contract calldata",
}

var withdrawalCalldataCmd = &cobra.Command{
	Use:   "withdrawal <pubkey> <amount-eth>",
	Short: "Encode a withdrawal request, an amount of 0 requests a full exit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		calldata, err := requests.WithdrawalCalldata(trimHex(args[0]), utils.ClampPrecision(args[1], false))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), calldata)
		return nil
	},
}

var consolidationCalldataCmd = &cobra.Command{
	Use:   "consolidation <source-pubkey> <target-pubkey>",
	Short: "Encode a consolidation request, equal pubkeys switch to compounding credentials",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		calldata := requests.ConsolidationCalldata(trimHex(args[0]), trimHex(args[1]))
		if _, _, err := requests.DecodeConsolidationCalldata(calldata); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), calldata)
		return nil
	},
}

var decodeCalldataCmd = &cobra.Command{
	Use:   "decode <calldata>",
	Short: "Decode withdrawal, consolidation or deposit calldata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeCalldata(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(calldataCmd)
	calldataCmd.AddCommand(withdrawalCalldataCmd)
	calldataCmd.AddCommand(consolidationCalldataCmd)
	calldataCmd.AddCommand(decodeCalldataCmd)

	queueCmd.Flags().String("raw", "", "Raw storage word of the queue excess (hex)")
	queueCmd.Flags().String("rpc", "", "Execution endpoint to read the queue excess from")
	queueCmd.Flags().Uint64P("chain-id", "i", 0, "Chain id (defaults to chain.defaultChainId)")
	queueCmd.Flags().Uint64P("addition", "a", 0, "Requests queued on top of the current queue")
}

func trimHex(value string) string {
	if len(value) >= 2 && (value[:2] == "0x" || value[:2] == "0X") {
		return value[2:]
	}
	return value
}

func quoteQueue(cmd *cobra.Command, kindArg string) error {
	kind, err := requests.ParseRequestKind(kindArg)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetString("raw")
	rpcUrl, _ := cmd.Flags().GetString("rpc")
	addition, _ := cmd.Flags().GetUint64("addition")
	out := cmd.OutOrStdout()

	var queue *requests.Queue
	if rpcUrl == "" {
		queue = requests.ComputeQueue(raw, addition)
	} else {
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
		contract, err := requests.ContractAddress(registry.Get(chainID), kind)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger := logrus.StandardLogger().WithField("module", "queue")
		pool := execution.NewPool(logger)
		defer pool.Close()
		if _, err := pool.AddEndpoint(&types.EndpointConfig{Url: rpcUrl, Name: "cli", ChainId: chainID}); err != nil {
			return err
		}
		client, err := pool.GetClient(ctx, chainID)
		if err != nil {
			return err
		}

		queue = requests.NewQueueReader(client, logger).ReadQueue(ctx, contract, addition)
		fmt.Fprintf(out, "contract: %v\n", contract.Hex())
	}

	fmt.Fprintf(out, "kind:     %v\n", kind)
	fmt.Fprintf(out, "length:   %v\n", queue.Length)
	fmt.Fprintf(out, "addition: %v\n", queue.Addition)
	fmt.Fprintf(out, "fee:      %v wei\n", queue.Fee.String())
	return nil
}

// decodeCalldata tells the request kinds apart by their fixed input size, anything else must be a deposit call.
func decodeCalldata(cmd *cobra.Command, calldata string) error {
	out := cmd.OutOrStdout()
	data, err := hex.DecodeString(trimHex(calldata))
	if err != nil {
		return fmt.Errorf("calldata is not valid hex: %w", err)
	}

	switch len(data) {
	case 56:
		pubkey, amount, err := requests.DecodeWithdrawalCalldata(calldata)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kind:   withdrawal\n")
		fmt.Fprintf(out, "pubkey: 0x%v\n", pubkey)
		if amount == 0 {
			fmt.Fprintf(out, "amount: full exit\n")
		} else {
			fmt.Fprintf(out, "amount: %v ETH\n", utils.GWeiUint64ToEther(amount))
		}
	case 96:
		source, target, err := requests.DecodeConsolidationCalldata(calldata)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kind:   consolidation\n")
		fmt.Fprintf(out, "source: 0x%v\n", source)
		fmt.Fprintf(out, "target: 0x%v\n", target)
	default:
		rec, err := deposit.DecodeDepositCalldata(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "kind:        deposit\n")
		fmt.Fprintf(out, "pubkey:      %v\n", rec.Pubkey.String())
		fmt.Fprintf(out, "credentials: 0x%x\n", rec.WithdrawalCredentials[:])
		fmt.Fprintf(out, "data root:   %v\n", rec.DepositDataRoot.String())
	}
	return nil
}
