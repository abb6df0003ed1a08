package requests

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethpandaops/validator-dashboard/utils"
)

const (
	pubkeyHexLen = 96
	amountHexLen = 16
)

// ConsolidationCalldata concatenates the source and target pubkeys (hex, no 0x) into the
// 96 byte consolidation request input.
func ConsolidationCalldata(source, target string) string {
	return "0x" + source + target
}

// WithdrawalCalldata builds the 56 byte withdrawal request input from a pubkey (hex, no 0x)
// and an ETH amount. An amount of 0 requests a full exit.
func WithdrawalCalldata(pubkey, amountEth string) (string, error) {
	gwei, err := utils.EtherToGwei(amountEth)
	if err != nil {
		return "", err
	}
	return WithdrawalCalldataGwei(pubkey, gwei), nil
}

// WithdrawalCalldataGwei is WithdrawalCalldata for an amount already in gwei.
func WithdrawalCalldataGwei(pubkey string, amountGwei uint64) string {
	return fmt.Sprintf("0x%v%016x", pubkey, amountGwei)
}

// DecodeWithdrawalCalldata splits withdrawal request input into pubkey (hex, no 0x) and gwei amount.
func DecodeWithdrawalCalldata(calldata string) (string, uint64, error) {
	data := strings.TrimPrefix(calldata, "0x")
	if len(data) != pubkeyHexLen+amountHexLen {
		return "", 0, fmt.Errorf("withdrawal calldata must be %v bytes, got %v", (pubkeyHexLen+amountHexLen)/2, len(data)/2)
	}
	if _, err := hex.DecodeString(data); err != nil {
		return "", 0, fmt.Errorf("withdrawal calldata is not valid hex: %w", err)
	}

	amount, err := strconv.ParseUint(data[pubkeyHexLen:], 16, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid withdrawal amount: %w", err)
	}

	return strings.ToLower(data[:pubkeyHexLen]), amount, nil
}

// DecodeConsolidationCalldata splits consolidation request input into source and target pubkeys (hex, no 0x).
func DecodeConsolidationCalldata(calldata string) (string, string, error) {
	data := strings.TrimPrefix(calldata, "0x")
	if len(data) != 2*pubkeyHexLen {
		return "", "", fmt.Errorf("consolidation calldata must be %v bytes, got %v", pubkeyHexLen, len(data)/2)
	}
	if _, err := hex.DecodeString(data); err != nil {
		return "", "", fmt.Errorf("consolidation calldata is not valid hex: %w", err)
	}

	return strings.ToLower(data[:pubkeyHexLen]), strings.ToLower(data[pubkeyHexLen:]), nil
}
