package utils

import (
	"math/big"
)

// GweiDecimals is the number of fractional ETH digits representable in gwei.
const GweiDecimals = 9

var (
	GWEI *big.Int = big.NewInt(1000000000)
	ETH  *big.Int = big.NewInt(0).Mul(GWEI, GWEI)
)

// withdrawal credential prefixes
const (
	BLSWithdrawalPrefix         byte = 0x00
	ExecutionWithdrawalPrefix   byte = 0x01
	CompoundingWithdrawalPrefix byte = 0x02
)

// balances in gwei
const (
	MinDepositAmount           uint64 = 1_000_000_000
	MinActivationBalance       uint64 = 32_000_000_000
	MaxEffectiveBalanceElectra uint64 = 2_048_000_000_000
)

// MaxEffectiveBalance returns the effective balance cap for a withdrawal credential prefix.
func MaxEffectiveBalance(credentialType byte) uint64 {
	if credentialType == CompoundingWithdrawalPrefix {
		return MaxEffectiveBalanceElectra
	}
	return MinActivationBalance
}
