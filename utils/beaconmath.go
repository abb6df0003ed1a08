package utils

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, 0).DivRound(decimal.NewFromInt(params.Ether), 18)
}

func GWeiToEther(gwei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(gwei, -GweiDecimals)
}

func GWeiUint64ToEther(gwei uint64) decimal.Decimal {
	return GWeiToEther(new(big.Int).SetUint64(gwei))
}

// GweiToWei converts a gwei amount to wei.
func GweiToWei(gwei uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gwei), GWEI)
}

// EtherToGwei converts a decimal ETH string into whole gwei. Digits beyond gwei precision are truncated.
func EtherToGwei(ether string) (uint64, error) {
	value, err := decimal.NewFromString(ether)
	if err != nil {
		return 0, fmt.Errorf("invalid ether amount %q: %w", ether, err)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("negative ether amount %q", ether)
	}

	gwei := value.Shift(GweiDecimals).BigInt()
	if !gwei.IsUint64() {
		return 0, fmt.Errorf("ether amount %q exceeds uint64 gwei", ether)
	}

	return gwei.Uint64(), nil
}
