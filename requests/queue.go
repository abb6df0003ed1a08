package requests

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// MinRequestFee is the fee factor of the withdrawal and consolidation request contracts (1 wei).
	MinRequestFee = big.NewInt(1)
	// RequestFeeUpdateFraction is the denominator of the fee exponent.
	RequestFeeUpdateFraction = big.NewInt(17)
)

// Queue is a snapshot of a request contract queue.
type Queue struct {
	Length   uint64
	Addition uint64
	Fee      *big.Int
}

// ParseQueueLength decodes the raw 32 byte storage word holding the queue excess.
// Undecodable words, the excess inhibitor (2^256-1) and values above uint64 yield 0.
func ParseQueueLength(rawLengthHex string) uint64 {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(rawLengthHex, "0x"), "0X"))
	if err != nil || len(raw) == 0 || len(raw) > 32 {
		return 0
	}

	value := new(uint256.Int).SetBytes(raw)
	if value.Eq(new(uint256.Int).SetAllOne()) {
		// excess inhibitor, requests are disabled until the fork activates
		return 0
	}
	if !value.IsUint64() {
		return 0
	}

	return value.Uint64()
}

// ComputeQueue derives the queue length from a raw storage word and the fee to pay
// when addition more requests are queued on top of it.
func ComputeQueue(rawLengthHex string, addition uint64) *Queue {
	length := ParseQueueLength(rawLengthHex)

	excess := new(big.Int).SetUint64(length)
	excess.Add(excess, new(big.Int).SetUint64(addition))

	return &Queue{
		Length:   length,
		Addition: addition,
		Fee:      RequestFee(excess),
	}
}

// RequestFee returns the fee in wei for a queue excess, approximating
// MinRequestFee * e ** (excess / RequestFeeUpdateFraction) with a Taylor expansion.
func RequestFee(excess *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(MinRequestFee, RequestFeeUpdateFraction)
	)
	for i := int64(1); accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, excess)
		accum.Div(accum, RequestFeeUpdateFraction)
		accum.Div(accum, big.NewInt(i))
	}
	return output.Div(output, RequestFeeUpdateFraction)
}
