package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxDescriptor is an unsigned transaction handed to a signing transport.
// A zero Gas leaves the gas limit to the transport.
type TxDescriptor struct {
	ChainId uint64         `json:"chainId"`
	To      common.Address `json:"to"`
	Value   *hexutil.Big   `json:"value"`
	Data    hexutil.Bytes  `json:"data"`
	Gas     hexutil.Uint64 `json:"gas"`
	Label   string         `json:"label,omitempty"`
}
