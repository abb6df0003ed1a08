package txbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-dashboard/types"
)

// Broadcast identifies a transaction that reached the network but is not confirmed yet.
type Broadcast struct {
	TxHash   common.Hash   `json:"txHash"`
	Nonce    uint64        `json:"nonce"`
	SignedTx hexutil.Bytes `json:"signedTx,omitempty"`
}

// BroadcastError is returned by a transport when confirming an already broadcast transaction failed.
// Retrying such an item must follow up on Broadcast instead of submitting the item again.
type BroadcastError struct {
	Broadcast *Broadcast
	Err       error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("transaction %v not confirmed: %v", e.Broadcast.TxHash.Hex(), e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// Resumer is implemented by transports that can continue an item from an earlier broadcast.
type Resumer interface {
	Resume(ctx context.Context, tx *types.TxDescriptor, broadcast *Broadcast) (*Submission, error)
}

// confirmBroadcast waits for the receipt of broadcast. Reverts are final, every other failure
// keeps the broadcast attached to the error.
func confirmBroadcast(ctx context.Context, client ChainClient, broadcast *Broadcast, interval time.Duration) (*Submission, error) {
	receipt, err := waitForReceipt(ctx, client, broadcast.TxHash, interval)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %v reverted in block %v", broadcast.TxHash.Hex(), receipt.BlockNumber)
	}

	return &Submission{
		TxHash:      broadcast.TxHash,
		SignedTx:    broadcast.SignedTx,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// transactionKnown reports whether the node has txHash mined or in its pool.
func transactionKnown(ctx context.Context, client ChainClient, txHash common.Hash) (bool, error) {
	receipt, err := client.GetTransactionReceipt(ctx, txHash)
	if err == nil && receipt != nil {
		return true, nil
	}
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return false, errors.Wrapf(err, "error getting receipt of %v", txHash.Hex())
	}

	_, _, err = client.GetTransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "error getting transaction %v", txHash.Hex())
	}
	return true, nil
}
