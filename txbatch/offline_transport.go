package txbatch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

// OfflineTransport hands transactions to an external signer through an OfflineSigner.
// With a ClientProvider, signed transactions are broadcast and confirmed, otherwise the
// signer's answer is the final result.
type OfflineTransport struct {
	signer          *OfflineSigner
	clients         ClientProvider
	receiptInterval time.Duration
	logger          logrus.FieldLogger
}

func NewOfflineTransport(signer *OfflineSigner, clients ClientProvider, receiptInterval time.Duration, logger logrus.FieldLogger) *OfflineTransport {
	if receiptInterval <= 0 {
		receiptInterval = 4 * time.Second
	}
	return &OfflineTransport{
		signer:          signer,
		clients:         clients,
		receiptInterval: receiptInterval,
		logger:          logger,
	}
}

func (t *OfflineTransport) Submit(ctx context.Context, desc *types.TxDescriptor) (*Submission, error) {
	ticket := t.signer.Request(desc)
	if ticket.Request.Tx != desc {
		return nil, fmt.Errorf("signature request %v is still pending", ticket.Request.ID)
	}

	t.logger.Infof("awaiting offline signature for request %v", ticket.Request.ID)

	result, err := ticket.Wait(ctx)
	if err != nil {
		t.signer.Cancel(ticket.Request.ID, err)
		return nil, err
	}
	if result.Err != nil {
		return nil, result.Err
	}

	broadcast := &Broadcast{
		TxHash: result.TxHash,
	}
	var signedTx *ethtypes.Transaction
	if len(result.SignedTx) > 0 {
		signedTx, err = decodeSignedTx(result.SignedTx, desc)
		if err != nil {
			return nil, err
		}
		broadcast.TxHash = signedTx.Hash()
		broadcast.Nonce = signedTx.Nonce()
		broadcast.SignedTx = result.SignedTx
	}

	if t.clients == nil {
		return &Submission{TxHash: broadcast.TxHash, SignedTx: broadcast.SignedTx}, nil
	}

	// from here on the signature is kept, a retry resumes with it
	client, err := t.clients(ctx, desc.ChainId)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}

	if signedTx != nil {
		if err := client.SendTransaction(ctx, signedTx); err != nil {
			return nil, &BroadcastError{Broadcast: broadcast, Err: errors.Wrap(err, "error sending signed transaction")}
		}
	}

	return confirmBroadcast(ctx, client, broadcast, t.receiptInterval)
}

// Resume waits for a transaction from an earlier attempt without asking for a new signature.
// A dropped transaction is re-sent as signed, which cannot produce a second transaction.
func (t *OfflineTransport) Resume(ctx context.Context, desc *types.TxDescriptor, broadcast *Broadcast) (*Submission, error) {
	if t.clients == nil {
		return &Submission{TxHash: broadcast.TxHash, SignedTx: broadcast.SignedTx}, nil
	}

	client, err := t.clients(ctx, desc.ChainId)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}

	known, err := transactionKnown(ctx, client, broadcast.TxHash)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}
	if !known {
		if len(broadcast.SignedTx) == 0 {
			return nil, &BroadcastError{Broadcast: broadcast, Err: fmt.Errorf("transaction is not known to the node")}
		}

		tx := new(ethtypes.Transaction)
		if err := tx.UnmarshalBinary(broadcast.SignedTx); err != nil {
			return nil, errors.Wrap(err, "invalid signed transaction")
		}
		t.logger.Warnf("transaction %v was dropped, sending it again", broadcast.TxHash.Hex())
		if err := client.SendTransaction(ctx, tx); err != nil {
			return nil, &BroadcastError{Broadcast: broadcast, Err: errors.Wrap(err, "error sending signed transaction")}
		}
	}

	return confirmBroadcast(ctx, client, broadcast, t.receiptInterval)
}

func decodeSignedTx(signedTx []byte, desc *types.TxDescriptor) (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return nil, errors.Wrap(err, "invalid signed transaction")
	}
	if err := matchDescriptor(tx, desc); err != nil {
		return nil, err
	}
	return tx, nil
}

// matchDescriptor rejects signed transactions that differ from the requested one.
func matchDescriptor(tx *ethtypes.Transaction, desc *types.TxDescriptor) error {
	if tx.ChainId() == nil || tx.ChainId().Uint64() != desc.ChainId {
		return fmt.Errorf("signed transaction is for chain %v, expected %v", tx.ChainId(), desc.ChainId)
	}
	if tx.To() == nil || *tx.To() != desc.To {
		return fmt.Errorf("signed transaction targets %v, expected %v", tx.To(), desc.To.Hex())
	}
	if desc.Value != nil && tx.Value().Cmp(desc.Value.ToInt()) != 0 {
		return fmt.Errorf("signed transaction value %v differs from %v", tx.Value(), desc.Value.ToInt())
	}
	if !bytes.Equal(tx.Data(), desc.Data) {
		return fmt.Errorf("signed transaction data differs from the request")
	}
	return nil
}
