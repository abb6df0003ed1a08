package txbatch

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

// Submission is the outcome of a successfully submitted transaction.
type Submission struct {
	TxHash      common.Hash   `json:"txHash"`
	SignedTx    hexutil.Bytes `json:"signedTx,omitempty"`
	BlockNumber uint64        `json:"blockNumber,omitempty"`
}

// Transport signs and broadcasts a transaction descriptor.
type Transport interface {
	Submit(ctx context.Context, tx *types.TxDescriptor) (*Submission, error)
}

// ChainClient is the execution client surface used to broadcast and confirm transactions.
type ChainClient interface {
	GetPendingNonce(ctx context.Context, wallet common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	GetLatestHeader(ctx context.Context) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	GetTransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
}

// ClientProvider returns a client for a chain.
type ClientProvider func(ctx context.Context, chainID uint64) (ChainClient, error)

// WalletTransport signs with a local key and waits for inclusion.
type WalletTransport struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	clients         ClientProvider
	receiptInterval time.Duration
	logger          logrus.FieldLogger
}

// NewWalletTransport parses a hex private key (0x optional).
func NewWalletTransport(privateKey string, clients ClientProvider, receiptInterval time.Duration, logger logrus.FieldLogger) (*WalletTransport, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signer private key")
	}
	if receiptInterval <= 0 {
		receiptInterval = 4 * time.Second
	}

	return &WalletTransport{
		key:             key,
		address:         crypto.PubkeyToAddress(key.PublicKey),
		clients:         clients,
		receiptInterval: receiptInterval,
		logger:          logger,
	}, nil
}

// Address returns the sender address of the wallet.
func (t *WalletTransport) Address() common.Address {
	return t.address
}

func (t *WalletTransport) Submit(ctx context.Context, desc *types.TxDescriptor) (*Submission, error) {
	client, err := t.clients(ctx, desc.ChainId)
	if err != nil {
		return nil, err
	}

	nonce, err := client.GetPendingNonce(ctx, t.address)
	if err != nil {
		return nil, errors.Wrap(err, "error getting nonce")
	}

	return t.send(ctx, client, desc, nonce)
}

// Resume follows up on a transaction broadcast by an earlier attempt. It is only signed again
// when the node no longer knows it, and then with the same nonce so at most one of them lands.
func (t *WalletTransport) Resume(ctx context.Context, desc *types.TxDescriptor, broadcast *Broadcast) (*Submission, error) {
	client, err := t.clients(ctx, desc.ChainId)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}

	known, err := transactionKnown(ctx, client, broadcast.TxHash)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: err}
	}
	if known {
		t.logger.Infof("waiting for transaction %v (nonce %v)", broadcast.TxHash.Hex(), broadcast.Nonce)
		return confirmBroadcast(ctx, client, broadcast, t.receiptInterval)
	}

	// a pending nonce above ours means the slot was used by another transaction of this wallet
	nonce, err := client.GetPendingNonce(ctx, t.address)
	if err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: errors.Wrap(err, "error getting nonce")}
	}
	if nonce < broadcast.Nonce {
		nonce = broadcast.Nonce
	}

	t.logger.Warnf("transaction %v was dropped, replacing it with nonce %v", broadcast.TxHash.Hex(), nonce)
	return t.send(ctx, client, desc, nonce)
}

func (t *WalletTransport) send(ctx context.Context, client ChainClient, desc *types.TxDescriptor, nonce uint64) (*Submission, error) {
	tx, err := t.buildTx(ctx, client, desc, nonce)
	if err != nil {
		return nil, err
	}

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(desc.ChainId)), t.key)
	if err != nil {
		return nil, errors.Wrap(err, "error signing transaction")
	}

	signedBytes, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "error encoding transaction")
	}

	// a failed send may still have reached the node
	broadcast := &Broadcast{
		TxHash:   signedTx.Hash(),
		Nonce:    signedTx.Nonce(),
		SignedTx: signedBytes,
	}
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return nil, &BroadcastError{Broadcast: broadcast, Err: errors.Wrap(err, "error sending transaction")}
	}

	t.logger.Infof("sent transaction %v (nonce %v)", signedTx.Hash().Hex(), signedTx.Nonce())

	return confirmBroadcast(ctx, client, broadcast, t.receiptInterval)
}

func (t *WalletTransport) buildTx(ctx context.Context, client ChainClient, desc *types.TxDescriptor, nonce uint64) (*ethtypes.Transaction, error) {
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting gas tip")
	}

	header, err := client.GetLatestHeader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting latest header")
	}

	feeCap := new(big.Int).Set(tipCap)
	if header.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	}

	value := new(big.Int)
	if desc.Value != nil {
		value.Set(desc.Value.ToInt())
	}

	gas := uint64(desc.Gas)
	if gas == 0 {
		gas, err = client.EstimateGas(ctx, ethereum.CallMsg{
			From:  t.address,
			To:    &desc.To,
			Value: value,
			Data:  desc.Data,
		})
		if err != nil {
			return nil, errors.Wrap(err, "error estimating gas")
		}
	}

	to := desc.To
	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(desc.ChainId),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      desc.Data,
	}), nil
}

// waitForReceipt polls for the receipt of txHash until it is available or ctx ends.
func waitForReceipt(ctx context.Context, client ChainClient, txHash common.Hash, interval time.Duration) (*ethtypes.Receipt, error) {
	for {
		receipt, err := client.GetTransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "error getting receipt of %v", txHash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
