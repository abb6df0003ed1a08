package requests

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// StorageReader reads contract storage, implemented by the execution client.
type StorageReader interface {
	GetStorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// QueueReader quotes request fees from the on-chain queue excess.
type QueueReader struct {
	client StorageReader
	logger logrus.FieldLogger
}

func NewQueueReader(client StorageReader, logger logrus.FieldLogger) *QueueReader {
	return &QueueReader{
		client: client,
		logger: logger,
	}
}

// ReadQueue reads storage slot 0 of the request contract and computes the queue fee.
// Read failures are logged and quoted as an empty queue.
func (r *QueueReader) ReadQueue(ctx context.Context, contract common.Address, addition uint64) *Queue {
	raw, err := r.client.GetStorageAt(ctx, contract, common.Hash{}, nil)
	if err != nil {
		r.logger.WithError(err).Warnf("failed reading queue excess of %v, assuming empty queue", contract.Hex())
		return ComputeQueue("", addition)
	}

	return ComputeQueue(hex.EncodeToString(raw), addition)
}
