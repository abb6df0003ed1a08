package services

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-dashboard/db"
	"github.com/ethpandaops/validator-dashboard/dbtypes"
	"github.com/ethpandaops/validator-dashboard/txbatch"
	"github.com/ethpandaops/validator-dashboard/types"
)

var ErrArchiveDisabled = errors.New("batch archive is not enabled")

// BatchSummary is an archived batch without its items.
type BatchSummary struct {
	ID         uint64    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
	ItemCount  uint64    `json:"item_count"`
	Completed  bool      `json:"completed"`
	Error      string    `json:"error,omitempty"`
}

// restoreBatchID continues the batch numbering of the archive.
func (bs *BatchService) restoreBatchID(ctx context.Context) error {
	if !db.Enabled() {
		return nil
	}

	maxID, err := db.GetMaxTxBatchId(ctx)
	if err != nil {
		return errors.Wrap(err, "error loading last batch id")
	}

	bs.mutex.Lock()
	if maxID > bs.lastID {
		bs.lastID = maxID
	}
	bs.mutex.Unlock()
	return nil
}

func (bs *BatchService) archiveBatch(ctx context.Context, run *batchRun) error {
	if !db.Enabled() {
		return nil
	}

	bs.mutex.Lock()
	batch := &dbtypes.TxBatch{
		Id:         run.id,
		CreatedAt:  run.createdAt.Unix(),
		FinishedAt: time.Now().Unix(),
		ItemCount:  uint64(len(run.items)),
		Completed:  run.err == "",
		Error:      run.err,
	}
	items := make([]*dbtypes.TxBatchItem, len(run.items))
	for idx, item := range run.items {
		items[idx] = batchItemToDb(run.id, item)
	}
	bs.mutex.Unlock()

	return db.RunDBTransaction(func(tx *sqlx.Tx) error {
		return db.InsertTxBatch(ctx, tx, batch, items)
	})
}

// BatchHistory returns archived batches, newest first, and the number of matching batches.
func (bs *BatchService) BatchHistory(ctx context.Context, chainID uint64, offset uint64, limit uint32) ([]*BatchSummary, uint64, error) {
	if !db.Enabled() {
		return nil, 0, ErrArchiveDisabled
	}

	dbBatches, total, err := db.GetTxBatches(ctx, &dbtypes.TxBatchFilter{ChainId: chainID}, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]*BatchSummary, len(dbBatches))
	for idx, dbBatch := range dbBatches {
		summaries[idx] = &BatchSummary{
			ID:         dbBatch.Id,
			CreatedAt:  time.Unix(dbBatch.CreatedAt, 0).UTC(),
			FinishedAt: time.Unix(dbBatch.FinishedAt, 0).UTC(),
			ItemCount:  dbBatch.ItemCount,
			Completed:  dbBatch.Completed,
			Error:      dbBatch.Error,
		}
	}
	return summaries, total, nil
}

// ArchivedBatch loads a finished batch with its items. It returns nil for unknown ids.
func (bs *BatchService) ArchivedBatch(ctx context.Context, id uint64) (*BatchStatus, error) {
	if !db.Enabled() {
		return nil, ErrArchiveDisabled
	}

	dbBatch, err := db.GetTxBatch(ctx, id)
	if err != nil || dbBatch == nil {
		return nil, err
	}

	dbItems, err := db.GetTxBatchItems(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &BatchStatus{
		ID:        dbBatch.Id,
		CreatedAt: time.Unix(dbBatch.CreatedAt, 0).UTC(),
		Items:     make([]*txbatch.ItemResult, len(dbItems)),
		Error:     dbBatch.Error,
	}
	for idx, dbItem := range dbItems {
		status.Items[idx] = batchItemFromDb(dbItem)
	}
	return status, nil
}

func batchItemToDb(batchID uint64, item *txbatch.ItemResult) *dbtypes.TxBatchItem {
	dbItem := &dbtypes.TxBatchItem{
		BatchId:   batchID,
		ItemIndex: uint64(item.Index),
		Label:     item.Label,
		Value:     "0",
		Status:    string(item.Status),
		Attempts:  uint64(item.Attempts),
		Error:     item.Error,
	}
	if item.Tx != nil {
		dbItem.ChainId = item.Tx.ChainId
		dbItem.ToAddress = item.Tx.To.Bytes()
		dbItem.Data = item.Tx.Data
		if item.Tx.Value != nil {
			dbItem.Value = item.Tx.Value.ToInt().String()
		}
	}
	if dbItem.Data == nil {
		dbItem.Data = []byte{}
	}
	if item.TxHash != "" {
		dbItem.TxHash = common.FromHex(item.TxHash)
	}
	return dbItem
}

func batchItemFromDb(dbItem *dbtypes.TxBatchItem) *txbatch.ItemResult {
	value, ok := new(big.Int).SetString(dbItem.Value, 10)
	if !ok {
		value = new(big.Int)
	}

	item := &txbatch.ItemResult{
		Index: int(dbItem.ItemIndex),
		Label: dbItem.Label,
		Tx: &types.TxDescriptor{
			ChainId: dbItem.ChainId,
			To:      common.BytesToAddress(dbItem.ToAddress),
			Value:   (*hexutil.Big)(value),
			Data:    dbItem.Data,
			Label:   dbItem.Label,
		},
		Status:   txbatch.ItemStatus(dbItem.Status),
		Attempts: int(dbItem.Attempts),
		Error:    dbItem.Error,
	}
	if len(dbItem.TxHash) > 0 {
		item.TxHash = hexutil.Encode(dbItem.TxHash)
	}
	return item
}
