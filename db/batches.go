package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/validator-dashboard/dbtypes"
)

func InsertTxBatch(ctx context.Context, tx *sqlx.Tx, batch *dbtypes.TxBatch, items []*dbtypes.TxBatchItem) error {
	_, err := tx.ExecContext(ctx, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql: `
			INSERT INTO tx_batches (id, created_at, finished_at, item_count, completed, error)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				finished_at = excluded.finished_at,
				item_count = excluded.item_count,
				completed = excluded.completed,
				error = excluded.error`,
		dbtypes.DBEngineSqlite: `
			INSERT OR REPLACE INTO tx_batches (id, created_at, finished_at, item_count, completed, error)
			VALUES ($1, $2, $3, $4, $5, $6)`,
	}), batch.Id, batch.CreatedAt, batch.FinishedAt, batch.ItemCount, batch.Completed, batch.Error)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return nil
	}

	var sqlBuilder strings.Builder
	fmt.Fprint(&sqlBuilder, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql:  "INSERT INTO tx_batch_items ",
		dbtypes.DBEngineSqlite: "INSERT OR REPLACE INTO tx_batch_items ",
	}))
	fmt.Fprint(&sqlBuilder, "(batch_id, item_index, label, chain_id, to_address, value, data, status, attempts, tx_hash, error) VALUES ")

	argIdx := 0
	fieldCount := 11
	args := make([]any, len(items)*fieldCount)
	for i, item := range items {
		if i > 0 {
			fmt.Fprint(&sqlBuilder, ", ")
		}
		fmt.Fprint(&sqlBuilder, "(")
		for f := 0; f < fieldCount; f++ {
			if f > 0 {
				fmt.Fprint(&sqlBuilder, ", ")
			}
			fmt.Fprintf(&sqlBuilder, "$%v", argIdx+f+1)
		}
		fmt.Fprint(&sqlBuilder, ")")

		args[argIdx+0] = batch.Id
		args[argIdx+1] = item.ItemIndex
		args[argIdx+2] = item.Label
		args[argIdx+3] = item.ChainId
		args[argIdx+4] = item.ToAddress
		args[argIdx+5] = item.Value
		args[argIdx+6] = item.Data
		args[argIdx+7] = item.Status
		args[argIdx+8] = item.Attempts
		args[argIdx+9] = item.TxHash
		args[argIdx+10] = item.Error
		argIdx += fieldCount
	}
	fmt.Fprint(&sqlBuilder, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql: ` ON CONFLICT (batch_id, item_index) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			tx_hash = excluded.tx_hash,
			error = excluded.error`,
		dbtypes.DBEngineSqlite: "",
	}))

	_, err = tx.ExecContext(ctx, sqlBuilder.String(), args...)
	return err
}

// GetTxBatches returns archived batches, newest first, and the total number of matching batches.
func GetTxBatches(ctx context.Context, filter *dbtypes.TxBatchFilter, offset uint64, limit uint32) ([]*dbtypes.TxBatch, uint64, error) {
	var where strings.Builder
	args := []any{}
	conditions := []string{}

	if filter != nil && filter.ChainId > 0 {
		args = append(args, filter.ChainId)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM tx_batch_items i WHERE i.batch_id = b.id AND i.chain_id = $%v)", len(args)))
	}
	if filter != nil && filter.WithItemError {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM tx_batch_items i WHERE i.batch_id = b.id AND i.error != '')")
	}
	if len(conditions) > 0 {
		fmt.Fprintf(&where, " WHERE %v", strings.Join(conditions, " AND "))
	}

	var total uint64
	err := ReaderDb.GetContext(ctx, &total, "SELECT COUNT(*) FROM tx_batches b"+where.String(), args...)
	if err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT b.id, b.created_at, b.finished_at, b.item_count, b.completed, b.error
		FROM tx_batches b%v
		ORDER BY b.id DESC
		LIMIT $%v OFFSET $%v`, where.String(), len(args)-1, len(args))

	batches := []*dbtypes.TxBatch{}
	err = ReaderDb.SelectContext(ctx, &batches, query, args...)
	if err != nil {
		logger.Errorf("Error while fetching tx batches: %v", err)
		return nil, 0, err
	}

	return batches, total, nil
}

// GetTxBatch returns nil when no batch with id was archived.
func GetTxBatch(ctx context.Context, id uint64) (*dbtypes.TxBatch, error) {
	batch := &dbtypes.TxBatch{}
	err := ReaderDb.GetContext(ctx, batch, `
		SELECT id, created_at, finished_at, item_count, completed, error
		FROM tx_batches
		WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func GetTxBatchItems(ctx context.Context, batchId uint64) ([]*dbtypes.TxBatchItem, error) {
	items := []*dbtypes.TxBatchItem{}
	err := ReaderDb.SelectContext(ctx, &items, `
		SELECT batch_id, item_index, label, chain_id, to_address, value, data, status, attempts, tx_hash, error
		FROM tx_batch_items
		WHERE batch_id = $1
		ORDER BY item_index ASC`, batchId)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func GetMaxTxBatchId(ctx context.Context) (uint64, error) {
	var maxId uint64
	err := ReaderDb.GetContext(ctx, &maxId, `SELECT COALESCE(MAX(id), 0) FROM tx_batches`)
	if err != nil {
		return 0, err
	}
	return maxId, nil
}
