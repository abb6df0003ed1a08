package dbtypes

type TxBatch struct {
	Id         uint64 `db:"id"`
	CreatedAt  int64  `db:"created_at"`
	FinishedAt int64  `db:"finished_at"`
	ItemCount  uint64 `db:"item_count"`
	Completed  bool   `db:"completed"`
	Error      string `db:"error"`
}

type TxBatchItem struct {
	BatchId   uint64 `db:"batch_id"`
	ItemIndex uint64 `db:"item_index"`
	Label     string `db:"label"`
	ChainId   uint64 `db:"chain_id"`
	ToAddress []byte `db:"to_address"`
	Value     string `db:"value"`
	Data      []byte `db:"data"`
	Status    string `db:"status"`
	Attempts  uint64 `db:"attempts"`
	TxHash    []byte `db:"tx_hash"`
	Error     string `db:"error"`
}

type TxBatchFilter struct {
	ChainId       uint64
	WithItemError bool
}
