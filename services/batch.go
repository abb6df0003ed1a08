package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/clients/execution"
	"github.com/ethpandaops/validator-dashboard/metrics"
	"github.com/ethpandaops/validator-dashboard/txbatch"
	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
)

var (
	ErrBatchRunning     = errors.New("a batch is already running")
	ErrNoBatch          = errors.New("no batch started")
	ErrNoDecisionWanted = errors.New("no batch item is waiting for a decision")
	ErrOfflineDisabled  = errors.New("offline signing is not enabled")
)

// BatchStatus is a snapshot of the current batch.
type BatchStatus struct {
	ID          uint64                    `json:"id"`
	CreatedAt   time.Time                 `json:"created_at"`
	Running     bool                      `json:"running"`
	Items       []*txbatch.ItemResult     `json:"items"`
	AwaitingFor *int                      `json:"awaiting_decision,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Signature   *txbatch.SignatureRequest `json:"signature_request,omitempty"`
}

type batchRun struct {
	id        uint64
	createdAt time.Time
	items     []*txbatch.ItemResult
	running   bool
	err       string
	awaiting  int
	decisions chan txbatch.Decision
	cancel    context.CancelFunc
	done      chan struct{}
}

// BatchService runs one transaction batch at a time and owns the offline signature slot.
type BatchService struct {
	logger    logrus.FieldLogger
	transport txbatch.Transport
	signer    *txbatch.OfflineSigner

	mutex   sync.Mutex
	current *batchRun
	lastID  uint64
}

var GlobalBatchService *BatchService

// InitBatchService builds the global batch service with the transport selected by utils.Config.Signer.Mode.
func InitBatchService(logger logrus.FieldLogger) error {
	if GlobalBatchService != nil {
		return nil
	}

	var clients txbatch.ClientProvider
	if GlobalDashboardService != nil && GlobalDashboardService.ExecutionPool() != nil {
		pool := GlobalDashboardService.ExecutionPool()
		clients = func(ctx context.Context, chainID uint64) (txbatch.ChainClient, error) {
			client, err := pool.GetClient(ctx, chainID)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	serviceLogger := logger.WithField("service", "batch")
	signerCfg := utils.Config.Signer

	switch signerCfg.Mode {
	case "wallet":
		if clients == nil {
			return fmt.Errorf("wallet signer requires execution endpoints")
		}
		transport, err := txbatch.NewWalletTransport(signerCfg.PrivateKey, clients, signerCfg.ReceiptInterval, serviceLogger)
		if err != nil {
			return err
		}
		serviceLogger.Infof("signing batches with wallet %v", transport.Address().Hex())
		logWalletBalances(serviceLogger, GlobalDashboardService.ExecutionPool(), transport.Address())
		GlobalBatchService = NewBatchService(serviceLogger, transport, nil)
	default:
		signer := txbatch.NewOfflineSigner()
		transport := txbatch.NewOfflineTransport(signer, clients, signerCfg.ReceiptInterval, serviceLogger)
		GlobalBatchService = NewBatchService(serviceLogger, transport, signer)
	}

	if err := GlobalBatchService.restoreBatchID(context.Background()); err != nil {
		return err
	}

	metrics.AddPreCollectFn(func() {
		metrics.SetPendingSignature(GlobalBatchService.PendingSignature() != nil)
	})

	return nil
}

func logWalletBalances(logger logrus.FieldLogger, pool *execution.Pool, wallet common.Address) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, chainID := range pool.GetChainIDs() {
		client, err := pool.GetClient(ctx, chainID)
		if err != nil {
			logger.WithError(err).Warnf("no execution client for chain %v", chainID)
			continue
		}
		balance, err := client.GetBalanceAt(ctx, wallet, nil)
		if err != nil {
			logger.WithError(err).Warnf("error getting wallet balance on chain %v", chainID)
			continue
		}
		logger.Infof("wallet balance on chain %v: %v ETH", chainID, utils.WeiToEther(balance).String())
	}
}

// NewBatchService creates a batch service. signer is nil unless transport signs through it.
func NewBatchService(logger logrus.FieldLogger, transport txbatch.Transport, signer *txbatch.OfflineSigner) *BatchService {
	return &BatchService{
		logger:    logger,
		transport: transport,
		signer:    signer,
	}
}

// Start begins processing txs in the background. Only one batch runs at a time.
func (bs *BatchService) Start(txs []*types.TxDescriptor) (*BatchStatus, error) {
	if len(txs) == 0 {
		return nil, errors.New("batch has no transactions")
	}
	for idx, tx := range txs {
		if tx == nil || tx.ChainId == 0 {
			return nil, errors.Errorf("batch item %v has no chain id", idx)
		}
	}

	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if bs.current != nil && bs.current.running {
		return nil, ErrBatchRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.lastID++
	run := &batchRun{
		id:        bs.lastID,
		createdAt: time.Now(),
		items:     txbatch.NewResults(txs),
		running:   true,
		awaiting:  -1,
		decisions: make(chan txbatch.Decision, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	bs.current = run

	go bs.runBatch(ctx, run)

	return bs.statusLocked(), nil
}

func (bs *BatchService) runBatch(ctx context.Context, run *batchRun) {
	defer close(run.done)
	defer utils.HandleSubroutinePanic("batch")
	logger := bs.logger.WithField("batch", run.id)

	sequencer := txbatch.NewSequencer(bs.transport, func(ctx context.Context, item *txbatch.ItemResult) (txbatch.Decision, error) {
		return bs.awaitDecision(ctx, run, item)
	}, logger)
	sequencer.OnUpdate(func(result *txbatch.ItemResult) {
		bs.mutex.Lock()
		run.items[result.Index] = result
		bs.mutex.Unlock()

		if result.Status.IsTerminal() || result.Status == txbatch.StatusFailed {
			metrics.ObserveBatchItem(string(result.Status))
		}
	})

	// the sequencer mutates the items it was given, keep those private
	items := make([]*txbatch.ItemResult, len(run.items))
	bs.mutex.Lock()
	for idx, item := range run.items {
		copied := *item
		items[idx] = &copied
	}
	bs.mutex.Unlock()

	err := sequencer.RunResults(ctx, items)

	bs.mutex.Lock()
	run.running = false
	run.awaiting = -1
	if err != nil {
		run.err = err.Error()
	}
	bs.mutex.Unlock()

	if err != nil {
		logger.WithError(err).Warn("batch stopped")
	} else {
		logger.Infof("batch completed with %v items", len(items))
	}

	archiveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := bs.archiveBatch(archiveCtx, run); err != nil {
		utils.LogError(err, "error archiving batch", 0, map[string]interface{}{"batch": run.id})
	}
}

func (bs *BatchService) awaitDecision(ctx context.Context, run *batchRun, item *txbatch.ItemResult) (txbatch.Decision, error) {
	bs.mutex.Lock()
	run.awaiting = item.Index
	bs.mutex.Unlock()

	defer func() {
		bs.mutex.Lock()
		run.awaiting = -1
		bs.mutex.Unlock()
	}()

	select {
	case decision := <-run.decisions:
		return decision, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Decide answers the failed item the current batch is waiting on.
func (bs *BatchService) Decide(decision txbatch.Decision) error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if bs.current == nil {
		return ErrNoBatch
	}
	if bs.current.awaiting < 0 {
		return ErrNoDecisionWanted
	}

	select {
	case bs.current.decisions <- decision:
		return nil
	default:
		return ErrNoDecisionWanted
	}
}

// Cancel stops the current batch and rejects its outstanding signature request.
func (bs *BatchService) Cancel() error {
	bs.mutex.Lock()
	run := bs.current
	bs.mutex.Unlock()

	if run == nil {
		return ErrNoBatch
	}

	run.cancel()
	if bs.signer != nil {
		if pending := bs.signer.Pending(); pending != nil {
			bs.signer.Cancel(pending.ID, context.Canceled)
		}
	}
	<-run.done
	return nil
}

// Current returns a snapshot of the current batch, or nil.
func (bs *BatchService) Current() *BatchStatus {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()
	return bs.statusLocked()
}

func (bs *BatchService) statusLocked() *BatchStatus {
	run := bs.current
	if run == nil {
		return nil
	}

	status := &BatchStatus{
		ID:        run.id,
		CreatedAt: run.createdAt,
		Running:   run.running,
		Items:     make([]*txbatch.ItemResult, len(run.items)),
		Error:     run.err,
	}
	for idx, item := range run.items {
		copied := *item
		status.Items[idx] = &copied
	}
	if run.awaiting >= 0 {
		awaiting := run.awaiting
		status.AwaitingFor = &awaiting
	}
	if bs.signer != nil {
		status.Signature = bs.signer.Pending()
	}
	return status
}

// OfflineEnabled reports whether transactions are signed by an external signer.
func (bs *BatchService) OfflineEnabled() bool {
	return bs.signer != nil
}

// PendingSignature returns the transaction waiting for the external signer, or nil.
func (bs *BatchService) PendingSignature() *txbatch.SignatureRequest {
	if bs.signer == nil {
		return nil
	}
	return bs.signer.Pending()
}

// SignerState returns the offline signature slot state.
func (bs *BatchService) SignerState() txbatch.SignerState {
	if bs.signer == nil {
		return txbatch.SignerIdle
	}
	return bs.signer.State()
}

// SubmitSignature resolves the pending signature request with a signed transaction, the hash of a
// transaction the signer broadcast itself, or a rejection message.
func (bs *BatchService) SubmitSignature(id uint64, signedTx hexutil.Bytes, txHash common.Hash, rejection string) error {
	if bs.signer == nil {
		return ErrOfflineDisabled
	}

	result := &txbatch.SignatureResult{
		SignedTx: signedTx,
		TxHash:   txHash,
	}
	if rejection != "" {
		result.Err = errors.Errorf("signer rejected transaction: %v", rejection)
	}
	return bs.signer.Resolve(id, result)
}

// Wait blocks until the current batch stops or ctx ends.
func (bs *BatchService) Wait(ctx context.Context) error {
	bs.mutex.Lock()
	run := bs.current
	bs.mutex.Unlock()

	if run == nil {
		return ErrNoBatch
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
