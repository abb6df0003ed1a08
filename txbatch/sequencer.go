package txbatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

// ItemStatus is the lifecycle state of a batch item.
type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSigning ItemStatus = "signing"
	StatusFailed  ItemStatus = "failed"
	StatusSuccess ItemStatus = "success"
	StatusSkipped ItemStatus = "skipped"
)

// IsTerminal reports whether the sequencer moves on from an item in this state.
func (s ItemStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusSkipped
}

// Decision is the caller's answer to a failed item.
type Decision uint8

const (
	DecisionRetry Decision = iota + 1
	DecisionSkip
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionSkip:
		return "skip"
	}
	return "unknown"
}

// ParseDecision parses "retry" or "skip".
func ParseDecision(value string) (Decision, error) {
	switch value {
	case "retry":
		return DecisionRetry, nil
	case "skip":
		return DecisionSkip, nil
	}
	return 0, fmt.Errorf("unknown decision: %v", value)
}

// DecisionFunc is asked how to continue after item failed. It may block until the user decides.
type DecisionFunc func(ctx context.Context, item *ItemResult) (Decision, error)

// ItemResult tracks one batch item.
type ItemResult struct {
	Index    int                 `json:"index"`
	Label    string              `json:"label"`
	Tx       *types.TxDescriptor `json:"tx"`
	Status   ItemStatus          `json:"status"`
	Attempts int                 `json:"attempts"`
	TxHash   string              `json:"txHash,omitempty"`
	TxUrl    string              `json:"txUrl,omitempty"`
	Error    string              `json:"error,omitempty"`

	// set while a broadcast transaction of this item awaits confirmation
	Broadcast *Broadcast `json:"broadcast,omitempty"`
}

// Sequencer submits batch items one at a time, strictly in order.
type Sequencer struct {
	transport Transport
	decide    DecisionFunc
	logger    logrus.FieldLogger
	onUpdate  func(result *ItemResult)
}

func NewSequencer(transport Transport, decide DecisionFunc, logger logrus.FieldLogger) *Sequencer {
	return &Sequencer{
		transport: transport,
		decide:    decide,
		logger:    logger,
	}
}

// OnUpdate registers a callback invoked with a copy of an item whenever its state changes.
func (s *Sequencer) OnUpdate(fn func(result *ItemResult)) {
	s.onUpdate = fn
}

// NewResults creates the pending result list for a batch.
func NewResults(items []*types.TxDescriptor) []*ItemResult {
	results := make([]*ItemResult, len(items))
	for idx, item := range items {
		results[idx] = &ItemResult{
			Index:  idx,
			Label:  item.Label,
			Tx:     item,
			Status: StatusPending,
		}
	}
	return results
}

// Run processes all items. An item is only submitted after the previous one succeeded or was skipped.
// Failed items are retried or skipped as the DecisionFunc says, never dropped.
// On cancellation the remaining items keep their current state and the context error is returned.
func (s *Sequencer) Run(ctx context.Context, items []*types.TxDescriptor) ([]*ItemResult, error) {
	results := NewResults(items)
	return results, s.RunResults(ctx, results)
}

// RunResults is Run on a result list prepared with NewResults.
func (s *Sequencer) RunResults(ctx context.Context, results []*ItemResult) error {
	for _, result := range results {
		if err := s.processItem(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) processItem(ctx context.Context, result *ItemResult) error {
	logger := s.logger.WithField("item", result.Index)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result.Status = StatusSigning
		result.Attempts++
		result.Error = ""
		s.notify(result)

		submission, err := s.submit(ctx, result)
		if err == nil {
			result.Status = StatusSuccess
			result.Broadcast = nil
			if submission != nil {
				result.TxHash = submission.TxHash.Hex()
			}
			s.notify(result)
			logger.Infof("batch item %v submitted: %v", result.Index, result.TxHash)
			return nil
		}

		var broadcastErr *BroadcastError
		if errors.As(err, &broadcastErr) {
			result.Broadcast = broadcastErr.Broadcast
			result.TxHash = broadcastErr.Broadcast.TxHash.Hex()
		} else {
			result.Broadcast = nil
		}

		result.Status = StatusFailed
		result.Error = err.Error()
		s.notify(result)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.WithError(err).Warnf("batch item %v failed (attempt %v)", result.Index, result.Attempts)

		decision, err := s.decide(ctx, copyResult(result))
		if err != nil {
			return err
		}

		switch decision {
		case DecisionRetry:
			continue
		case DecisionSkip:
			result.Status = StatusSkipped
			s.notify(result)
			logger.Infof("batch item %v skipped", result.Index)
			return nil
		default:
			return fmt.Errorf("invalid decision %v for batch item %v", decision, result.Index)
		}
	}
}

// submit retries follow up on an earlier broadcast of the item instead of submitting it again.
func (s *Sequencer) submit(ctx context.Context, result *ItemResult) (*Submission, error) {
	if result.Broadcast != nil {
		if resumer, ok := s.transport.(Resumer); ok {
			return resumer.Resume(ctx, result.Tx, result.Broadcast)
		}
	}
	return s.transport.Submit(ctx, result.Tx)
}

func (s *Sequencer) notify(result *ItemResult) {
	if s.onUpdate != nil {
		s.onUpdate(copyResult(result))
	}
}

func copyResult(result *ItemResult) *ItemResult {
	copied := *result
	return &copied
}
