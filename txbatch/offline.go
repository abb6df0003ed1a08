package txbatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/validator-dashboard/types"
)

// SignerState is the state of the offline signature slot.
type SignerState string

const (
	SignerIdle     SignerState = "idle"
	SignerAwaiting SignerState = "awaiting-signature"
	SignerResolved SignerState = "resolved"
)

var (
	ErrNoPendingRequest = errors.New("no pending signature request")
	ErrRequestMismatch  = errors.New("signature does not belong to the pending request")
	ErrSignatureEmpty   = errors.New("neither signed transaction nor transaction hash provided")
)

// SignatureRequest is the unsigned transaction waiting for an external signer.
type SignatureRequest struct {
	ID        uint64              `json:"id"`
	Tx        *types.TxDescriptor `json:"tx"`
	CreatedAt time.Time           `json:"createdAt"`
}

// SignatureResult is what the external signer returns: a signed raw transaction, the hash of a
// transaction it broadcast itself, or an error such as a rejection.
type SignatureResult struct {
	SignedTx hexutil.Bytes
	TxHash   common.Hash
	Err      error
}

type signatureSlot struct {
	request *SignatureRequest
	done    chan struct{}
	result  *SignatureResult
}

// SignatureTicket waits for the resolution of a signature request.
type SignatureTicket struct {
	Request *SignatureRequest
	slot    *signatureSlot
}

// Wait blocks until the request is resolved or ctx ends.
func (t *SignatureTicket) Wait(ctx context.Context) (*SignatureResult, error) {
	select {
	case <-t.slot.done:
		return t.slot.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OfflineSigner holds at most one outstanding signature request.
// States move idle -> awaiting-signature -> resolved, and back to awaiting-signature on the next request.
type OfflineSigner struct {
	mutex  sync.Mutex
	state  SignerState
	slot   *signatureSlot
	nextID uint64
}

func NewOfflineSigner() *OfflineSigner {
	return &OfflineSigner{
		state: SignerIdle,
	}
}

// State returns the current slot state.
func (s *OfflineSigner) State() SignerState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Pending returns the outstanding request, or nil.
func (s *OfflineSigner) Pending() *SignatureRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.slot == nil {
		return nil
	}
	return s.slot.request
}

// Request opens a signature request for tx. While a request is outstanding no new one is
// created and the ticket of the outstanding request is returned instead.
func (s *OfflineSigner) Request(tx *types.TxDescriptor) *SignatureTicket {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.slot == nil {
		s.nextID++
		s.slot = &signatureSlot{
			request: &SignatureRequest{
				ID:        s.nextID,
				Tx:        tx,
				CreatedAt: time.Now(),
			},
			done: make(chan struct{}),
		}
		s.state = SignerAwaiting
	}

	return &SignatureTicket{
		Request: s.slot.request,
		slot:    s.slot,
	}
}

// Resolve completes the outstanding request once. The slot is cleared before waiters wake up,
// so a late or repeated resolution fails instead of reaching a later request.
func (s *OfflineSigner) Resolve(id uint64, result *SignatureResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.slot == nil {
		return ErrNoPendingRequest
	}
	if s.slot.request.ID != id {
		return ErrRequestMismatch
	}
	if result == nil || (result.Err == nil && len(result.SignedTx) == 0 && result.TxHash == (common.Hash{})) {
		return ErrSignatureEmpty
	}

	slot := s.slot
	s.slot = nil
	s.state = SignerResolved

	slot.result = result
	close(slot.done)
	return nil
}

// Cancel resolves the request with err if it is still outstanding.
func (s *OfflineSigner) Cancel(id uint64, err error) {
	_ = s.Resolve(id, &SignatureResult{Err: err})
}
