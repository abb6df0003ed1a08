package validators

import (
	"encoding/hex"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/electra"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ethpandaops/validator-dashboard/utils"
)

// Normalize converts a validator API record and its pending operations into the dashboard model.
// It returns nil for a missing record.
func Normalize(raw *apiv1.Validator, deposits []*electra.PendingDeposit, withdrawals []*electra.PendingPartialWithdrawal) *Validator {
	if raw == nil || raw.Validator == nil {
		return nil
	}

	validator := &Validator{
		Index:              uint64(raw.Index),
		Pubkey:             raw.Validator.PublicKey.String(),
		WithdrawalAddress:  UnsetWithdrawalAddress,
		Balance:            utils.GWeiUint64ToEther(uint64(raw.Balance)),
		EffectiveBalance:   utils.GWeiUint64ToEther(uint64(raw.Validator.EffectiveBalance)),
		PendingDeposits:    decimal.Zero,
		PendingWithdrawals: decimal.Zero,
		Status:             raw.Status.String(),
		StatusLabel:        StatusLabel(raw.Status),
		state:              raw.Status,
	}

	credentials := raw.Validator.WithdrawalCredentials
	if len(credentials) > 0 {
		validator.CredentialType = hex.EncodeToString(credentials[:1])
	}
	if len(credentials) == 32 && credentials[0] != utils.BLSWithdrawalPrefix {
		validator.WithdrawalAddress = common.BytesToAddress(credentials[12:]).Hex()
	}

	for _, deposit := range deposits {
		if deposit == nil {
			continue
		}
		validator.PendingDeposits = validator.PendingDeposits.Add(utils.GWeiUint64ToEther(uint64(deposit.Amount)))
	}
	for _, withdrawal := range withdrawals {
		if withdrawal == nil {
			continue
		}
		validator.PendingWithdrawals = validator.PendingWithdrawals.Add(utils.GWeiUint64ToEther(uint64(withdrawal.Amount)))
	}

	return validator
}

// NormalizeResponse normalizes a single validator API response entry.
func NormalizeResponse(response *ValidatorResponse) *Validator {
	if response == nil {
		return nil
	}
	return Normalize(response.Validator, response.PendingDeposits, response.PendingPartialWithdrawals)
}

// StatusLabel collapses beacon validator states into the labels shown on the dashboard.
func StatusLabel(state apiv1.ValidatorState) string {
	switch state {
	case apiv1.ValidatorStatePendingInitialized, apiv1.ValidatorStatePendingQueued:
		return "Pending"
	case apiv1.ValidatorStateActiveOngoing:
		return "Active"
	case apiv1.ValidatorStateActiveExiting:
		return "Exiting"
	case apiv1.ValidatorStateActiveSlashed, apiv1.ValidatorStateExitedSlashed:
		return "Slashed"
	case apiv1.ValidatorStateExitedUnslashed:
		return "Exited"
	case apiv1.ValidatorStateWithdrawalPossible:
		return "Withdrawable"
	case apiv1.ValidatorStateWithdrawalDone:
		return "Withdrawn"
	default:
		return "Unknown"
	}
}
