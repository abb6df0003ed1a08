package validators

import (
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ethpandaops/validator-dashboard/utils"
)

var (
	ErrNoValidator       = errors.New("no validator selected")
	ErrBLSCredentials    = errors.New("validator has BLS withdrawal credentials")
	ErrNotActive         = errors.New("validator is not active")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrPendingWithdrawal = errors.New("validator has pending withdrawals")
)

var minActivationBalanceEth = utils.GWeiUint64ToEther(utils.MinActivationBalance)

// WithdrawalEntry requests a partial withdrawal of Amount ETH, or a full exit when Amount is 0.
type WithdrawalEntry struct {
	Validator *Validator
	Amount    string
}

// AmountGwei returns the requested amount truncated to gwei.
func (e *WithdrawalEntry) AmountGwei() (uint64, error) {
	return parseAmount(e.Amount)
}

// Validate checks the withdrawal against the validator's credentials and balance.
// Partial withdrawals are limited to compounding validators and must leave 32 ETH.
func (e *WithdrawalEntry) Validate() error {
	if e.Validator == nil {
		return ErrNoValidator
	}
	if !e.Validator.HasExecutionCredentials() {
		return errors.Wrapf(ErrBLSCredentials, "validator %v", e.Validator.Index)
	}
	if !e.Validator.IsActive() {
		return errors.Wrapf(ErrNotActive, "validator %v is %v", e.Validator.Index, e.Validator.Status)
	}

	amount, err := e.AmountGwei()
	if err != nil {
		return err
	}

	if amount == 0 {
		if e.Validator.PendingWithdrawals.IsPositive() {
			return errors.Wrapf(ErrPendingWithdrawal, "validator %v cannot exit", e.Validator.Index)
		}
		return nil
	}

	if !e.Validator.IsCompounding() {
		return errors.Errorf("validator %v: partial withdrawals require compounding credentials", e.Validator.Index)
	}

	available := e.Validator.Balance.Sub(e.Validator.PendingWithdrawals).Sub(minActivationBalanceEth)
	if utils.GWeiUint64ToEther(amount).GreaterThan(available) {
		return errors.Wrapf(ErrInvalidAmount, "validator %v: at most %v ETH can be withdrawn", e.Validator.Index, decimal.Max(available, decimal.Zero))
	}

	return nil
}

// TopUpEntry adds Amount ETH to an existing validator.
type TopUpEntry struct {
	Validator *Validator
	Amount    string
}

// AmountGwei returns the top-up amount truncated to gwei.
func (e *TopUpEntry) AmountGwei() (uint64, error) {
	return parseAmount(e.Amount)
}

// Validate checks the top-up keeps the validator within its maximum effective balance.
func (e *TopUpEntry) Validate() error {
	if e.Validator == nil {
		return ErrNoValidator
	}
	switch e.Validator.state {
	case apiv1.ValidatorStateActiveOngoing, apiv1.ValidatorStatePendingInitialized, apiv1.ValidatorStatePendingQueued:
	default:
		return errors.Wrapf(ErrNotActive, "validator %v is %v", e.Validator.Index, e.Validator.Status)
	}

	amount, err := e.AmountGwei()
	if err != nil {
		return err
	}
	if amount < utils.MinDepositAmount {
		return errors.Wrapf(ErrInvalidAmount, "validator %v: top-up must be at least 1 ETH", e.Validator.Index)
	}

	var credentialType byte
	if e.Validator.IsCompounding() {
		credentialType = utils.CompoundingWithdrawalPrefix
	}
	maxBalance := utils.GWeiUint64ToEther(utils.MaxEffectiveBalance(credentialType))

	total := e.Validator.Balance.Add(e.Validator.PendingDeposits).Add(utils.GWeiUint64ToEther(amount))
	if total.GreaterThan(maxBalance) {
		return errors.Wrapf(ErrInvalidAmount, "validator %v: balance would exceed the maximum effective balance of %v ETH", e.Validator.Index, maxBalance)
	}

	return nil
}

// ConsolidateEntry moves the balance of Source into Target.
// Source equal to Target switches a 0x01 validator to compounding credentials.
type ConsolidateEntry struct {
	Source *Validator
	Target *Validator
}

// IsUpgrade reports a self-consolidation, which only switches credentials.
func (e *ConsolidateEntry) IsUpgrade() bool {
	return e.Source != nil && e.Target != nil && e.Source.Index == e.Target.Index
}

func (e *ConsolidateEntry) Validate() error {
	if e.Source == nil || e.Target == nil {
		return ErrNoValidator
	}
	if !e.Source.HasExecutionCredentials() {
		return errors.Wrapf(ErrBLSCredentials, "source validator %v", e.Source.Index)
	}
	if !e.Source.IsActive() {
		return errors.Wrapf(ErrNotActive, "source validator %v is %v", e.Source.Index, e.Source.Status)
	}

	if e.IsUpgrade() {
		if e.Source.IsCompounding() {
			return errors.Errorf("validator %v already has compounding credentials", e.Source.Index)
		}
		return nil
	}

	if !e.Target.IsActive() {
		return errors.Wrapf(ErrNotActive, "target validator %v is %v", e.Target.Index, e.Target.Status)
	}
	if !e.Target.IsCompounding() {
		return errors.Errorf("target validator %v must have compounding credentials", e.Target.Index)
	}
	if e.Source.PendingWithdrawals.IsPositive() {
		return errors.Wrapf(ErrPendingWithdrawal, "source validator %v", e.Source.Index)
	}

	return nil
}

func parseAmount(amount string) (uint64, error) {
	if amount == "" {
		return 0, errors.Wrap(ErrInvalidAmount, "amount is empty")
	}
	gwei, err := utils.EtherToGwei(utils.ClampPrecision(amount, false))
	if err != nil {
		return 0, errors.Wrap(ErrInvalidAmount, err.Error())
	}
	return gwei, nil
}
