package validators

import (
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/electra"
	"github.com/shopspring/decimal"
)

// UnsetWithdrawalAddress is reported for validators with BLS withdrawal credentials.
const UnsetWithdrawalAddress = "unset"

// ValidatorResponse is one entry of the validator API response for an address.
type ValidatorResponse struct {
	Validator                 *apiv1.Validator                    `json:"validator"`
	PendingDeposits           []*electra.PendingDeposit           `json:"pending_deposits"`
	PendingPartialWithdrawals []*electra.PendingPartialWithdrawal `json:"pending_partial_withdrawals"`
}

// Validator is the dashboard view of a validator. Balances are in ETH.
type Validator struct {
	Index              uint64          `json:"index"`
	Pubkey             string          `json:"pubkey"`
	CredentialType     string          `json:"credential_type"`
	WithdrawalAddress  string          `json:"withdrawal_address"`
	Balance            decimal.Decimal `json:"balance"`
	EffectiveBalance   decimal.Decimal `json:"effective_balance"`
	PendingDeposits    decimal.Decimal `json:"pending_deposits"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	Status             string          `json:"status"`
	StatusLabel        string          `json:"status_label"`

	state apiv1.ValidatorState
}

// IsActive reports whether the validator is active and not exiting.
func (v *Validator) IsActive() bool {
	return v.state == apiv1.ValidatorStateActiveOngoing
}

// HasExecutionCredentials reports 0x01 or 0x02 withdrawal credentials.
func (v *Validator) HasExecutionCredentials() bool {
	return v.CredentialType == "01" || v.CredentialType == "02"
}

// IsCompounding reports 0x02 withdrawal credentials.
func (v *Validator) IsCompounding() bool {
	return v.CredentialType == "02"
}
