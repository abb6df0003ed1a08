package deposit

import (
	"bytes"
	"encoding/json"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

const (
	FieldPubkey                = "pubkey"
	FieldWithdrawalCredentials = "withdrawal_credentials"
	FieldAmount                = "amount"
	FieldSignature             = "signature"
	FieldForkVersion           = "fork_version"
	FieldDepositMessageRoot    = "deposit_message_root"
	FieldDepositDataRoot       = "deposit_data_root"
)

type recordField struct {
	name   string
	hexLen int // 0 for numeric fields
}

// field order determines which violation is reported first
var recordFields = []recordField{
	{FieldPubkey, 96},
	{FieldWithdrawalCredentials, 64},
	{FieldAmount, 0},
	{FieldSignature, 192},
	{FieldForkVersion, 8},
	{FieldDepositMessageRoot, 64},
	{FieldDepositDataRoot, 64},
}

// RawRecord is a single undecoded entry of a deposit file.
type RawRecord map[string]json.RawMessage

// DepositRecord is a deposit file entry whose fields passed presence, type and length checks.
type DepositRecord struct {
	Pubkey                phase0.BLSPubKey
	WithdrawalCredentials [32]byte
	Amount                phase0.Gwei
	Signature             phase0.BLSSignature
	ForkVersion           phase0.Version
	DepositMessageRoot    phase0.Root
	DepositDataRoot       phase0.Root
}

// CredentialType returns the withdrawal credential prefix byte (0x00 BLS, 0x01 execution, 0x02 compounding).
func (r *DepositRecord) CredentialType() byte {
	return r.WithdrawalCredentials[0]
}

// ParseDepositFile splits an uploaded deposit file into its raw records.
// Entries that are not JSON objects are kept as empty records, so they fail the field checks.
func ParseDepositFile(data []byte) ([]RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotAnArray
	}

	entries := []json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ErrNotAnArray
	}

	records := make([]RawRecord, len(entries))
	for idx, entry := range entries {
		record := RawRecord{}
		if err := json.Unmarshal(entry, &record); err != nil || record == nil {
			record = RawRecord{}
		}
		records[idx] = record
	}

	return records, nil
}
