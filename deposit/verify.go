package deposit

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/shopspring/decimal"

	"github.com/ethpandaops/validator-dashboard/utils"
)

// ForkRegistry resolves chain ids and genesis fork versions.
type ForkRegistry interface {
	ForkVersion(chainID uint64) (phase0.Version, bool)
	ChainIDByForkVersion(forkVersion phase0.Version) uint64
}

// VerifyFile parses and verifies a deposit file in one step.
func VerifyFile(data []byte, chainID uint64, registry ForkRegistry) ([]*DepositRecord, error) {
	records, err := ParseDepositFile(data)
	if err != nil {
		return nil, err
	}
	return Verify(records, chainID, registry)
}

// Verify checks a deposit file for chainID and returns the decoded records.
// It stops at the first violation: field shape, then amount bounds and roots per record,
// then fork version consistency across records and finally the chain match.
func Verify(records []RawRecord, chainID uint64, registry ForkRegistry) ([]*DepositRecord, error) {
	if len(records) == 0 {
		return nil, ErrNotAnArray
	}

	deposits := make([]*DepositRecord, 0, len(records))
	for idx, raw := range records {
		rec, amount, err := parseRecord(idx, raw)
		if err != nil {
			return nil, err
		}

		if err := checkAmount(idx, rec, amount); err != nil {
			return nil, err
		}

		if err := checkRoots(idx, rec); err != nil {
			return nil, err
		}

		deposits = append(deposits, rec)
	}

	forkVersion := deposits[0].ForkVersion
	for idx, rec := range deposits {
		if rec.ForkVersion != forkVersion {
			return nil, &ValidationError{
				Kind:    KindForkVersion,
				Index:   idx,
				Field:   FieldForkVersion,
				Message: fmt.Sprintf("fork_version %#x differs from the first deposit (%#x)", rec.ForkVersion[:], forkVersion[:]),
			}
		}
	}

	chainForkVersion, ok := registry.ForkVersion(chainID)
	if !ok || chainForkVersion != forkVersion {
		return nil, &ChainMismatchError{
			ChainID:         chainID,
			ForkVersion:     forkVersion,
			ExpectedChainID: registry.ChainIDByForkVersion(forkVersion),
		}
	}

	return deposits, nil
}

func parseRecord(idx int, raw RawRecord) (*DepositRecord, decimal.Decimal, error) {
	rec := &DepositRecord{}
	amount := decimal.Zero
	fieldBytes := make(map[string][]byte, len(recordFields))

	for _, field := range recordFields {
		value, present := decodeField(raw[field.name])
		if !present {
			return nil, amount, malformed(idx, field.name, "%v is missing", field.name)
		}

		if field.hexLen == 0 {
			number, isNumber := value.(json.Number)
			if !isNumber {
				return nil, amount, malformed(idx, field.name, "%v must be a number", field.name)
			}
			parsed, err := decimal.NewFromString(number.String())
			if err != nil || !parsed.IsInteger() {
				return nil, amount, malformed(idx, field.name, "%v must be a whole number of gwei", field.name)
			}
			amount = parsed
			continue
		}

		str, isString := value.(string)
		if !isString {
			return nil, amount, malformed(idx, field.name, "%v must be a string", field.name)
		}
		if len(str) != field.hexLen {
			return nil, amount, malformed(idx, field.name, "%v must be %v hex characters, got %v", field.name, field.hexLen, len(str))
		}
		decoded, err := hex.DecodeString(str)
		if err != nil {
			return nil, amount, malformed(idx, field.name, "%v is not valid hex", field.name)
		}
		fieldBytes[field.name] = decoded
	}

	copy(rec.Pubkey[:], fieldBytes[FieldPubkey])
	copy(rec.WithdrawalCredentials[:], fieldBytes[FieldWithdrawalCredentials])
	copy(rec.Signature[:], fieldBytes[FieldSignature])
	copy(rec.ForkVersion[:], fieldBytes[FieldForkVersion])
	copy(rec.DepositMessageRoot[:], fieldBytes[FieldDepositMessageRoot])
	copy(rec.DepositDataRoot[:], fieldBytes[FieldDepositDataRoot])

	return rec, amount, nil
}

// decodeField returns the JSON value of a field and whether it is present.
// Falsy values (null, "", 0, false) count as absent.
func decodeField(raw json.RawMessage) (interface{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var value interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return nil, false
	}

	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, v != ""
	case bool:
		return v, v
	case json.Number:
		number, err := decimal.NewFromString(v.String())
		if err == nil && number.IsZero() {
			return v, false
		}
	}

	return value, true
}

func checkAmount(idx int, rec *DepositRecord, amount decimal.Decimal) error {
	minAmount := decimal.NewFromBigInt(new(big.Int).SetUint64(utils.MinDepositAmount), 0)
	if amount.LessThan(minAmount) {
		return &ValidationError{
			Kind:    KindAmount,
			Index:   idx,
			Field:   FieldAmount,
			Message: fmt.Sprintf("amount %v ETH is below the minimum deposit of %v ETH", amount.Shift(-utils.GweiDecimals), minAmount.Shift(-utils.GweiDecimals)),
		}
	}

	maxAmount := decimal.NewFromBigInt(new(big.Int).SetUint64(utils.MaxEffectiveBalance(rec.CredentialType())), 0)
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{
			Kind:    KindAmount,
			Index:   idx,
			Field:   FieldAmount,
			Message: fmt.Sprintf("amount %v ETH exceeds the maximum effective balance of %v ETH", amount.Shift(-utils.GweiDecimals), maxAmount.Shift(-utils.GweiDecimals)),
		}
	}

	rec.Amount = phase0.Gwei(amount.BigInt().Uint64())
	return nil
}

func checkRoots(idx int, rec *DepositRecord) error {
	if MessageRootBytes(rec) != rec.DepositMessageRoot {
		return &ValidationError{
			Kind:    KindTampered,
			Index:   idx,
			Field:   FieldDepositMessageRoot,
			Message: "deposit_message_root does not match the deposit contents, the file may have been tampered with",
		}
	}

	if DataRootBytes(rec) != rec.DepositDataRoot {
		return &ValidationError{
			Kind:    KindTampered,
			Index:   idx,
			Field:   FieldDepositDataRoot,
			Message: "deposit_data_root does not match the deposit contents, the file may have been tampered with",
		}
	}

	return nil
}
