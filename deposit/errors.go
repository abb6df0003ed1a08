package deposit

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ErrorKind classifies deposit file violations.
type ErrorKind string

const (
	// KindMalformed covers missing, wrongly typed or wrongly sized fields.
	KindMalformed ErrorKind = "malformed"
	// KindAmount is an amount outside the allowed deposit range.
	KindAmount ErrorKind = "amount"
	// KindTampered is a supplied root that does not match the record contents.
	KindTampered ErrorKind = "tampered"
	// KindForkVersion is a record whose fork version differs from the first record.
	KindForkVersion ErrorKind = "fork_version"
)

// ValidationError is the first violation found in a deposit file.
// Index is the record position, or -1 for errors about the file as a whole.
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	Index   int       `json:"index"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("deposit %v: %v", e.Index, e.Message)
}

// ErrNotAnArray is returned for files that are not a non-empty JSON array.
var ErrNotAnArray = &ValidationError{
	Kind:    KindMalformed,
	Index:   -1,
	Message: "expected an array of deposit records",
}

// ChainMismatchError reports a deposit file that was generated for another network.
// ExpectedChainID is the registered chain for the file's fork version, 0 if none matches.
type ChainMismatchError struct {
	ChainID         uint64
	ForkVersion     phase0.Version
	ExpectedChainID uint64
}

func (e *ChainMismatchError) Error() string {
	if e.ExpectedChainID == 0 {
		return fmt.Sprintf("deposit file fork version %#x does not match chain %v and belongs to no known chain", e.ForkVersion[:], e.ChainID)
	}
	return fmt.Sprintf("deposit file fork version %#x does not match chain %v, switch to chain %v", e.ForkVersion[:], e.ChainID, e.ExpectedChainID)
}

func malformed(index int, field string, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:    KindMalformed,
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
