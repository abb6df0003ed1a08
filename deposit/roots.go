package deposit

import (
	"encoding/hex"

	ssz "github.com/ferranbt/fastssz"
)

// depositMessage is the signed part of a deposit: {pubkey, withdrawal_credentials, amount}.
type depositMessage struct {
	record *DepositRecord
}

func (m *depositMessage) HashTreeRootWith(hh ssz.HashWalker) error {
	indx := hh.Index()

	hh.PutBytes(m.record.Pubkey[:])
	hh.PutBytes(m.record.WithdrawalCredentials[:])
	hh.PutUint64(uint64(m.record.Amount))

	hh.Merkleize(indx)
	return nil
}

func (m *depositMessage) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(m)
}

func (m *depositMessage) GetTree() (*ssz.Node, error) {
	return ssz.ProofTree(m)
}

// depositData is the deposit contract input: the message fields plus the signature.
type depositData struct {
	record *DepositRecord
}

func (d *depositData) HashTreeRootWith(hh ssz.HashWalker) error {
	indx := hh.Index()

	hh.PutBytes(d.record.Pubkey[:])
	hh.PutBytes(d.record.WithdrawalCredentials[:])
	hh.PutUint64(uint64(d.record.Amount))
	hh.PutBytes(d.record.Signature[:])

	hh.Merkleize(indx)
	return nil
}

func (d *depositData) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(d)
}

func (d *depositData) GetTree() (*ssz.Node, error) {
	return ssz.ProofTree(d)
}

// MessageRootBytes returns the hash tree root of the deposit message.
func MessageRootBytes(rec *DepositRecord) [32]byte {
	// the container has fixed size fields only, hashing cannot fail
	root, _ := (&depositMessage{record: rec}).HashTreeRoot()
	return root
}

// DataRootBytes returns the hash tree root of the deposit data.
func DataRootBytes(rec *DepositRecord) [32]byte {
	root, _ := (&depositData{record: rec}).HashTreeRoot()
	return root
}

// MessageRoot returns the deposit message root as 64 lowercase hex characters.
func MessageRoot(rec *DepositRecord) string {
	root := MessageRootBytes(rec)
	return hex.EncodeToString(root[:])
}

// DataRoot returns the deposit data root as 64 lowercase hex characters.
func DataRoot(rec *DepositRecord) string {
	root := DataRootBytes(rec)
	return hex.EncodeToString(root[:])
}
