package deposit

import (
	blsu "github.com/protolambda/bls12-381-util"
	zrnt_common "github.com/protolambda/zrnt/eth2/beacon/common"
	"github.com/protolambda/ztyp/tree"
)

// VerifySignature checks the BLS deposit signature against the record's fork version.
// Deposits are signed over the genesis fork version with an empty genesis validators root.
func VerifySignature(rec *DepositRecord) bool {
	depositSigDomain := zrnt_common.ComputeDomain(zrnt_common.DOMAIN_DEPOSIT, zrnt_common.Version(rec.ForkVersion), zrnt_common.Root{})

	depositMsg := &zrnt_common.DepositMessage{
		Pubkey:                zrnt_common.BLSPubkey(rec.Pubkey),
		WithdrawalCredentials: tree.Root(rec.WithdrawalCredentials),
		Amount:                zrnt_common.Gwei(rec.Amount),
	}
	depositRoot := depositMsg.HashTreeRoot(tree.GetHashFn())
	signingRoot := zrnt_common.ComputeSigningRoot(depositRoot, depositSigDomain)

	pubkey, err := depositMsg.Pubkey.Pubkey()
	if err != nil {
		return false
	}
	sigData := zrnt_common.BLSSignature(rec.Signature)
	sig, err := sigData.Signature()
	if err != nil {
		return false
	}

	return blsu.Verify(pubkey, signingRoot[:], sig)
}
