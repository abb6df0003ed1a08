package deposit

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/validator-dashboard/types"
	"github.com/ethpandaops/validator-dashboard/utils"
)

const depositContractAbi = `[{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},{"anonymous":false,"inputs":[{"indexed":false,"internalType":"bytes","name":"pubkey","type":"bytes"},{"indexed":false,"internalType":"bytes","name":"withdrawal_credentials","type":"bytes"},{"indexed":false,"internalType":"bytes","name":"amount","type":"bytes"},{"indexed":false,"internalType":"bytes","name":"signature","type":"bytes"},{"indexed":false,"internalType":"bytes","name":"index","type":"bytes"}],"name":"DepositEvent","type":"event"},{"inputs":[{"internalType":"bytes","name":"pubkey","type":"bytes"},{"internalType":"bytes","name":"withdrawal_credentials","type":"bytes"},{"internalType":"bytes","name":"signature","type":"bytes"},{"internalType":"bytes32","name":"deposit_data_root","type":"bytes32"}],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},{"inputs":[],"name":"get_deposit_count","outputs":[{"internalType":"bytes","name":"","type":"bytes"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"get_deposit_root","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"bytes4","name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"pure","type":"function"}]`

var (
	depositAbiOnce sync.Once
	depositAbi     abi.ABI
	depositAbiErr  error
)

func getDepositAbi() (*abi.ABI, error) {
	depositAbiOnce.Do(func() {
		depositAbi, depositAbiErr = abi.JSON(strings.NewReader(depositContractAbi))
	})
	if depositAbiErr != nil {
		return nil, depositAbiErr
	}
	return &depositAbi, nil
}

// DepositCalldata encodes the deposit contract call deposit(pubkey, withdrawal_credentials, signature, deposit_data_root).
func DepositCalldata(rec *DepositRecord) ([]byte, error) {
	contractAbi, err := getDepositAbi()
	if err != nil {
		return nil, fmt.Errorf("error parsing deposit contract abi: %w", err)
	}

	return contractAbi.Pack("deposit", rec.Pubkey[:], rec.WithdrawalCredentials[:], rec.Signature[:], [32]byte(rec.DepositDataRoot))
}

// DecodeDepositCalldata reverses DepositCalldata, the amount is not part of the calldata and stays 0.
func DecodeDepositCalldata(data []byte) (*DepositRecord, error) {
	contractAbi, err := getDepositAbi()
	if err != nil {
		return nil, fmt.Errorf("error parsing deposit contract abi: %w", err)
	}

	method := contractAbi.Methods["deposit"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, fmt.Errorf("calldata is not a deposit call")
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("error unpacking deposit calldata: %w", err)
	}

	pubkey, _ := args[0].([]byte)
	credentials, _ := args[1].([]byte)
	signature, _ := args[2].([]byte)
	dataRoot, _ := args[3].([32]byte)
	if len(pubkey) != 48 || len(credentials) != 32 || len(signature) != 96 {
		return nil, fmt.Errorf("deposit calldata has invalid field sizes")
	}

	rec := &DepositRecord{}
	copy(rec.Pubkey[:], pubkey)
	copy(rec.WithdrawalCredentials[:], credentials)
	copy(rec.Signature[:], signature)
	rec.DepositDataRoot = dataRoot
	return rec, nil
}

// BuildDepositTx builds the deposit contract transaction for a verified record.
// The value is the deposit amount in wei, the gas limit is left to the transport.
func BuildDepositTx(rec *DepositRecord, chain *types.ChainConfig) (*types.TxDescriptor, error) {
	if chain == nil || !common.IsHexAddress(chain.DepositContract) {
		return nil, fmt.Errorf("chain has no deposit contract")
	}

	data, err := DepositCalldata(rec)
	if err != nil {
		return nil, err
	}

	return &types.TxDescriptor{
		ChainId: chain.ChainId,
		To:      common.HexToAddress(chain.DepositContract),
		Value:   (*hexutil.Big)(utils.GweiToWei(uint64(rec.Amount))),
		Data:    data,
		Label:   fmt.Sprintf("deposit %v ETH to %v", utils.GWeiUint64ToEther(uint64(rec.Amount)), rec.Pubkey.String()),
	}, nil
}

// NewTopUpRecord builds a deposit for an existing validator. The consensus layer ignores the credentials
// and signature of top-ups, so the signature stays empty and only the data root is computed.
func NewTopUpRecord(pubkey phase0.BLSPubKey, credentials [32]byte, amount phase0.Gwei) *DepositRecord {
	rec := &DepositRecord{
		Pubkey:                pubkey,
		WithdrawalCredentials: credentials,
		Amount:                amount,
	}
	rec.DepositMessageRoot = MessageRootBytes(rec)
	rec.DepositDataRoot = DataRootBytes(rec)
	return rec
}
