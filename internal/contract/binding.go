// Package contract binds the bridge handler's ABI to its on-chain address and
// encodes deposit_request calls.
package contract

import (
	"io"
	"math/big"
	"os"

	"chakradeposit/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const DepositRequestMethod = "deposit_request"

var depositRequestInputs = []string{"uint256", "string", "address", "uint256"}

// LoadABI parses the JSON interface description at path.
func LoadABI(path string) (abi.ABI, error) {
	file, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, errors.Wrapf(err, "failed to open abi file %s", path)
	}
	defer file.Close()

	parsed, err := ParseABI(file)
	if err != nil {
		return abi.ABI{}, errors.Wrapf(err, "abi file %s", path)
	}
	return parsed, nil
}

func ParseABI(r io.Reader) (abi.ABI, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "failed to parse abi")
	}
	return parsed, nil
}

// Binding is an immutable proxy for the handler contract's deposit_request method.
type Binding struct {
	address common.Address
	abi     abi.ABI
	method  abi.Method
}

func NewBinding(address common.Address, parsed abi.ABI) (*Binding, error) {
	if address == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}
	method, ok := parsed.Methods[DepositRequestMethod]
	if !ok {
		return nil, errors.Errorf("abi has no %s method", DepositRequestMethod)
	}
	if len(method.Inputs) != len(depositRequestInputs) {
		return nil, errors.Errorf("%s takes %d inputs, want %d", DepositRequestMethod, len(method.Inputs), len(depositRequestInputs))
	}
	for i, input := range method.Inputs {
		if got := input.Type.String(); got != depositRequestInputs[i] {
			return nil, errors.Errorf("%s input %d (%s) is %s, want %s", DepositRequestMethod, i, input.Name, got, depositRequestInputs[i])
		}
	}
	return &Binding{address: address, abi: parsed, method: method}, nil
}

func (b *Binding) Address() common.Address {
	return b.address
}

// Selector returns the 4-byte method id of deposit_request.
func (b *Binding) Selector() []byte {
	return common.CopyBytes(b.method.ID)
}

// Signature returns the canonical method signature, e.g.
// deposit_request(uint256,string,address,uint256).
func (b *Binding) Signature() string {
	return b.method.Sig
}

// PackDepositRequest encodes the selector followed by the ABI-encoded arguments.
func (b *Binding) PackDepositRequest(req domain.DepositRequest) ([]byte, error) {
	if req.BTCTxID == nil {
		return nil, errors.New("btc txid is required")
	}
	if req.Amount == nil {
		return nil, errors.New("amount is required")
	}
	if err := checkUint256("btc txid", req.BTCTxID); err != nil {
		return nil, err
	}
	if err := checkUint256("amount", req.Amount); err != nil {
		return nil, err
	}
	data, err := b.abi.Pack(DepositRequestMethod, req.BTCTxID, req.BTCAddress, req.ReceiveAddress, req.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", DepositRequestMethod)
	}
	return data, nil
}

// checkUint256 rejects values abi.Pack would otherwise reduce mod 2^256.
func checkUint256(name string, value *big.Int) error {
	if value.Sign() < 0 || value.BitLen() > 256 {
		return errors.Errorf("%s %s is outside the uint256 range", name, value)
	}
	return nil
}
