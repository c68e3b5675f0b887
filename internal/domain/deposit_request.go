package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositRequest holds the arguments of one deposit_request call: the Bitcoin
// deposit being claimed and the EVM account that receives it.
type DepositRequest struct {
	BTCTxID        *big.Int
	BTCAddress     string
	ReceiveAddress common.Address
	Amount         *big.Int
}
