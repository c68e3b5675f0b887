package application

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"chakradeposit/internal/contract"
	"chakradeposit/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex     = "8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a"
	otherKeyHex    = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	txHashPattern  = `^0x[0-9a-f]{64}$`
	testHandlerABI = `[{
		"inputs": [
			{"internalType": "uint256", "name": "btc_txid", "type": "uint256"},
			{"internalType": "string", "name": "btc_address", "type": "string"},
			{"internalType": "address", "name": "receive_address", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "deposit_request",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}]`
)

var testHandler = common.HexToAddress("0xFd9c324c77023B802478c6a37Cd9B2de12b23289")

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func demoRequest() domain.DepositRequest {
	return domain.DepositRequest{
		BTCTxID:        big.NewInt(12345678910),
		BTCAddress:     "tb1p0d8vtv7c0skytnj9rpps495r4726pasfhj4hxxq4ph5gxjhptpws9q698f",
		ReceiveAddress: common.HexToAddress("0x940D583861e57ab1c7F83D5a9450323CAe38402b"),
		Amount:         big.NewInt(1000),
	}
}

func testBinding(t *testing.T) *contract.Binding {
	t.Helper()
	parsed, err := contract.ParseABI(strings.NewReader(testHandlerABI))
	require.NoError(t, err)
	binding, err := contract.NewBinding(testHandler, parsed)
	require.NoError(t, err)
	return binding
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := NewSigner(testKeyHex, "")
	require.NoError(t, err)
	return signer
}

// signedDeposit builds and signs the demo call at the given nonce.
func signedDeposit(t *testing.T, nonce uint64) *types.Transaction {
	t.Helper()
	data, err := testBinding(t).PackDepositRequest(demoRequest())
	require.NoError(t, err)
	tx, err := BuildTransaction(TxParams{
		ChainID:  big.NewInt(8545),
		GasLimit: 2_000_000,
		GasPrice: gwei(50),
		Nonce:    nonce,
		To:       testHandler,
		Data:     data,
	})
	require.NoError(t, err)
	signed, err := testSigner(t).Sign(tx, big.NewInt(8545))
	require.NoError(t, err)
	return signed
}

func TestBuildTransactionEnvelope(t *testing.T) {
	tx := signedDeposit(t, 5)

	require.Equal(t, uint64(5), tx.Nonce())
	require.Equal(t, uint64(2_000_000), tx.Gas())
	require.Equal(t, "50000000000", tx.GasPrice().String())
	require.Equal(t, int64(8545), tx.ChainId().Int64())
	require.Equal(t, testHandler, *tx.To())
	require.Zero(t, tx.Value().Sign())
	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	require.Regexp(t, txHashPattern, tx.Hash().Hex())

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(8545)), tx)
	require.NoError(t, err)
	require.Equal(t, testSigner(t).Address(), sender)
}

func TestBuildTransactionValidation(t *testing.T) {
	_, err := BuildTransaction(TxParams{GasLimit: 1, GasPrice: big.NewInt(1)})
	require.Error(t, err)
	_, err = BuildTransaction(TxParams{ChainID: big.NewInt(1), GasLimit: 1})
	require.Error(t, err)
	_, err = BuildTransaction(TxParams{ChainID: big.NewInt(1), GasPrice: big.NewInt(1)})
	require.Error(t, err)
}

func TestSignedTransactionIsDeterministic(t *testing.T) {
	first, err := RawTransaction(signedDeposit(t, 5))
	require.NoError(t, err)
	second, err := RawTransaction(signedDeposit(t, 5))
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
}

func TestNonceChangesSignedTransaction(t *testing.T) {
	five := signedDeposit(t, 5)
	six := signedDeposit(t, 6)

	rawFive, err := RawTransaction(five)
	require.NoError(t, err)
	rawSix, err := RawTransaction(six)
	require.NoError(t, err)

	require.False(t, bytes.Equal(rawFive, rawSix))
	require.NotEqual(t, five.Hash(), six.Hash())
	require.Equal(t, five.Data(), six.Data())
}

func TestNewSigner(t *testing.T) {
	signer, err := NewSigner("0x"+testKeyHex, "")
	require.NoError(t, err)

	_, err = NewSigner(testKeyHex, signer.Address().Hex())
	require.NoError(t, err)
	_, err = NewSigner(testKeyHex, strings.ToLower(signer.Address().Hex()))
	require.NoError(t, err)

	other, err := NewSigner(otherKeyHex, "")
	require.NoError(t, err)
	_, err = NewSigner(testKeyHex, other.Address().Hex())
	require.ErrorContains(t, err, "not configured account")

	_, err = NewSigner("0xnothex", "")
	require.ErrorContains(t, err, "invalid private key")
}
