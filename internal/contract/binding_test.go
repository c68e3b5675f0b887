package contract

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chakradeposit/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const handlerABI = `[{
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

var handlerAddress = common.HexToAddress("0xFd9c324c77023B802478c6a37Cd9B2de12b23289")

func demoRequest() domain.DepositRequest {
	return domain.DepositRequest{
		BTCTxID:        big.NewInt(12345678910),
		BTCAddress:     "tb1p0d8vtv7c0skytnj9rpps495r4726pasfhj4hxxq4ph5gxjhptpws9q698f",
		ReceiveAddress: common.HexToAddress("0x940D583861e57ab1c7F83D5a9450323CAe38402b"),
		Amount:         big.NewInt(1000),
	}
}

func newTestBinding(t *testing.T) *Binding {
	t.Helper()
	parsed, err := ParseABI(strings.NewReader(handlerABI))
	require.NoError(t, err)
	binding, err := NewBinding(handlerAddress, parsed)
	require.NoError(t, err)
	return binding
}

func TestLoadABIFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handler.json")
	require.NoError(t, os.WriteFile(path, []byte(handlerABI), 0o600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	require.Contains(t, parsed.Methods, DepositRequestMethod)
}

func TestLoadABIShippedFile(t *testing.T) {
	parsed, err := LoadABI(filepath.Join("..", "..", "abi", "solidity.handler.json"))
	require.NoError(t, err)
	_, err = NewBinding(handlerAddress, parsed)
	require.NoError(t, err)
}

func TestLoadABIMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handler.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "deposit_request", "type": `), 0o600))

	_, err := LoadABI(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
}

func TestLoadABIMissingFile(t *testing.T) {
	_, err := LoadABI(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestNewBindingRejectsWrongInterface(t *testing.T) {
	cases := map[string]string{
		"missing method": `[{"inputs": [], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"}]`,
		"wrong arity":    `[{"inputs": [{"name": "btc_txid", "type": "uint256"}], "name": "deposit_request", "outputs": [], "type": "function"}]`,
		"wrong type": `[{"inputs": [
			{"name": "btc_txid", "type": "uint256"},
			{"name": "btc_address", "type": "string"},
			{"name": "receive_address", "type": "string"},
			{"name": "amount", "type": "uint256"}
		], "name": "deposit_request", "outputs": [], "type": "function"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseABI(strings.NewReader(raw))
			require.NoError(t, err)
			_, err = NewBinding(handlerAddress, parsed)
			require.Error(t, err)
		})
	}
}

func TestNewBindingRequiresAddress(t *testing.T) {
	parsed, err := ParseABI(strings.NewReader(handlerABI))
	require.NoError(t, err)
	_, err = NewBinding(common.Address{}, parsed)
	require.Error(t, err)
}

func TestSelectorMatchesSignature(t *testing.T) {
	binding := newTestBinding(t)
	require.Equal(t, "deposit_request(uint256,string,address,uint256)", binding.Signature())
	require.Equal(t, crypto.Keccak256([]byte(binding.Signature()))[:4], binding.Selector())
	require.Equal(t, handlerAddress, binding.Address())
}

func TestPackDepositRequestIsDeterministic(t *testing.T) {
	binding := newTestBinding(t)

	first, err := binding.PackDepositRequest(demoRequest())
	require.NoError(t, err)
	second, err := binding.PackDepositRequest(demoRequest())
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))

	// selector + 4 head words + string length word + 62 bytes padded to 64
	require.Len(t, first, 4+4*32+32+64)
	require.Equal(t, binding.Selector(), first[:4])
	require.Equal(t, common.LeftPadBytes(big.NewInt(12345678910).Bytes(), 32), first[4:36])
	require.Equal(t, common.LeftPadBytes(demoRequest().ReceiveAddress.Bytes(), 32), first[68:100])
	require.Equal(t, common.LeftPadBytes(big.NewInt(1000).Bytes(), 32), first[100:132])
}

func TestPackDepositRequestRequiresAmounts(t *testing.T) {
	binding := newTestBinding(t)

	req := demoRequest()
	req.Amount = nil
	_, err := binding.PackDepositRequest(req)
	require.Error(t, err)

	req = demoRequest()
	req.BTCTxID = nil
	_, err = binding.PackDepositRequest(req)
	require.Error(t, err)
}

func TestPackDepositRequestUint256Bounds(t *testing.T) {
	binding := newTestBinding(t)
	one := big.NewInt(1)
	overflow := new(big.Int).Lsh(one, 256)
	maxUint256 := new(big.Int).Sub(overflow, one)

	req := demoRequest()
	req.Amount = maxUint256
	data, err := binding.PackDepositRequest(req)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xff}, 32), data[100:132])

	req.Amount = overflow
	_, err = binding.PackDepositRequest(req)
	require.ErrorContains(t, err, "amount")

	req = demoRequest()
	req.BTCTxID = overflow
	_, err = binding.PackDepositRequest(req)
	require.ErrorContains(t, err, "btc txid")

	req = demoRequest()
	req.Amount = big.NewInt(-1)
	_, err = binding.PackDepositRequest(req)
	require.Error(t, err)
}
