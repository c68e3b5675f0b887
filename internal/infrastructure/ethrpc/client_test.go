package ethrpc

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chainID    *big.Int
	chainErr   error
	nonce      uint64
	nonceBlock *big.Int
	sent       []*types.Transaction
	receipt    *types.Receipt
	receiptErr error
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, f.chainErr
}

func (f *fakeBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	f.nonceBlock = blockNumber
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.receiptErr
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	client := NewFromBackend(&fakeBackend{chainID: big.NewInt(8545)})
	chainID, err := client.Ping(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(8545), chainID)

	down := NewFromBackend(&fakeBackend{chainErr: errors.New("connection refused")})
	_, err = down.Ping(context.Background())
	require.ErrorContains(t, err, "eth_chainId")
}

func TestNonceUsesLatestBlock(t *testing.T) {
	backend := &fakeBackend{nonce: 5, nonceBlock: big.NewInt(1)}
	nonce, err := NewFromBackend(backend).Nonce(context.Background(), common.Address{1})
	require.NoError(t, err)
	require.Equal(t, uint64(5), nonce)
	require.Nil(t, backend.nonceBlock)
}

func TestReceiptPending(t *testing.T) {
	client := NewFromBackend(&fakeBackend{receiptErr: ethereum.NotFound})
	_, ok, err := client.Receipt(context.Background(), common.Hash{1})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReceiptError(t *testing.T) {
	client := NewFromBackend(&fakeBackend{receiptErr: errors.New("boom")})
	_, _, err := client.Receipt(context.Background(), common.Hash{1})
	require.ErrorContains(t, err, "eth_getTransactionReceipt")
}

func TestReceiptMined(t *testing.T) {
	hash := common.HexToHash("0x01")
	client := NewFromBackend(&fakeBackend{receipt: &types.Receipt{
		TxHash:      hash,
		BlockNumber: big.NewInt(42),
		BlockHash:   common.HexToHash("0x02"),
		Status:      types.ReceiptStatusSuccessful,
		GasUsed:     30_000,
	}})
	receipt, ok, err := client.Receipt(context.Background(), hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), receipt.BlockNumber)
	require.Equal(t, hash.Hex(), receipt.TxHash)
	require.True(t, receipt.Succeeded())
}
