package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chakradeposit/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of an EVM JSON-RPC client used by the submitter.
// *ethclient.Client and the simulated backend's client both satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Client struct {
	backend      Backend
	probeTimeout time.Duration
	closer       func()
}

type Config struct {
	URL          string
	ProbeTimeout time.Duration
}

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	c := NewFromBackend(client)
	c.closer = client.Close
	if cfg.ProbeTimeout > 0 {
		c.probeTimeout = cfg.ProbeTimeout
	}
	return c, nil
}

func NewFromBackend(backend Backend) *Client {
	return &Client{backend: backend, probeTimeout: 10 * time.Second}
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Ping is the liveness probe: it asks the node for its chain id.
func (c *Client) Ping(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	if !chainID.IsUint64() {
		return 0, fmt.Errorf("eth_chainId: chain id %s overflows uint64", chainID)
	}
	return chainID.Uint64(), nil
}

// Nonce returns the account's transaction count at the latest block.
func (c *Client) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.backend.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return nonce, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	return nil
}

// Receipt returns ok=false while the transaction is not yet mined.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (domain.Receipt, bool, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, false, nil
		}
		return domain.Receipt{}, false, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return domain.Receipt{}, false, nil
	}
	return domain.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		BlockHash:   receipt.BlockHash.Hex(),
		TxIndex:     uint64(receipt.TransactionIndex),
		Status:      receipt.Status,
		GasUsed:     receipt.GasUsed,
	}, true, nil
}
