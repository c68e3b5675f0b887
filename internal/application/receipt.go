package application

import (
	"context"
	"fmt"
	"time"

	"chakradeposit/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultReceiptTimeout = 120 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

type ReceiptSource interface {
	Receipt(ctx context.Context, txHash common.Hash) (domain.Receipt, bool, error)
}

// WaitForReceipt polls until the transaction is mined or timeout elapses.
// Cancellation of ctx itself is returned as ctx.Err(); running out of time
// returns ErrReceiptTimeout.
func WaitForReceipt(ctx context.Context, source ReceiptSource, txHash common.Hash, timeout, pollInterval time.Duration) (domain.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := func() error {
		if err := parent.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, txHash.Hex(), timeout)
	}

	for {
		receipt, ok, err := source.Receipt(ctx, txHash)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Receipt{}, timedOut()
			}
			return domain.Receipt{}, err
		}
		if ok {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, timedOut()
		case <-time.After(pollInterval):
		}
	}
}
