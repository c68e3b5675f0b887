package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chakradeposit/internal/application"
	"chakradeposit/internal/bitcoin"
	"chakradeposit/internal/config"
	"chakradeposit/internal/contract"
	"chakradeposit/internal/domain"
	"chakradeposit/internal/infrastructure/claims"
	"chakradeposit/internal/infrastructure/ethrpc"
	"chakradeposit/internal/infrastructure/kafka"
	"chakradeposit/internal/infrastructure/logging"
	"chakradeposit/internal/infrastructure/storage"
	"chakradeposit/internal/infrastructure/telemetry"

	"github.com/ethereum/go-ethereum/common"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

const (
	exitOK = iota
	exitNotConnected
	exitSetup
	exitRejected
	exitTimeout
	exitReverted
)

// errSetup marks failures that happen before any transaction is built.
var errSetup = errors.New("invalid setup")

// consoleObserver prints the run's result lines.
type consoleObserver struct {
	out io.Writer
}

func (o consoleObserver) OnNonce(nonce uint64) {
	fmt.Fprintf(o.out, "Nonce:  %d\n", nonce)
}

func (o consoleObserver) OnBroadcast(txHash common.Hash) {
	fmt.Fprintf(o.out, "Result: %s\n", txHash.Hex())
}

func (o consoleObserver) OnMined(receipt domain.Receipt) {
	fmt.Fprintf(o.out, "BlockNumber: %d\n", receipt.BlockNumber)
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(exitSetup)
	}

	logCloser := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	slog.Info("depositrequest starting", "version", version, "commit", commit, "build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stdout)
	stop()

	code := exitCode(err)
	if err != nil {
		slog.Error("deposit request failed", "err", err, "exit_code", code)
	}
	_ = logCloser.Close()
	os.Exit(code)
}

// run submits the configured deposit request, writing result lines to stdout.
func run(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	err := submit(ctx, cfg, stdout)
	if errors.Is(err, application.ErrNotConnected) {
		fmt.Fprintln(stdout, "Not Connect")
	}
	return err
}

func submit(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	shutdownTracing, err := telemetry.InitTracer(ctx, "chakra-depositrequest", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown error", "err", err)
		}
	}()

	parsed, err := contract.LoadABI(cfg.ABIPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}
	binding, err := contract.NewBinding(common.HexToAddress(cfg.HandlerAddress), parsed)
	if err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}

	params, err := bitcoin.NetworkParams(cfg.BTCNetwork)
	if err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}
	if err := bitcoin.ValidateAddress(cfg.BTCAddress, params); err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}

	signer, err := application.NewSigner(cfg.PrivateKey, cfg.Account)
	if err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}

	client, err := ethrpc.Dial(ctx, ethrpc.Config{URL: cfg.RPCURL})
	if err != nil {
		return &application.StageError{Stage: application.StageConnect, Err: fmt.Errorf("%w: %w", application.ErrNotConnected, err)}
	}
	defer client.Close()

	deps := application.Dependencies{
		Chain:    client,
		Contract: binding,
		Signer:   signer,
		Observer: consoleObserver{out: stdout},
	}

	guard, err := claims.NewGuard(claims.Config{Addr: cfg.RedisAddr, TTL: cfg.ClaimTTL})
	if err != nil {
		slog.Warn("claim guard disabled", "err", err)
	} else if guard != nil {
		defer guard.Close()
		deps.Claims = guard
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			slog.Warn("event publishing disabled", "err", err)
		} else {
			defer publisher.Close()
			deps.Events = publisher
		}
	}

	journal, err := storage.OpenJournal(cfg.JournalDriver, cfg.JournalDSN)
	if err != nil {
		slog.Warn("submission journal disabled", "driver", cfg.JournalDriver, "err", err)
	} else if journal != nil {
		defer journal.Close()
		deps.Journal = journal
	}

	submitter, err := application.NewSubmitter(deps, application.SubmitterConfig{
		ChainID:        new(big.Int).SetUint64(cfg.ChainID),
		GasLimit:       cfg.GasLimit,
		GasPrice:       cfg.GasPriceWei(),
		ReceiptTimeout: cfg.ReceiptTimeout,
		PollInterval:   cfg.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errSetup, err)
	}

	receiveAddress := common.HexToAddress(cfg.ReceiveAddress)
	result, err := submitter.Submit(ctx, domain.DepositRequest{
		BTCTxID:        cfg.BTCTxID,
		BTCAddress:     cfg.BTCAddress,
		ReceiveAddress: receiveAddress,
		Amount:         cfg.Amount,
	})
	if err != nil {
		return err
	}
	slog.Info("deposit request mined",
		"tx", result.TxHash.Hex(),
		"nonce", result.Nonce,
		"block", result.Receipt.BlockNumber,
		"gas_used", result.Receipt.GasUsed,
	)
	return nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, application.ErrNotConnected):
		return exitNotConnected
	case errors.Is(err, errSetup):
		return exitSetup
	case errors.Is(err, application.ErrReceiptTimeout):
		return exitTimeout
	case errors.Is(err, application.ErrExecutionReverted):
		return exitReverted
	}
	if _, ok := application.FailedStage(err); ok {
		return exitRejected
	}
	return exitSetup
}
