package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"chakradeposit/internal/domain"
	"chakradeposit/internal/streaming"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ChainClient interface {
	ReceiptSource
	Ping(ctx context.Context) (uint64, error)
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type CallEncoder interface {
	Address() common.Address
	PackDepositRequest(req domain.DepositRequest) ([]byte, error)
}

type Journal interface {
	RecordSubmission(ctx context.Context, submission domain.Submission) error
	MarkMined(ctx context.Context, txHash string, blockNumber uint64, status domain.SubmissionStatus) error
	MarkFailed(ctx context.Context, txHash string, status domain.SubmissionStatus, reason string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event streaming.Event) error
}

// ClaimGuard stops two runs from submitting the same Bitcoin deposit.
type ClaimGuard interface {
	Acquire(ctx context.Context, btcTxID string) (bool, error)
	Release(ctx context.Context, btcTxID string) error
}

type SubmitterObserver interface {
	OnNonce(nonce uint64)
	OnBroadcast(txHash common.Hash)
	OnMined(receipt domain.Receipt)
}

type Dependencies struct {
	Chain    ChainClient
	Contract CallEncoder
	Signer   *Signer
	Journal  Journal
	Events   EventPublisher
	Claims   ClaimGuard
	Observer SubmitterObserver
}

type SubmitterConfig struct {
	ChainID        *big.Int
	GasLimit       uint64
	GasPrice       *big.Int
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

type Submitter struct {
	deps   Dependencies
	cfg    SubmitterConfig
	tracer trace.Tracer
}

// Result describes a mined deposit_request transaction.
type Result struct {
	TxHash  common.Hash
	Nonce   uint64
	RawTx   []byte
	Receipt domain.Receipt
}

func NewSubmitter(deps Dependencies, cfg SubmitterConfig) (*Submitter, error) {
	if deps.Chain == nil || deps.Contract == nil || deps.Signer == nil {
		return nil, errors.New("submitter dependencies must not be nil")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if cfg.GasPrice == nil {
		return nil, errors.New("gas price is required")
	}
	if cfg.GasLimit == 0 {
		return nil, errors.New("gas limit is required")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = DefaultReceiptTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Submitter{deps: deps, cfg: cfg, tracer: otel.Tracer("chakradeposit/submitter")}, nil
}

// Submit runs connect, nonce, build, sign, broadcast and wait in order and
// stops at the first failing stage.
func (s *Submitter) Submit(ctx context.Context, req domain.DepositRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "deposit.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chain.id", s.cfg.ChainID.Int64()),
		attribute.String("contract", s.deps.Contract.Address().Hex()),
		attribute.String("sender", s.deps.Signer.Address().Hex()),
	)

	result, err := s.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	return result, nil
}

func (s *Submitter) submit(ctx context.Context, req domain.DepositRequest) (Result, error) {
	var result Result

	if err := s.runStage(ctx, StageConnect, func(ctx context.Context) error {
		nodeChainID, err := s.deps.Chain.Ping(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		if nodeChainID != s.cfg.ChainID.Uint64() {
			slog.WarnContext(ctx, "node chain id differs from configured chain id",
				"node", nodeChainID,
				"configured", s.cfg.ChainID.Uint64(),
			)
		}
		return nil
	}); err != nil {
		return result, err
	}

	claimKey := ""
	if req.BTCTxID != nil {
		claimKey = req.BTCTxID.String()
	}
	if s.deps.Claims != nil {
		if err := s.runStage(ctx, StageClaim, func(ctx context.Context) error {
			acquired, err := s.deps.Claims.Acquire(ctx, claimKey)
			if err != nil {
				return err
			}
			if !acquired {
				return fmt.Errorf("%w: btc txid %s", ErrAlreadyClaimed, claimKey)
			}
			return nil
		}); err != nil {
			return result, err
		}
	}
	broadcast := false
	defer func() {
		if s.deps.Claims == nil || broadcast {
			return
		}
		if err := s.deps.Claims.Release(context.WithoutCancel(ctx), claimKey); err != nil {
			slog.WarnContext(ctx, "claim release failed", "btc_txid", claimKey, "err", err)
		}
	}()

	sender := s.deps.Signer.Address()
	if err := s.runStage(ctx, StageNonce, func(ctx context.Context) error {
		nonce, err := s.deps.Chain.Nonce(ctx, sender)
		if err != nil {
			return err
		}
		result.Nonce = nonce
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("tx.nonce", int64(nonce)))
		return nil
	}); err != nil {
		return result, err
	}
	if s.deps.Observer != nil {
		s.deps.Observer.OnNonce(result.Nonce)
	}

	var unsigned *types.Transaction
	if err := s.runStage(ctx, StageBuild, func(ctx context.Context) error {
		data, err := s.deps.Contract.PackDepositRequest(req)
		if err != nil {
			return err
		}
		unsigned, err = BuildTransaction(TxParams{
			ChainID:  s.cfg.ChainID,
			GasLimit: s.cfg.GasLimit,
			GasPrice: s.cfg.GasPrice,
			Nonce:    result.Nonce,
			To:       s.deps.Contract.Address(),
			Data:     data,
		})
		return err
	}); err != nil {
		return result, err
	}

	var signed *types.Transaction
	if err := s.runStage(ctx, StageSign, func(ctx context.Context) error {
		var err error
		signed, err = s.deps.Signer.Sign(unsigned, s.cfg.ChainID)
		if err != nil {
			return err
		}
		result.RawTx, err = RawTransaction(signed)
		return err
	}); err != nil {
		return result, err
	}
	result.TxHash = signed.Hash()

	if err := s.runStage(ctx, StageBroadcast, func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("tx.hash", result.TxHash.Hex()))
		return s.deps.Chain.SendTransaction(ctx, signed)
	}); err != nil {
		return result, err
	}
	broadcast = true
	if s.deps.Observer != nil {
		s.deps.Observer.OnBroadcast(result.TxHash)
	}

	submission := s.submission(req, result)
	s.record(ctx, submission)
	s.publish(ctx, s.event(streaming.EventSubmitted, submission))

	if err := s.runStage(ctx, StageWait, func(ctx context.Context) error {
		receipt, err := WaitForReceipt(ctx, s.deps.Chain, result.TxHash, s.cfg.ReceiptTimeout, s.cfg.PollInterval)
		if err != nil {
			return err
		}
		result.Receipt = receipt
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("block.number", int64(receipt.BlockNumber)))
		return nil
	}); err != nil {
		status := domain.SubmissionFailed
		if errors.Is(err, ErrReceiptTimeout) {
			status = domain.SubmissionTimeout
		}
		s.markFailed(ctx, submission, status, err)
		return result, err
	}
	if s.deps.Observer != nil {
		s.deps.Observer.OnMined(result.Receipt)
	}

	status := domain.SubmissionMined
	if !result.Receipt.Succeeded() {
		status = domain.SubmissionReverted
	}
	s.markMined(ctx, submission, result.Receipt, status)

	if status == domain.SubmissionReverted {
		return result, &StageError{
			Stage: StageWait,
			Err:   fmt.Errorf("%w: %s in block %d", ErrExecutionReverted, result.TxHash.Hex(), result.Receipt.BlockNumber),
		}
	}
	return result, nil
}

func (s *Submitter) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "deposit."+string(stage))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

func (s *Submitter) submission(req domain.DepositRequest, result Result) domain.Submission {
	sub := domain.Submission{
		TxHash:         result.TxHash.Hex(),
		ChainID:        s.cfg.ChainID.Uint64(),
		Nonce:          result.Nonce,
		Sender:         s.deps.Signer.Address().Hex(),
		Contract:       s.deps.Contract.Address().Hex(),
		BTCAddress:     req.BTCAddress,
		ReceiveAddress: req.ReceiveAddress.Hex(),
		Status:         domain.SubmissionPending,
	}
	if req.BTCTxID != nil {
		sub.BTCTxID = req.BTCTxID.String()
	}
	if req.Amount != nil {
		sub.Amount = req.Amount.String()
	}
	return sub
}

func (s *Submitter) event(eventType streaming.EventType, sub domain.Submission) streaming.Event {
	return streaming.Event{
		Type:           eventType,
		ChainID:        sub.ChainID,
		TxHash:         sub.TxHash,
		Nonce:          sub.Nonce,
		Sender:         sub.Sender,
		Contract:       sub.Contract,
		BTCTxID:        sub.BTCTxID,
		BTCAddress:     sub.BTCAddress,
		ReceiveAddress: sub.ReceiveAddress,
		Amount:         sub.Amount,
	}
}

// Journal and event failures are logged and never fail the submission.

func (s *Submitter) record(ctx context.Context, sub domain.Submission) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.RecordSubmission(ctx, sub); err != nil {
		slog.WarnContext(ctx, "journal record failed", "tx", sub.TxHash, "err", err)
	}
}

func (s *Submitter) markMined(ctx context.Context, sub domain.Submission, receipt domain.Receipt, status domain.SubmissionStatus) {
	if s.deps.Journal != nil {
		if err := s.deps.Journal.MarkMined(ctx, sub.TxHash, receipt.BlockNumber, status); err != nil {
			slog.WarnContext(ctx, "journal update failed", "tx", sub.TxHash, "err", err)
		}
	}
	event := s.event(streaming.EventMined, sub)
	event.BlockNumber = receipt.BlockNumber
	receiptStatus := receipt.Status
	event.Status = &receiptStatus
	s.publish(ctx, event)
}

func (s *Submitter) markFailed(ctx context.Context, sub domain.Submission, status domain.SubmissionStatus, cause error) {
	// ctx may already be cancelled here.
	ctx = context.WithoutCancel(ctx)
	if s.deps.Journal != nil {
		if err := s.deps.Journal.MarkFailed(ctx, sub.TxHash, status, cause.Error()); err != nil {
			slog.WarnContext(ctx, "journal update failed", "tx", sub.TxHash, "err", err)
		}
	}
	event := s.event(streaming.EventFailed, sub)
	event.Reason = cause.Error()
	s.publish(ctx, event)
}

func (s *Submitter) publish(ctx context.Context, event streaming.Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "event publish failed", "type", event.Type, "tx", event.TxHash, "err", err)
	}
}
