package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chakradeposit/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

// Repository is the local submission journal.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS deposit_submissions (
			tx_hash TEXT PRIMARY KEY,
			chain_id INTEGER NOT NULL,
			nonce INTEGER NOT NULL,
			sender TEXT NOT NULL,
			contract TEXT NOT NULL,
			btc_txid TEXT NOT NULL,
			btc_address TEXT NOT NULL,
			receive_address TEXT NOT NULL,
			amount TEXT NOT NULL,
			status TEXT NOT NULL,
			block_number INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS deposit_submissions_btc_txid ON deposit_submissions (btc_txid)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) RecordSubmission(ctx context.Context, sub domain.Submission) error {
	ctx, span := startDBSpan(ctx, "sqlite.RecordSubmission", attribute.String("tx.hash", sub.TxHash))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Unix()
	status := sub.Status
	if status == "" {
		status = domain.SubmissionPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO deposit_submissions
		(tx_hash, chain_id, nonce, sender, contract, btc_txid, btc_address, receive_address, amount, status, block_number, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		sub.TxHash, sub.ChainID, sub.Nonce, sub.Sender, sub.Contract, sub.BTCTxID, sub.BTCAddress,
		sub.ReceiveAddress, sub.Amount, string(status), sub.BlockNumber, sub.Reason, now, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) MarkMined(ctx context.Context, txHash string, blockNumber uint64, status domain.SubmissionStatus) error {
	ctx, span := startDBSpan(ctx, "sqlite.MarkMined",
		attribute.String("tx.hash", txHash),
		attribute.Int64("block.number", int64(blockNumber)),
	)
	defer span.End()
	return r.update(ctx, span, `UPDATE deposit_submissions SET status = ?, block_number = ?, updated_at = ? WHERE tx_hash = ?`,
		string(status), blockNumber, time.Now().UTC().Unix(), txHash)
}

func (r *Repository) MarkFailed(ctx context.Context, txHash string, status domain.SubmissionStatus, reason string) error {
	ctx, span := startDBSpan(ctx, "sqlite.MarkFailed", attribute.String("tx.hash", txHash))
	defer span.End()
	return r.update(ctx, span, `UPDATE deposit_submissions SET status = ?, reason = ?, updated_at = ? WHERE tx_hash = ?`,
		string(status), reason, time.Now().UTC().Unix(), txHash)
}

func (r *Repository) update(ctx context.Context, span trace.Span, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err == nil {
		var affected int64
		affected, err = res.RowsAffected()
		if err == nil && affected == 0 {
			err = domain.ErrSubmissionNotFound
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) GetSubmission(ctx context.Context, txHash string) (domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sub domain.Submission
	var status string
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, `SELECT tx_hash, chain_id, nonce, sender, contract, btc_txid, btc_address,
		receive_address, amount, status, block_number, reason, created_at, updated_at
		FROM deposit_submissions WHERE tx_hash = ?`, txHash).Scan(
		&sub.TxHash, &sub.ChainID, &sub.Nonce, &sub.Sender, &sub.Contract, &sub.BTCTxID, &sub.BTCAddress,
		&sub.ReceiveAddress, &sub.Amount, &status, &sub.BlockNumber, &sub.Reason, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Submission{}, domain.ErrSubmissionNotFound
		}
		return domain.Submission{}, err
	}
	sub.Status = domain.SubmissionStatus(status)
	sub.CreatedAt = time.Unix(createdAt, 0).UTC()
	sub.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return sub, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "sqlite"))
	return otel.Tracer("chakradeposit/sqlite").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
