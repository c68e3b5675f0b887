package claims

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPrefix = "chakradeposit:claim:"
	DefaultTTL    = 24 * time.Hour
)

type Config struct {
	Addr   string
	TTL    time.Duration
	Prefix string
}

// Guard records which Bitcoin deposits already have a deposit_request in
// flight. A claim is a redis key set with NX and expires after TTL.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewGuard returns nil when no address is configured.
func NewGuard(cfg Config) (*Guard, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newGuard(client, cfg), nil
}

func newGuard(client *redis.Client, cfg Config) *Guard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Guard{client: client, ttl: cfg.TTL, prefix: cfg.Prefix}
}

func (g *Guard) Acquire(ctx context.Context, btcTxID string) (bool, error) {
	if btcTxID == "" {
		return false, errors.New("btc txid is required")
	}
	ctx, span := startSpan(ctx, "redis.AcquireClaim", btcTxID)
	defer span.End()
	acquired, err := g.client.SetNX(ctx, g.key(btcTxID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("claim.acquired", acquired))
	return acquired, nil
}

func (g *Guard) Release(ctx context.Context, btcTxID string) error {
	ctx, span := startSpan(ctx, "redis.ReleaseClaim", btcTxID)
	defer span.End()
	if err := g.client.Del(ctx, g.key(btcTxID)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (g *Guard) Close() error {
	return g.client.Close()
}

func (g *Guard) key(btcTxID string) string {
	return g.prefix + btcTxID
}

func startSpan(ctx context.Context, name, btcTxID string) (context.Context, trace.Span) {
	return otel.Tracer("chakradeposit/redis").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("btc.txid", btcTxID),
		),
	)
}
