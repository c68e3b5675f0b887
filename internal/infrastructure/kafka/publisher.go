package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"chakradeposit/internal/infrastructure/telemetry"
	"chakradeposit/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopic = "chakra-deposit-requests"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits deposit lifecycle events keyed by transaction hash, so all
// events of one transaction land on the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

type PublisherConfig struct {
	Brokers []string
	Topic   string
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(writer, cfg.Topic), nil
}

func newPublisher(writer messageWriter, topic string) *Publisher {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}
	return &Publisher{writer: writer, topic: topic}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) Publish(ctx context.Context, event streaming.Event) error {
	ctx, span := otel.Tracer("chakradeposit/kafka").Start(ctx, "deposit.publish_event", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.Int64("chain.id", int64(event.ChainID)),
		attribute.String("tx.hash", event.TxHash),
		attribute.String("messaging.destination", p.topic),
	)

	if event.TraceID == "" {
		event.TraceID = telemetry.TraceID(ctx)
	}
	payload, err := streaming.Encode(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	carrier := &headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.TxHash),
		Value:   payload,
		Headers: carrier.headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
