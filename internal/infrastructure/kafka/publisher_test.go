package kafka

import (
	"context"
	"errors"
	"testing"

	"chakradeposit/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type capturingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *capturingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *capturingWriter) Close() error {
	w.closed = true
	return nil
}

const testTxHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

func minedEvent() streaming.Event {
	status := uint64(1)
	return streaming.Event{
		Type:        streaming.EventMined,
		ChainID:     8545,
		TxHash:      testTxHash,
		Nonce:       5,
		BTCTxID:     "12345678910",
		Amount:      "1000",
		BlockNumber: 77,
		Status:      &status,
	}
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{})
	require.Error(t, err)
}

func TestPublishKeysByTxHash(t *testing.T) {
	writer := &capturingWriter{}
	publisher := newPublisher(writer, "")

	require.NoError(t, publisher.Publish(context.Background(), minedEvent()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	require.Equal(t, DefaultTopic, msg.Topic)
	require.Equal(t, testTxHash, string(msg.Key))

	decoded, err := streaming.Decode(msg.Value)
	require.NoError(t, err)
	require.Equal(t, streaming.EventMined, decoded.Type)
	require.Equal(t, uint64(77), decoded.BlockNumber)

	require.NoError(t, publisher.Close())
	require.True(t, writer.closed)
}

func TestPublishCarriesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	writer := &capturingWriter{}
	require.NoError(t, newPublisher(writer, "deposits").Publish(ctx, minedEvent()))

	msg := writer.messages[0]
	require.Equal(t, "deposits", msg.Topic)
	decoded, err := streaming.Decode(msg.Value)
	require.NoError(t, err)
	require.Equal(t, traceID.String(), decoded.TraceID)

	require.Len(t, msg.Headers, 1)
	require.Equal(t, "traceparent", msg.Headers[0].Key)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", string(msg.Headers[0].Value))
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	writer := &capturingWriter{}
	err := newPublisher(writer, "").Publish(context.Background(), streaming.Event{Type: streaming.EventSubmitted})
	require.Error(t, err)
	require.Empty(t, writer.messages)
}

func TestPublishReturnsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	err := newPublisher(&capturingWriter{err: boom}, "").Publish(context.Background(), minedEvent())
	require.ErrorIs(t, err, boom)
}
