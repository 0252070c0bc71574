package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"txcrawler/internal/domain"
	"txcrawler/internal/infrastructure/telemetry"
	"txcrawler/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopic = "txcrawler-transactions"

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = defaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishTransactions writes one message per transaction keyed by tx hash so
// that redeliveries of the same hash land on the same partition.
func (p *Producer) PublishTransactions(ctx context.Context, txs []domain.CompactTx) error {
	if len(txs) == 0 {
		return nil
	}
	tracer := otel.Tracer("txcrawler/kafka")
	messages := make([]kafka.Message, 0, len(txs))
	spans := make([]trace.Span, 0, len(txs))
	defer func() {
		for _, span := range spans {
			span.End()
		}
	}()

	for _, tx := range txs {
		traceCtx, span := tracer.Start(ctx, "stream.publish_tx", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("messaging.destination", p.topic),
			attribute.Int64("block.number", int64(tx.BlockNumber)),
			attribute.String("tx.hash", tx.TxHash),
		)
		spans = append(spans, span)

		msg, err := p.message(traceCtx, tx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		messages = append(messages, msg)
	}

	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		for _, span := range spans {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	return err
}

func (p *Producer) message(ctx context.Context, tx domain.CompactTx) (kafka.Message, error) {
	msg, err := streaming.NewTransactionMessage(telemetry.TraceIDFromContext(ctx), tx)
	if err != nil {
		return kafka.Message{}, err
	}
	payload, err := streaming.Encode(msg)
	if err != nil {
		return kafka.Message{}, err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(ctx, &headers)
	return kafka.Message{
		Key:     []byte(tx.TxHash),
		Value:   payload,
		Headers: headers,
	}, nil
}
