package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.Unavailable("kafka producer closed")

// ProducerConfig configures the Writer backing Publisher.
type ProducerConfig struct {
	Brokers      []string
	MaxRetries   int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is the best-effort memory.EventPublisher implementation backed
// by segmentio/kafka-go, per DOMAIN STACK's "Event publication" wiring.
// Publish failures are logged and returned; memory.EventPublisher's
// contract is that a failure to publish never fails the triggering operation.
type Publisher struct {
	writer WriterInterface
	logger logging.Logger
	closed atomic.Bool
}

// NewPublisher builds a Publisher writing to TopicEngramRecorded.
func NewPublisher(cfg ProducerConfig, logger logging.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka brokers required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        TopicEngramRecorded,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  maxRetries + 1,
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{writer: writer, logger: logger}, nil
}

// Publish implements memory.EventPublisher. It never returns an error to a
// caller that treats publish failures as fatal; callers that do want to
// observe the error (for metrics) may still inspect the return value, but
// the pipeline itself must not abort on it.
func (p *Publisher) Publish(ctx context.Context, event memory.DomainEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	env, err := NewEventEnvelope(event.EventName(), event)
	if err != nil {
		p.logger.Warn("failed to encode domain event", logging.String("event", event.EventName()), logging.Err(err))
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("failed to marshal event envelope", logging.Err(err))
		return errors.Wrap(err, errors.CodeSerialization, "event envelope marshal failed")
	}

	msg := kafka.Message{
		Key:   []byte(env.EventID),
		Value: data,
		Time:  env.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish kafka message",
			logging.String("topic", TopicEngramRecorded),
			logging.Err(err))
		return errors.Wrap(err, errors.CodeMessageQueueError, "kafka publish failed")
	}
	return nil
}

// Close stops accepting new publishes and flushes the underlying writer.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
