package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// TopicEngramRecorded is the sole topic Anchor publishes to: a best-effort
// fanout of EngramRecorded events for external consumers such as an
// ingestion pipeline's relationship-inference pass.
const TopicEngramRecorded = "engram.recorded"

// EventEnvelope standardizes the single event message Anchor produces.
type EventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEventEnvelope wraps payload, marshaled to JSON, for publication.
func NewEventEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager ensures TopicEngramRecorded exists at startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials brokers[0] to obtain a topic-administration connection.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.InvalidParam("at least one broker is required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// EnsureEngramRecordedTopic creates TopicEngramRecorded if it does not
// already exist, per the KafkaConfig knobs for partition/replication counts.
func (m *TopicManager) EnsureEngramRecordedTopic(ctx context.Context, numPartitions, replicationFactor int) error {
	exists, err := m.TopicExists(ctx, TopicEngramRecorded)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	cfg := kafka.TopicConfig{
		Topic:             TopicEngramRecorded,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}
	if err := m.conn.CreateTopics(cfg); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to create engram.recorded topic")
	}
	m.logger.Info("kafka topic created", logging.String("topic", TopicEngramRecorded))
	return nil
}

func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}
