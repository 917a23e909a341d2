package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"orion-sentinel/internal/playbook"
)

// KafkaConfig holds settings for the action record topic.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultKafkaConfig returns default Kafka settings.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "soar.actions",
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// kafkaWriter is the slice of kafka.Writer the sink needs. Satisfied by
// *kafka.Writer and by test fakes.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes triggered action records to a Kafka topic so
// downstream consumers (dashboards, long-term archival) can subscribe.
type KafkaSink struct {
	writer kafkaWriter
}

// NewKafkaSink creates a Kafka audit sink.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: writer}
}

// Record publishes one triggered action, keyed by playbook ID so records
// for one playbook stay ordered within a partition.
func (s *KafkaSink) Record(ctx context.Context, ta *playbook.TriggeredAction) error {
	value, err := json.Marshal(ta)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered action: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ta.PlaybookID),
		Value: value,
		Time:  time.Now(),
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish action record: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
