package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
)

// KafkaConfig holds Kafka writer settings
type KafkaConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultKafkaConfig returns default Kafka settings for brokers
func DefaultKafkaConfig(brokers ...string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each payload as one message; the topic is set per message
type KafkaPublisher struct {
	cfg    KafkaConfig
	writer messageWriter
	closed atomic.Bool
}

// NewKafkaPublisher creates a publisher writing to the given brokers
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		// retries are handled here so they show up in logs and metrics
		MaxAttempts: 1,
	}

	return &KafkaPublisher{cfg: cfg, writer: writer}, nil
}

// Publish writes payload to topic. MQTT-style slashes in the topic are
// mapped to dots, which Kafka topic names allow.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	msg := kafka.Message{
		Topic: kafkaTopic(topic),
		Key:   []byte(topic),
		Value: payload,
		Time:  time.Now(),
	}

	if err := p.writeWithRetry(ctx, msg); err != nil {
		metrics.PublishedMessagesTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.PublishedMessagesTotal.WithLabelValues("success").Inc()
	return nil
}

// writeWithRetry writes msg with exponential backoff between attempts
func (p *KafkaPublisher) writeWithRetry(ctx context.Context, msg kafka.Message) error {
	log := logger.WithComponent("kafka_publisher")
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("topic", msg.Topic).
				Msg("retrying kafka publish")

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
				backoff *= 2
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

func kafkaTopic(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}
