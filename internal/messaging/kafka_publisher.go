package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/events"
)

const (
	// kafkaBatchTimeout caps how long a synchronous write waits for more messages.
	kafkaBatchTimeout   = 10 * time.Millisecond
	kafkaPublishTimeout = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes ticket events to a topic keyed by ticket id, so
// every event of one ticket lands on the same partition.
type KafkaEventPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	timeout time.Duration
}

// NewKafkaEventPublisher returns nil when no brokers are configured.
func NewKafkaEventPublisher(brokers []string, topic string, settings BreakerSettings, logger *zap.Logger) *KafkaEventPublisher {
	if len(brokers) == 0 {
		return nil
	}
	return newKafkaEventPublisher(newKafkaWriter(brokers, topic), settings, logger)
}

// newKafkaWriter writes every event as its own batch.
func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           kafkaBatchTimeout,
		WriteTimeout:           kafkaPublishTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func newKafkaEventPublisher(writer messageWriter, settings BreakerSettings, logger *zap.Logger) *KafkaEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaEventPublisher{
		writer:  writer,
		breaker: newBreaker("kafka-ticket-events", settings, logger),
		logger:  logger,
		timeout: kafkaPublishTimeout,
	}
}

// PublishEvent serialises the event and writes it through the breaker. The
// write outlives a cancelled request context but is bounded by its own timeout.
func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TicketID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return err
	}
	p.logger.Debug("ticket event published",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaEventPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
