package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-identity-sync/core"
	kafka "github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "type"
	HeaderEventVersion = "version"

	DefaultBatchTimeout = 10 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits UserRegistered events keyed by user id so every event
// for a user lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

type Option func(*kafka.Writer)

func WithBatchTimeout(timeout time.Duration) Option {
	return func(w *kafka.Writer) {
		if timeout > 0 {
			w.BatchTimeout = timeout
		}
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(w *kafka.Writer) {
		if timeout > 0 {
			w.WriteTimeout = timeout
		}
	}
}

func NewKafkaPublisher(brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, core.BadInput("publish: at least one kafka broker is required", nil)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, core.BadInput("publish: kafka topic is required", nil)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: DefaultBatchTimeout,
		Compression:  kafka.Snappy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(writer)
		}
	}
	return newKafkaPublisher(writer, topic), nil
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *KafkaPublisher) PublishUserRegistered(ctx context.Context, event core.UserRegistered) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("publish: kafka publisher is not configured")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return core.BadInput("publish: user id is required", nil)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", event.Event, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Event)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(event.Version))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish: write %s to %s: %w", event.Event, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

var _ core.UserEventPublisher = (*KafkaPublisher)(nil)
