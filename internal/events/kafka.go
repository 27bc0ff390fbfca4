package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"pdfrag/internal/contextutil"
)

const headerEventName = "event-name"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic per event name.
// Ingest triggers are keyed by source id so one source stays on one partition.
type KafkaPublisher struct {
	writer messageWriter
	prefix string
}

// NewKafkaPublisher creates a publisher for brokers. Topics are created on first use.
func NewKafkaPublisher(brokers []string, topicPrefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		prefix: topicPrefix,
	}, nil
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Topic:   TopicName(p.prefix, event.Name),
		Value:   value,
		Time:    event.TS,
		Headers: []kafka.Header{{Key: headerEventName, Value: []byte(event.Name)}},
	}
	if key := event.Key(); key != "" {
		msg.Key = []byte(key)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads trigger events as a member of a consumer group.
type KafkaConsumer struct {
	reader messageReader
}

// NewKafkaConsumer subscribes groupID to the topics of the given event names.
func NewKafkaConsumer(brokers []string, groupID, topicPrefix string, names ...string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if groupID == "" {
		return nil, errors.New("kafka group id is required")
	}
	topics := make([]string, len(names))
	for i, name := range names {
		topics[i] = TopicName(topicPrefix, name)
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: topics,
			MaxBytes:    1 << 20,
		}),
	}, nil
}

// Consume fetches messages and commits each one after handler returns.
// Malformed messages and handler errors are logged and committed; run
// failures are reported through run status, not redelivery.
func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	logger := contextutil.LoggerFromContext(ctx)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.ErrorContext(ctx, "dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		} else if err := handler(ctx, &event); err != nil {
			logger.ErrorContext(ctx, "failed to handle event", "event_id", event.ID, "name", event.Name, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

// Close leaves the consumer group.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
