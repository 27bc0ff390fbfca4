package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader returns queued messages, then io.EOF.
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "rag")
	assert.Error(t, err)
}

func TestNewKafkaConsumer_Validation(t *testing.T) {
	_, err := NewKafkaConsumer(nil, "group", "rag", NameIngestPDF)
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "", "rag", NameIngestPDF)
	assert.Error(t, err)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &KafkaPublisher{writer: writer, prefix: "rag"}

	event, err := New(NameIngestPDF, map[string]string{"pdf_path": "/docs/a.pdf", "source_id": "a"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "rag.rag.ingest_pdf", msg.Topic)
	assert.Equal(t, "a", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, NameIngestPDF, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.JSONEq(t, string(event.Data), string(decoded.Data))
}

func TestKafkaPublisher_PublishErrors(t *testing.T) {
	publisher := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, prefix: "rag"}

	assert.ErrorIs(t, publisher.Publish(context.Background(), nil), ErrNilEvent)

	event, err := New(NameQueryPDF, map[string]string{"question": "q"})
	require.NoError(t, err)
	assert.Error(t, publisher.Publish(context.Background(), event))
}

func TestKafkaConsumer_Consume(t *testing.T) {
	event, err := New(NameQueryPDF, map[string]string{"question": "q"})
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "rag.rag.query_pdf_ai", Offset: 1, Value: value},
		{Topic: "rag.rag.query_pdf_ai", Offset: 2, Value: []byte("not json")},
		{Topic: "rag.rag.query_pdf_ai", Offset: 3, Value: value},
	}}
	consumer := &KafkaConsumer{reader: reader}

	var handled []string
	err = consumer.Consume(context.Background(), func(_ context.Context, e *Event) error {
		handled = append(handled, e.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{event.ID, event.ID}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestKafkaConsumer_ContextCancelled(t *testing.T) {
	consumer := &KafkaConsumer{reader: &fakeReader{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := consumer.Consume(ctx, func(context.Context, *Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
