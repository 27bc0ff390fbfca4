package events

import (
	"context"
	"sync"

	"pdfrag/internal/contextutil"
)

// ChannelBus is an in-process Publisher and Consumer backed by a buffered channel.
type ChannelBus struct {
	ch     chan *Event
	closed chan struct{}
	once   sync.Once
}

// NewChannelBus creates a bus holding up to buffer undelivered events.
func NewChannelBus(buffer int) *ChannelBus {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelBus{
		ch:     make(chan *Event, buffer),
		closed: make(chan struct{}),
	}
}

// Publish blocks until the event is buffered, the context ends or the bus closes.
func (b *ChannelBus) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	select {
	case b.ch <- event:
		return nil
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume hands events to handler one at a time. Handler errors are logged.
// When the bus closes or ctx ends, events already buffered are handed to
// handler before Consume returns, so none accepted by Publish are dropped.
// It returns nil after a close and ctx.Err() when ctx ends.
func (b *ChannelBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			b.drain(ctx, handler)
			return ctx.Err()
		case <-b.closed:
			b.drain(ctx, handler)
			return nil
		case event := <-b.ch:
			b.handle(ctx, handler, event)
		}
	}
}

func (b *ChannelBus) drain(ctx context.Context, handler Handler) {
	for {
		select {
		case event := <-b.ch:
			b.handle(ctx, handler, event)
		default:
			return
		}
	}
}

func (b *ChannelBus) handle(ctx context.Context, handler Handler, event *Event) {
	if err := handler(ctx, event); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to handle event", "event_id", event.ID, "name", event.Name, "error", err)
	}
}

// Close stops consumers and rejects further publishes.
func (b *ChannelBus) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
