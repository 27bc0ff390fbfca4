package events

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_publisher.go -package=mocks pdfrag/internal/events Publisher

import "context"

// Publisher publishes trigger events to an event backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event *Event) error

// Consumer delivers events to a handler until its context ends or it is closed.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
