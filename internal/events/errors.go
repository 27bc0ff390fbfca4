package events

import "errors"

var (
	// ErrNilEvent indicates a nil event was provided to a publisher.
	ErrNilEvent = errors.New("nil event")
	// ErrClosed is returned when publishing to a closed bus.
	ErrClosed = errors.New("event bus closed")
	// ErrMalformedEvent is returned when an event cannot be decoded.
	ErrMalformedEvent = errors.New("malformed event")
)
