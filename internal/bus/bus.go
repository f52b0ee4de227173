// Package bus carries domain events from the question service to the index
// syncer. Delivery is at-least-once and unordered: a handler error leaves the
// event for redelivery until the delivery budget is spent.
package bus

import (
	"context"
	"errors"

	"github.com/starford/reoverflow/internal/events"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("bus: closed")

// Delivery is one attempt at handing an event to a consumer.
type Delivery struct {
	Event   events.Event
	Attempt int
}

// Handler processes a delivery. A non-nil error requests redelivery.
type Handler func(ctx context.Context, d Delivery) error

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Bus is the event boundary between the two services.
type Bus interface {
	Publisher
	// Consume blocks, feeding deliveries to h until ctx is cancelled.
	Consume(ctx context.Context, h Handler) error
	Close() error
}
