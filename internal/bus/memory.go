package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/reoverflow/internal/events"
)

// MemoryOptions configures the in-process bus.
type MemoryOptions struct {
	Buffer          int
	RedeliveryDelay time.Duration
	MaxDeliveries   int
	Logger          *slog.Logger
}

// Memory is an in-process bus. Consumers compete for deliveries from one
// queue, like members of a single consumer group.
type Memory struct {
	opts  MemoryOptions
	queue chan Delivery

	done      chan struct{}
	closeOnce sync.Once

	published   atomic.Int64
	redelivered atomic.Int64
	dropped     atomic.Int64
}

var _ Bus = (*Memory)(nil)

// NewMemory creates an in-process bus.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.RedeliveryDelay <= 0 {
		opts.RedeliveryDelay = time.Second
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Memory{
		opts:  opts,
		queue: make(chan Delivery, opts.Buffer),
		done:  make(chan struct{}),
	}
}

// Publish enqueues ev. It blocks while the buffer is full.
func (m *Memory) Publish(ctx context.Context, ev events.Event) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.queue <- Delivery{Event: ev, Attempt: 1}:
		m.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// Consume feeds deliveries to h until ctx is cancelled or the bus is closed.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case d := <-m.queue:
			if err := h(ctx, d); err != nil {
				m.retry(d, err)
			}
		}
	}
}

func (m *Memory) retry(d Delivery, cause error) {
	log := m.opts.Logger.With(
		slog.String("event_id", d.Event.ID),
		slog.String("event_type", string(d.Event.Type)),
		slog.String("question_id", d.Event.QuestionID),
		slog.Int("attempt", d.Attempt),
		slog.String("error", cause.Error()))

	if d.Attempt >= m.opts.MaxDeliveries {
		m.dropped.Add(1)
		log.Error("bus: delivery budget spent, dropping event")
		return
	}
	m.redelivered.Add(1)
	log.Debug("bus: scheduling redelivery")

	next := Delivery{Event: d.Event, Attempt: d.Attempt + 1}
	time.AfterFunc(m.opts.RedeliveryDelay, func() {
		select {
		case m.queue <- next:
		case <-m.done:
		}
	})
}

// Stats returns counters for published, redelivered and dropped deliveries.
func (m *Memory) Stats() (published, redelivered, dropped int64) {
	return m.published.Load(), m.redelivered.Load(), m.dropped.Load()
}

// Close stops consumers and rejects further publishes.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
