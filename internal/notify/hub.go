package notify

import (
	"context"
	"log/slog"

	"rescue/internal/platform/metrics"
)

// Sink forwards events outside the process.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Hub queues events from request handlers and fans them out to live
// subscribers and sinks from a single goroutine.
type Hub struct {
	queue   chan Event
	bus     *TypedBus[Event]
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithSink adds an external forwarder. Nil sinks are ignored.
func WithSink(s Sink) Option {
	return func(h *Hub) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

// WithMetrics enables queue and sink counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub whose queue holds at most queueSize pending events.
func NewHub(queueSize int, logger *slog.Logger, opts ...Option) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	h := &Hub{
		queue:  make(chan Event, queueSize),
		bus:    NewTyped[Event](),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish enqueues e. When the queue is full the event is dropped.
func (h *Hub) Publish(ctx context.Context, e Event) {
	select {
	case h.queue <- e:
		if h.metrics != nil {
			h.metrics.NotificationsPublished.Inc()
		}
	default:
		if h.metrics != nil {
			h.metrics.NotificationsDropped.Inc()
		}
		h.logger.WarnContext(ctx, "notification dropped, queue full", "title", e.Title)
	}
}

// Subscribe attaches a live subscriber. Events published before the call
// are not replayed.
func (h *Hub) Subscribe() <-chan Event {
	ch := h.bus.Subscribe()
	h.observeSubscribers()
	return ch
}

// Unsubscribe detaches sub and closes it.
func (h *Hub) Unsubscribe(sub <-chan Event) {
	h.bus.Unsubscribe(sub)
	h.observeSubscribers()
}

// Run delivers queued events until ctx is cancelled, then closes every
// subscriber channel.
func (h *Hub) Run(ctx context.Context) error {
	defer h.bus.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-h.queue:
			h.deliver(ctx, e)
		}
	}
}

func (h *Hub) deliver(ctx context.Context, e Event) {
	if skipped := h.bus.Publish(e); skipped > 0 {
		h.logger.DebugContext(ctx, "slow subscribers skipped", "count", skipped)
	}
	for _, s := range h.sinks {
		if err := s.Send(ctx, e); err != nil {
			if h.metrics != nil {
				h.metrics.NotificationSinkErrors.WithLabelValues(s.Name()).Inc()
			}
			h.logger.ErrorContext(ctx, "notification sink failed",
				"sink", s.Name(),
				"error", err,
			)
		}
	}
}

func (h *Hub) observeSubscribers() {
	if h.metrics != nil {
		h.metrics.NotificationSubscribers.Set(float64(h.bus.Len()))
	}
}
