// Package messaging implements the event bus that carries domain events
// from committed engine transactions to their subscribers (cache
// invalidation, audit logging). In-memory, single-instance: losing an
// event costs a stale cache entry until its TTL, never correctness, so no
// broker is warranted.
package messaging

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ErrEventBusClosed is returned when publishing to a closed bus.
var ErrEventBusClosed = errors.New("messaging: event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus implements shared.EventBus for a single process.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *busMetrics
	closed      bool
	wg          sync.WaitGroup
}

// Config contains configuration for InMemoryEventBus.
type Config struct {
	// AsyncMode runs handlers on goroutines instead of the publisher's
	// stack. Handlers that must observe committed state can rely on it
	// either way: publishing happens after commit.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handler executions in async mode.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// Registerer receives bus metrics; nil disables them.
	Registerer prometheus.Registerer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config Config) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		logger:     config.Logger,
	}
	if config.Registerer != nil {
		bus.metrics = newBusMetrics(config.Registerer)
	}
	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.published.WithLabelValues(string(event.EventType())).Inc()
	}

	for _, handler := range handlers {
		if b.asyncMode {
			b.executeAsync(event, handler)
		} else {
			b.execute(event, handler)
		}
	}
	return nil
}

// PublishBatch publishes events in order.
func (b *InMemoryEventBus) PublishBatch(events []shared.Event) error {
	for _, event := range events {
		if err := b.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting events and waits for in-flight handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	b.workerPool <- struct{}{}
	go func() {
		defer func() {
			<-b.workerPool
			b.wg.Done()
			if p := recover(); p != nil {
				b.logger.Error("event handler panicked",
					"event_type", string(event.EventType()), "panic", p)
			}
		}()
		b.execute(event, handler)
	}()
}

func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) {
	if err := handler(event); err != nil {
		if b.metrics != nil {
			b.metrics.failed.WithLabelValues(string(event.EventType())).Inc()
		}
		b.logger.Error("event handler failed",
			"event_type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

type busMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	m := &busMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_published_total",
			Help: "Domain events published, by type.",
		}, []string{"type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_handler_failures_total",
			Help: "Event handler failures, by event type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.published, m.failed)
	return m
}
