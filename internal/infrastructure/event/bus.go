package event

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/shared"
)

// InMemoryEventBus implements EventBus with in-memory pub/sub. By default
// events are dispatched synchronously; with a buffer the bus dispatches from
// a background worker instead, decoupling publishers from slow handlers.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
	buffer   chan shared.DomainEvent
	wg       sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus with synchronous dispatch
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// NewAsyncInMemoryEventBus creates an event bus that dispatches from a
// background worker through a buffered channel. Publish blocks when the
// buffer is full rather than dropping events.
func NewAsyncInMemoryEventBus(logger *zap.Logger, bufferSize int) *InMemoryEventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		buffer:   make(chan shared.DomainEvent, bufferSize),
	}
}

// Publish publishes events to all registered handlers
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.buffer != nil && b.running.Load() {
		for _, event := range events {
			select {
			case b.buffer <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for _, event := range events {
		b.dispatch(ctx, event)
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	// If handler specifies its own event types, use those
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start starts the event bus and, in async mode, its dispatch worker
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	if b.buffer != nil {
		b.wg.Add(1)
		go b.dispatchLoop()
	}
	b.logger.Info("event bus started")
	return nil
}

// Stop stops the event bus gracefully, draining the buffer in async mode
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	if b.buffer != nil {
		close(b.buffer)
	}
	b.wg.Wait()
	b.logger.Info("event bus stopped")
	return nil
}

// dispatchLoop drains the buffer until it is closed
func (b *InMemoryEventBus) dispatchLoop() {
	defer b.wg.Done()
	for event := range b.buffer {
		b.dispatch(context.Background(), event)
	}
}

// dispatch delivers one event to every registered handler
func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	handlers := b.registry.GetHandlers(event.EventType())

	for _, handler := range handlers {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			// Log error but continue with other handlers
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
