package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/preceptly/backend/internal/domain/events"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/logger"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is a function that handles an event.
// Using the type from ports to ensure interface compatibility.
type EventHandler = ports.EventHandler

// BusEvent wraps a payload published on the bus
type BusEvent struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// EventBus manages the in-process publish-subscribe system.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[EventType][]*subscription
	mu       sync.RWMutex
	log      *logger.Logger
	nextID   uint64
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus(log *logger.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]*subscription),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	sub := &subscription{id: eb.nextID, handler: handler}
	eb.handlers[eventType] = append(eb.handlers[eventType], sub)

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == sub.id {
				eb.handlers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers an event to all registered handlers in sequence
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload interface{}) error {
	eb.mu.RLock()
	subs := make([]*subscription, len(eb.handlers[eventType]))
	copy(subs, eb.handlers[eventType])
	eb.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	event := BusEvent{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}

	for _, sub := range subs {
		if err := sub.handler(ctx, event.Payload); err != nil {
			return fmt.Errorf("event bus handler error for %s: %w", eventType, err)
		}
	}

	return nil
}

// PublishAsync publishes an event on a new goroutine. Handler errors are
// logged, never propagated: async events are decoupled from the request.
func (eb *EventBus) PublishAsync(eventType EventType, payload interface{}) {
	go func() {
		// Async events outlive the request, so detach from its context
		if err := eb.Publish(context.Background(), eventType, payload); err != nil {
			eb.log.Error("async event publish failed", "event_type", eventType, "error", err)
		}
	}()
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[EventType][]*subscription)
}
