package ports

import (
	"context"

	"github.com/preceptly/backend/internal/domain/events"
	"github.com/preceptly/backend/internal/domain/models"
)

// EventHandler handles a published event payload
type EventHandler func(ctx context.Context, payload interface{}) error

// EventPublisher is the in-process pub/sub surface
type EventPublisher interface {
	Subscribe(eventType events.EventType, handler EventHandler) func()
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
	PublishAsync(eventType events.EventType, payload interface{})
}

// EventSink persists analytics events. Insert failures are logged and
// swallowed by the emitter; they never fail a transition.
type EventSink interface {
	Insert(ctx context.Context, event *models.AnalyticsEvent) error
}
