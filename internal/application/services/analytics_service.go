package services

import (
	"context"
	"time"

	"github.com/preceptly/backend/internal/domain/events"
	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
	"github.com/preceptly/backend/pkg/utils"
)

// AnalyticsService emits funnel events over the bus and drains them into
// the sink. Emission is fire-and-forget: a sink outage slows nothing and
// fails nothing on the submission path.
type AnalyticsService struct {
	bus  ports.EventPublisher
	sink ports.EventSink
	log  *logger.Logger
}

// NewAnalyticsService wires the service and subscribes the sink drain to
// the bus.
func NewAnalyticsService(bus ports.EventPublisher, sink ports.EventSink, log *logger.Logger) *AnalyticsService {
	as := &AnalyticsService{
		bus:  bus,
		sink: sink,
		log:  log,
	}
	bus.Subscribe(events.AnalyticsEventRecorded, as.handleRecorded)
	return as
}

// Emit stamps defaults onto the event and publishes it asynchronously
func (as *AnalyticsService) Emit(event *models.AnalyticsEvent) {
	if event.EventID == "" {
		event.EventID = utils.GenerateID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	as.bus.PublishAsync(events.AnalyticsEventRecorded, event)
}

// EmitKind is the shorthand used on the transition path
func (as *AnalyticsService) EmitKind(principalID, sessionID string, kind constants.EventKind, step constants.StepID) {
	as.Emit(&models.AnalyticsEvent{
		PrincipalID: principalID,
		SessionID:   sessionID,
		EventKind:   kind,
		Step:        step,
	})
}

// EmitError records a validation or completion failure with its message
func (as *AnalyticsService) EmitError(principalID, sessionID string, kind constants.EventKind, step constants.StepID, message string) {
	as.Emit(&models.AnalyticsEvent{
		PrincipalID:  principalID,
		SessionID:    sessionID,
		EventKind:    kind,
		Step:         step,
		ErrorMessage: &message,
	})
}

// handleRecorded drains one event into the sink. Insert failures are
// logged and swallowed so a sink outage never surfaces to callers.
func (as *AnalyticsService) handleRecorded(ctx context.Context, payload interface{}) error {
	event, ok := payload.(*models.AnalyticsEvent)
	if !ok {
		as.log.Warn("analytics payload of unexpected type", "payload", payload)
		return nil
	}
	if err := as.sink.Insert(ctx, event); err != nil {
		as.log.Error("analytics sink insert failed",
			"event_id", event.EventID,
			"event_kind", event.EventKind,
			"error", err)
	}
	return nil
}
