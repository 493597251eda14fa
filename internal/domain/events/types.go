// Package events defines the in-process event types flowing over the bus.
package events

// EventType identifies a bus topic
type EventType string

const (
	// AnalyticsEventRecorded carries a models.AnalyticsEvent toward the sink
	AnalyticsEventRecorded EventType = "analytics.event_recorded"
	// SessionCompleted fires after the finalizer commits a completion
	SessionCompleted EventType = "onboarding.session_completed"
)
