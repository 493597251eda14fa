package constants

// EventKind classifies analytics events emitted by the onboarding engine.
// Events are write-only funnel telemetry; the engine never reads them back.
type EventKind string

const (
	EventSessionStarted      EventKind = "session_started"
	EventSessionResumed      EventKind = "session_resumed"
	EventSessionPaused       EventKind = "session_paused"
	EventSessionExpired      EventKind = "session_expired"
	EventSessionAbandoned    EventKind = "session_abandoned"
	EventStepStarted         EventKind = "step_started"
	EventStepCompleted       EventKind = "step_completed"
	EventStepSkipped         EventKind = "step_skipped"
	EventValidationError     EventKind = "validation_error"
	EventOnboardingCompleted EventKind = "onboarding_completed"
	EventCompletionFailed    EventKind = "completion_failed"
)
