package models

import (
	"time"

	"github.com/preceptly/backend/pkg/constants"
)

// AnalyticsEvent is one funnel telemetry record. Write-only: the engine
// never reads events back.
type AnalyticsEvent struct {
	EventID      string                 `json:"event_id"`
	PrincipalID  string                 `json:"principal_id"`
	SessionID    string                 `json:"session_id"`
	EventKind    constants.EventKind    `json:"event_kind"`
	Step         constants.StepID       `json:"step,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	DurationMs   *int64                 `json:"duration_ms,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
}
