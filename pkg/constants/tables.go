package constants

// Table names
const (
	TableOnboardingSession   = "onboarding_session"
	TableOnboardingEvent     = "onboarding_event"
	TablePrincipalAssignment = "principal_assignment"
)

// onboarding_session columns
const (
	FieldSessionID      = "session_id"
	FieldPrincipalID    = "principal_id"
	FieldCurrentStep    = "current_step"
	FieldCompletedSteps = "completed_steps"
	FieldFormData       = "form_data"
	FieldStatus         = "status"
	FieldSelectedRole   = "selected_role"
	FieldStartedAt      = "started_at"
	FieldUpdatedAt      = "updated_at"
	FieldExpiresAt      = "expires_at"
	FieldCompletedAt    = "completed_at"
	FieldErrorCount     = "error_count"
	FieldLastError      = "last_error"
)

// onboarding_event columns
const (
	FieldEventID      = "event_id"
	FieldEventKind    = "event_kind"
	FieldEventStep    = "step"
	FieldEventTime    = "occurred_at"
	FieldDurationMs   = "duration_ms"
	FieldMetadata     = "metadata"
	FieldErrorMessage = "error_message"
)
