package models

import (
	"time"

	"github.com/preceptly/backend/pkg/constants"
)

// StepData holds the submitted field values for one step
type StepData map[string]interface{}

// FormData accumulates validated field values keyed by step. A step's values
// are only overwritten when that step is resubmitted.
type FormData map[constants.StepID]StepData

// OnboardingSession is the persisted, resumable record of one principal's
// progress through the onboarding wizard. One active session per principal
// at a time.
type OnboardingSession struct {
	SessionID      string                  `json:"session_id"`
	PrincipalID    string                  `json:"principal_id"`
	CurrentStep    constants.StepID        `json:"current_step"`
	CompletedSteps []constants.StepID      `json:"completed_steps"`
	FormData       FormData                `json:"form_data"`
	Status         constants.SessionStatus `json:"status"`
	SelectedRole   *constants.Role         `json:"selected_role,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	ExpiresAt      time.Time               `json:"expires_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	ErrorCount     int                     `json:"error_count"`
	LastError      *string                 `json:"last_error,omitempty"`
}

// IsExpired reports whether the session passed its expiry at the given instant
func (s *OnboardingSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasCompleted reports whether the step is in the completed history
func (s *OnboardingSession) HasCompleted(step constants.StepID) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// AppendCompleted appends the step to the completed history, de-duplicated
// by step id. Returns true if the history changed.
func (s *OnboardingSession) AppendCompleted(step constants.StepID) bool {
	if s.HasCompleted(step) {
		return false
	}
	s.CompletedSteps = append(s.CompletedSteps, step)
	return true
}

// MergeStepData merges submitted values into the form data for one step.
// Values for other steps are untouched; resubmitting a step replaces that
// step's record.
func (s *OnboardingSession) MergeStepData(step constants.StepID, data StepData) {
	if s.FormData == nil {
		s.FormData = make(FormData)
	}
	merged := make(StepData, len(data))
	for k, v := range data {
		merged[k] = v
	}
	s.FormData[step] = merged
}

// FlattenedForm returns all captured field values across steps as one map,
// the environment shape consumed by skip predicates. Later steps win on
// field-name collisions.
func (s *OnboardingSession) FlattenedForm() map[string]interface{} {
	flat := make(map[string]interface{})
	for _, step := range s.CompletedSteps {
		for k, v := range s.FormData[step] {
			flat[k] = v
		}
	}
	return flat
}

// Role returns the frozen role, or empty string when not yet selected
func (s *OnboardingSession) Role() constants.Role {
	if s.SelectedRole == nil {
		return ""
	}
	return *s.SelectedRole
}
