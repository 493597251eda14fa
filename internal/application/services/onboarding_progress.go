package services

import (
	"context"
	"time"

	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
)

// StepProgress is one route entry in the progress view
type StepProgress struct {
	Step             constants.StepID `json:"step"`
	Title            string           `json:"title"`
	State            string           `json:"state"`
	Required         bool             `json:"required"`
	EstimatedMinutes int              `json:"estimated_minutes"`
	RequiredFields   []string         `json:"required_fields,omitempty"`
}

// Progress is the read-only projection of a session for the wizard UI
type Progress struct {
	SessionID        string                  `json:"session_id"`
	Status           constants.SessionStatus `json:"status"`
	Role             constants.Role          `json:"role,omitempty"`
	CurrentStep      constants.StepID        `json:"current_step"`
	Steps            []StepProgress          `json:"steps"`
	PercentComplete  int                     `json:"percent_complete"`
	MinutesRemaining int                     `json:"minutes_remaining"`
	ErrorCount       int                     `json:"error_count"`
	ExpiresAt        time.Time               `json:"expires_at"`
}

// Step states in the progress view
const (
	stepStateCompleted = "completed"
	stepStateSkipped   = "skipped"
	stepStateCurrent   = "current"
	stepStatePending   = "pending"
)

// Progress projects the session onto its role route. Read-only: it never
// slides the expiry window, but it does apply lazy expiry so a stale
// session reads as gone rather than resumable.
func (os *OnboardingService) Progress(ctx context.Context, sessionID, principalID string) (*Progress, error) {
	session, err := os.loadOwned(ctx, sessionID, principalID)
	if err != nil {
		return nil, err
	}
	if session.Status != constants.SessionStatusCompleted {
		if expErr := os.retireIfExpired(ctx, session, false); expErr != nil {
			return nil, expErr
		}
	}

	route := os.catalog.RequirementsFor(session.Role())
	steps := make([]StepProgress, 0, len(route))
	completed := 0
	minutesRemaining := 0

	for _, stepID := range route {
		entry, _ := os.catalog.Step(stepID)
		sp := StepProgress{
			Step:             stepID,
			Title:            entry.Title,
			Required:         entry.Required,
			EstimatedMinutes: entry.EstimatedMinutes,
		}

		switch {
		case session.HasCompleted(stepID):
			sp.State = stepStateCompleted
			completed++
		default:
			skip, serr := os.catalog.ShouldSkip(entry, session)
			if serr != nil {
				return nil, errors.NewInternalError("evaluate skip predicate", serr)
			}
			if skip {
				sp.State = stepStateSkipped
				completed++
			} else if stepID == session.CurrentStep {
				sp.State = stepStateCurrent
				minutesRemaining += entry.EstimatedMinutes
			} else {
				sp.State = stepStatePending
				minutesRemaining += entry.EstimatedMinutes
			}
		}

		if sp.State == stepStateCurrent || sp.State == stepStatePending {
			for _, rule := range os.validation.RulesFor(stepID) {
				if rule.Required {
					sp.RequiredFields = append(sp.RequiredFields, rule.Field)
				}
			}
		}

		steps = append(steps, sp)
	}

	percent := 0
	if len(route) > 0 {
		percent = completed * 100 / len(route)
	}
	if session.Status == constants.SessionStatusCompleted {
		percent = 100
		minutesRemaining = 0
	}

	return &Progress{
		SessionID:        session.SessionID,
		Status:           session.Status,
		Role:             session.Role(),
		CurrentStep:      session.CurrentStep,
		Steps:            steps,
		PercentComplete:  percent,
		MinutesRemaining: minutesRemaining,
		ErrorCount:       session.ErrorCount,
		ExpiresAt:        session.ExpiresAt,
	}, nil
}
