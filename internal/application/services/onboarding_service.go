package services

import (
	"context"
	"time"

	"github.com/preceptly/backend/internal/domain"
	"github.com/preceptly/backend/internal/domain/catalog"
	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
	"github.com/preceptly/backend/pkg/logger"
)

// StartResult is returned by StartSession
type StartResult struct {
	Session *models.OnboardingSession `json:"session"`
	Resumed bool                      `json:"resumed"`
}

// SubmitResult is returned by SubmitStep on success
type SubmitResult struct {
	Session       *models.OnboardingSession `json:"session"`
	NextStep      constants.StepID          `json:"next_step"`
	SkippedSteps  []constants.StepID        `json:"skipped_steps,omitempty"`
	RouteComplete bool                      `json:"route_complete"`
}

// OnboardingService is the transition engine: the only component that
// mutates session state. Each submission validates, merges, advances, and
// persists in one pass; analytics ride along fire-and-forget.
type OnboardingService struct {
	store        ports.SessionStore
	catalog      *catalog.Catalog
	validation   *ValidationService
	analytics    *AnalyticsService
	stateMachine *domain.SessionStateMachine
	log          *logger.Logger
	now          func() time.Time
}

// NewOnboardingService creates the transition engine
func NewOnboardingService(
	store ports.SessionStore,
	cat *catalog.Catalog,
	validation *ValidationService,
	analytics *AnalyticsService,
	log *logger.Logger,
) *OnboardingService {
	return &OnboardingService{
		store:        store,
		catalog:      cat,
		validation:   validation,
		analytics:    analytics,
		stateMachine: domain.NewSessionStateMachine(),
		log:          log,
		now:          time.Now,
	}
}

// StartSession resumes the principal's open session or creates a fresh one.
// An open session past its expiry is retired and silently replaced.
func (os *OnboardingService) StartSession(ctx context.Context, principalID string) (*StartResult, error) {
	existing, err := os.store.FindActiveByPrincipal(ctx, principalID)
	if err != nil {
		return nil, errors.NewPersistenceError("find session", err)
	}

	if existing != nil && existing.IsExpired(os.now()) {
		if err := os.store.Expire(ctx, existing.SessionID); err != nil {
			return nil, errors.NewPersistenceError("expire session", err)
		}
		os.analytics.EmitKind(principalID, existing.SessionID, constants.EventSessionExpired, existing.CurrentStep)
		existing = nil
	}

	if existing == nil {
		session, err := os.store.Create(ctx, principalID)
		if err != nil {
			return nil, errors.NewPersistenceError("create session", err)
		}
		os.analytics.EmitKind(principalID, session.SessionID, constants.EventSessionStarted, session.CurrentStep)
		os.log.Info("onboarding session started",
			"session_id", session.SessionID, "principal_id", principalID)
		return &StartResult{Session: session}, nil
	}

	if existing.Status != constants.SessionStatusActive {
		next, err := os.stateMachine.Transition(existing.Status, domain.TransitionResume)
		if err != nil {
			return nil, errors.NewInternalError("resume session", err)
		}
		if err := os.store.UpdateStatus(ctx, existing.SessionID, next); err != nil {
			return nil, errors.NewPersistenceError("resume session", err)
		}
		existing.Status = next
	}

	// A resume slides the inactivity window like any other touch
	if existing, err = os.store.Save(ctx, existing); err != nil {
		return nil, errors.NewPersistenceError("save session", err)
	}

	os.analytics.EmitKind(principalID, existing.SessionID, constants.EventSessionResumed, existing.CurrentStep)
	return &StartResult{Session: existing, Resumed: true}, nil
}

// SubmitStep runs the full transition: guards, validation, merge, advance,
// persist. No session state mutates on a validation failure except the
// error counters, which do not slide the expiry window.
func (os *OnboardingService) SubmitStep(ctx context.Context, sessionID, principalID string, step constants.StepID, data models.StepData) (*SubmitResult, error) {
	session, err := os.loadOwned(ctx, sessionID, principalID)
	if err != nil {
		return nil, err
	}

	if session.Status == constants.SessionStatusCompleted {
		return nil, &errors.DependencyViolationError{
			Step:   string(step),
			Reason: "onboarding already completed",
		}
	}

	if expErr := os.retireIfExpired(ctx, session, true); expErr != nil {
		return nil, expErr
	}

	if session.Status != constants.SessionStatusActive {
		// Submitting to a paused or abandoned session resumes it implicitly
		next, terr := os.stateMachine.Transition(session.Status, domain.TransitionResume)
		if terr != nil {
			return nil, errors.NewInternalError("resume session", terr)
		}
		session.Status = next
		os.analytics.EmitKind(principalID, sessionID, constants.EventSessionResumed, session.CurrentStep)
	}

	if !constants.IsValidStep(string(step)) {
		return nil, errors.NewNotFoundError("step", string(step))
	}
	if !os.catalog.InRoute(session.Role(), step) {
		return nil, &errors.DependencyViolationError{
			Step:   string(step),
			Reason: "step is not part of the selected role's onboarding",
		}
	}

	if verr := os.guardFrozenRole(session, step, data); verr != nil {
		return nil, verr
	}

	missing, err := os.catalog.MissingDependencies(session, step)
	if err != nil {
		return nil, errors.NewInternalError("resolve dependencies", err)
	}
	if len(missing) > 0 {
		missingStr := make([]string, len(missing))
		for i, m := range missing {
			missingStr[i] = string(m)
		}
		return nil, errors.NewDependencyViolationError(string(step), missingStr)
	}

	if verr := os.validation.ValidateStep(step, data); verr != nil {
		if rerr := os.store.RecordError(ctx, sessionID, verr.Error()); rerr != nil {
			os.log.Error("failed to record validation error",
				"session_id", sessionID, "error", rerr)
		}
		os.analytics.EmitError(principalID, sessionID, constants.EventValidationError, step, verr.Error())
		return nil, verr
	}

	stepDuration := os.now().Sub(session.UpdatedAt).Milliseconds()

	session.MergeStepData(step, data)
	session.AppendCompleted(step)
	if step == constants.StepRoleSelection {
		roleStr, ok := data[constants.FormFieldRole].(string)
		if !ok {
			return nil, errors.NewValidationError(constants.FormFieldRole, "must be text")
		}
		role := constants.Role(roleStr)
		session.SelectedRole = &role
	}

	next, skipped, err := os.catalog.Next(session, step)
	if err != nil {
		return nil, errors.NewInternalError("resolve next step", err)
	}
	routeComplete := next == constants.StepComplete
	if !routeComplete {
		session.CurrentStep = next
	}

	session, err = os.store.Save(ctx, session)
	if err != nil {
		return nil, errors.NewPersistenceError("save session", err)
	}

	os.analytics.Emit(&models.AnalyticsEvent{
		PrincipalID: principalID,
		SessionID:   sessionID,
		EventKind:   constants.EventStepCompleted,
		Step:        step,
		DurationMs:  &stepDuration,
	})
	for _, skippedStep := range skipped {
		os.analytics.EmitKind(principalID, sessionID, constants.EventStepSkipped, skippedStep)
	}
	if !routeComplete {
		os.analytics.EmitKind(principalID, sessionID, constants.EventStepStarted, next)
	}

	return &SubmitResult{
		Session:       session,
		NextStep:      next,
		SkippedSteps:  skipped,
		RouteComplete: routeComplete,
	}, nil
}

// Pause records an explicit save-and-exit
func (os *OnboardingService) Pause(ctx context.Context, sessionID, principalID string) (*models.OnboardingSession, error) {
	session, err := os.loadOwned(ctx, sessionID, principalID)
	if err != nil {
		return nil, err
	}
	if expErr := os.retireIfExpired(ctx, session, false); expErr != nil {
		return nil, expErr
	}

	next, err := os.stateMachine.Transition(session.Status, domain.TransitionPause)
	if err != nil {
		return nil, errors.NewValidationError("status", err.Error())
	}
	if err := os.store.UpdateStatus(ctx, sessionID, next); err != nil {
		return nil, errors.NewPersistenceError("pause session", err)
	}
	session.Status = next

	os.analytics.EmitKind(principalID, sessionID, constants.EventSessionPaused, session.CurrentStep)
	return session, nil
}

// Abandon flags the session as walked away from. Advisory: the session
// still resumes freely until it expires.
func (os *OnboardingService) Abandon(ctx context.Context, sessionID, principalID string) (*models.OnboardingSession, error) {
	session, err := os.loadOwned(ctx, sessionID, principalID)
	if err != nil {
		return nil, err
	}
	if expErr := os.retireIfExpired(ctx, session, false); expErr != nil {
		return nil, expErr
	}

	next, err := os.stateMachine.Transition(session.Status, domain.TransitionAbandon)
	if err != nil {
		return nil, errors.NewValidationError("status", err.Error())
	}
	if err := os.store.UpdateStatus(ctx, sessionID, next); err != nil {
		return nil, errors.NewPersistenceError("abandon session", err)
	}
	session.Status = next

	os.analytics.EmitKind(principalID, sessionID, constants.EventSessionAbandoned, session.CurrentStep)
	return session, nil
}

// loadOwned fetches the session and enforces ownership
func (os *OnboardingService) loadOwned(ctx context.Context, sessionID, principalID string) (*models.OnboardingSession, error) {
	session, err := os.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.NewPersistenceError("load session", err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	if session.PrincipalID != principalID {
		return nil, errors.NewUnauthorizedError("session belongs to another principal")
	}
	return session, nil
}

// retireIfExpired applies lazy expiry. When replace is true a fresh session
// is created and its id is carried in the returned SessionExpiredError so
// the client can restart without another round trip.
func (os *OnboardingService) retireIfExpired(ctx context.Context, session *models.OnboardingSession, replace bool) error {
	if constants.IsTerminalStatus(session.Status) {
		if session.Status == constants.SessionStatusExpired {
			return errors.NewSessionExpiredError(session.SessionID, "")
		}
		return nil
	}
	if !session.IsExpired(os.now()) {
		return nil
	}

	if err := os.store.Expire(ctx, session.SessionID); err != nil {
		return errors.NewPersistenceError("expire session", err)
	}
	os.analytics.EmitKind(session.PrincipalID, session.SessionID, constants.EventSessionExpired, session.CurrentStep)

	newSessionID := ""
	if replace {
		fresh, err := os.store.Create(ctx, session.PrincipalID)
		if err != nil {
			return errors.NewPersistenceError("create session", err)
		}
		newSessionID = fresh.SessionID
		os.analytics.EmitKind(session.PrincipalID, fresh.SessionID, constants.EventSessionStarted, fresh.CurrentStep)
	}

	os.log.Info("onboarding session expired",
		"session_id", session.SessionID, "replaced_by", newSessionID)
	return errors.NewSessionExpiredError(session.SessionID, newSessionID)
}

// guardFrozenRole rejects changing the role after role selection completed
func (os *OnboardingService) guardFrozenRole(session *models.OnboardingSession, step constants.StepID, data models.StepData) error {
	if step != constants.StepRoleSelection {
		return nil
	}
	submitted, ok := data[constants.FormFieldRole].(string)
	if !ok || submitted == "" {
		// The validation pipeline reports the missing field
		return nil
	}
	if session.SelectedRole != nil && string(*session.SelectedRole) != submitted {
		return errors.NewValidationError(constants.FormFieldRole,
			"role cannot be changed after selection; start a new session")
	}
	return nil
}
