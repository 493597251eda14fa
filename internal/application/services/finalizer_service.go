package services

import (
	"context"
	"time"

	"github.com/preceptly/backend/internal/domain/catalog"
	"github.com/preceptly/backend/internal/domain/events"
	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
	"github.com/preceptly/backend/pkg/logger"
)

// FinalizerService commits a finished onboarding: it flips the session to
// completed and runs the directory and billing collaborators inside the
// store's critical section, so the side effects apply at most once even
// under concurrent completion calls.
type FinalizerService struct {
	store       ports.SessionStore
	catalog     *catalog.Catalog
	provisioner ports.RoleProvisioner
	seats       ports.SeatAssigner
	analytics   *AnalyticsService
	bus         ports.EventPublisher
	log         *logger.Logger
	now         func() time.Time
}

// NewFinalizerService creates the finalizer
func NewFinalizerService(
	store ports.SessionStore,
	cat *catalog.Catalog,
	provisioner ports.RoleProvisioner,
	seats ports.SeatAssigner,
	analytics *AnalyticsService,
	bus ports.EventPublisher,
	log *logger.Logger,
) *FinalizerService {
	return &FinalizerService{
		store:       store,
		catalog:     cat,
		provisioner: provisioner,
		seats:       seats,
		analytics:   analytics,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

// Complete finalizes the session. Idempotent: completing an already
// completed session succeeds without re-running the collaborators. A
// collaborator failure aborts the flip, leaving the session resumable.
func (fs *FinalizerService) Complete(ctx context.Context, sessionID, principalID string) (*models.OnboardingSession, error) {
	session, err := fs.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.NewPersistenceError("load session", err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	if session.PrincipalID != principalID {
		return nil, errors.NewUnauthorizedError("session belongs to another principal")
	}

	if session.Status == constants.SessionStatusCompleted {
		return session, nil
	}
	if session.Status == constants.SessionStatusExpired || session.IsExpired(fs.now()) {
		if session.Status != constants.SessionStatusExpired {
			if err := fs.store.Expire(ctx, sessionID); err != nil {
				return nil, errors.NewPersistenceError("expire session", err)
			}
			fs.analytics.EmitKind(principalID, sessionID, constants.EventSessionExpired, session.CurrentStep)
		}
		return nil, errors.NewSessionExpiredError(sessionID, "")
	}

	if missing, merr := fs.missingSteps(session); merr != nil {
		return nil, errors.NewInternalError("check route completion", merr)
	} else if len(missing) > 0 {
		return nil, errors.NewDependencyViolationError("complete", missing)
	}

	err = fs.store.Complete(ctx, sessionID, func(locked *models.OnboardingSession) error {
		assignment := fs.buildAssignment(locked)
		if perr := fs.provisioner.AssignRole(ctx, assignment); perr != nil {
			return errors.NewCollaboratorError("directory", perr)
		}
		if serr := fs.seats.AssignSeat(ctx, assignment); serr != nil {
			return errors.NewCollaboratorError("billing", serr)
		}
		return nil
	})
	if err != nil {
		if errors.IsCollaborator(err) {
			fs.analytics.EmitError(principalID, sessionID,
				constants.EventCompletionFailed, session.CurrentStep, err.Error())
			fs.log.Error("onboarding completion aborted",
				"session_id", sessionID, "error", err)
			return nil, err
		}
		return nil, errors.NewPersistenceError("complete session", err)
	}

	completed, err := fs.store.Load(ctx, sessionID)
	if err != nil || completed == nil {
		// The flip committed; fall back to the pre-completion snapshot
		fs.log.Warn("reload after completion failed", "session_id", sessionID, "error", err)
		completed = session
		completed.Status = constants.SessionStatusCompleted
	}

	fs.analytics.EmitKind(principalID, sessionID, constants.EventOnboardingCompleted, completed.CurrentStep)
	fs.bus.PublishAsync(events.SessionCompleted, completed)
	fs.log.Info("onboarding completed",
		"session_id", sessionID, "principal_id", principalID, "role", completed.Role())

	return completed, nil
}

// missingSteps lists the route steps still required before completion
func (fs *FinalizerService) missingSteps(session *models.OnboardingSession) ([]string, error) {
	var missing []string
	for _, stepID := range fs.catalog.RequirementsFor(session.Role()) {
		if session.HasCompleted(stepID) {
			continue
		}
		entry, _ := fs.catalog.Step(stepID)
		skip, err := fs.catalog.ShouldSkip(entry, session)
		if err != nil {
			return nil, err
		}
		if !skip {
			missing = append(missing, string(stepID))
		}
	}
	return missing, nil
}

// buildAssignment extracts the committed role and bindings from the form.
// Invitation bindings win over wizard selections.
func (fs *FinalizerService) buildAssignment(session *models.OnboardingSession) ports.Assignment {
	flat := session.FlattenedForm()
	return ports.Assignment{
		PrincipalID: session.PrincipalID,
		Role:        session.Role(),
		SchoolID:    firstString(flat, constants.FormFieldInvitedSchoolID, constants.FormFieldSchoolID),
		ProgramID:   firstString(flat, constants.FormFieldPreassignedProgramID, constants.FormFieldProgramID),
	}
}

func firstString(flat map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := flat[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
