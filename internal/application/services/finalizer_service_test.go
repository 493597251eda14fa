package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/preceptly/backend/internal/domain/catalog"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/internal/infrastructure/persistence"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
	"github.com/preceptly/backend/pkg/expression"
	"github.com/preceptly/backend/pkg/logger"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) AssignRole(ctx context.Context, assignment ports.Assignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

type mockSeatAssigner struct {
	mock.Mock
}

func (m *mockSeatAssigner) AssignSeat(ctx context.Context, assignment ports.Assignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

type finalizerEnv struct {
	*testEnv
	finalizer   *FinalizerService
	provisioner *mockProvisioner
	seats       *mockSeatAssigner
}

func newFinalizerEnv(t *testing.T) *finalizerEnv {
	t.Helper()
	log := logger.NewNop()
	store := persistence.NewMemorySessionStore(time.Hour)
	bus := NewEventBus(log)
	sink := &recordingSink{}
	analytics := NewAnalyticsService(bus, sink, log)
	cat := catalog.New(expression.NewEngine())
	svc := NewOnboardingService(store, cat, NewValidationService(log), analytics, log)

	provisioner := &mockProvisioner{}
	seats := &mockSeatAssigner{}
	finalizer := NewFinalizerService(store, cat, provisioner, seats, analytics, bus, log)

	return &finalizerEnv{
		testEnv:     &testEnv{svc: svc, store: store, sink: sink},
		finalizer:   finalizer,
		provisioner: provisioner,
		seats:       seats,
	}
}

// completeStudentRoute walks a student to the end and returns the session id
func (e *finalizerEnv) completeStudentRoute(t *testing.T, principalID string) string {
	t.Helper()
	started, err := e.svc.StartSession(context.Background(), principalID)
	require.NoError(t, err)
	data := studentStepData()
	e.submitAll(t, started.Session.SessionID, principalID, []constants.StepID{
		constants.StepRoleSelection,
		constants.StepBasicInfo,
		constants.StepContactInfo,
		constants.StepSchoolSelection,
		constants.StepProgramSelection,
		constants.StepEnrollmentDetails,
		constants.StepReviewConfirm,
	}, data)
	return started.Session.SessionID
}

func TestComplete_HappyPath(t *testing.T) {
	env := newFinalizerEnv(t)
	ctx := context.Background()
	sessionID := env.completeStudentRoute(t, "principal-1")

	env.provisioner.On("AssignRole", mock.Anything, mock.MatchedBy(func(a ports.Assignment) bool {
		return a.PrincipalID == "principal-1" &&
			a.Role == constants.RoleStudent &&
			a.SchoolID == "school-1" &&
			a.ProgramID == "program-1"
	})).Return(nil).Once()
	env.seats.On("AssignSeat", mock.Anything, mock.Anything).Return(nil).Once()

	session, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)

	env.provisioner.AssertExpectations(t)
	env.seats.AssertExpectations(t)

	assert.Eventually(t, func() bool {
		return env.sink.hasKind(constants.EventOnboardingCompleted)
	}, time.Second, 10*time.Millisecond)
}

func TestComplete_Idempotent(t *testing.T) {
	env := newFinalizerEnv(t)
	ctx := context.Background()
	sessionID := env.completeStudentRoute(t, "principal-1")

	env.provisioner.On("AssignRole", mock.Anything, mock.Anything).Return(nil).Once()
	env.seats.On("AssignSeat", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.NoError(t, err)

	// Second call succeeds without touching the collaborators again
	session, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusCompleted, session.Status)

	env.provisioner.AssertNumberOfCalls(t, "AssignRole", 1)
	env.seats.AssertNumberOfCalls(t, "AssignSeat", 1)
}

func TestComplete_IncompleteRoute(t *testing.T) {
	env := newFinalizerEnv(t)
	ctx := context.Background()

	started, err := env.svc.StartSession(ctx, "principal-1")
	require.NoError(t, err)
	env.submitAll(t, started.Session.SessionID, "principal-1",
		[]constants.StepID{constants.StepRoleSelection}, studentStepData())

	_, err = env.finalizer.Complete(ctx, started.Session.SessionID, "principal-1")
	require.Error(t, err)
	assert.True(t, errors.IsDependencyViolation(err))

	env.provisioner.AssertNotCalled(t, "AssignRole")
	env.seats.AssertNotCalled(t, "AssignSeat")
}

func TestComplete_CollaboratorFailureLeavesSessionResumable(t *testing.T) {
	env := newFinalizerEnv(t)
	ctx := context.Background()
	sessionID := env.completeStudentRoute(t, "principal-1")

	env.provisioner.On("AssignRole", mock.Anything, mock.Anything).Return(nil)
	env.seats.On("AssignSeat", mock.Anything, mock.Anything).
		Return(fmt.Errorf("billing unavailable")).Once()

	_, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.Error(t, err)
	assert.True(t, errors.IsCollaborator(err))

	// The flip was aborted; the session can be completed again
	session, lerr := env.store.Load(ctx, sessionID)
	require.NoError(t, lerr)
	assert.Equal(t, constants.SessionStatusActive, session.Status)

	env.seats.On("AssignSeat", mock.Anything, mock.Anything).Return(nil).Once()
	completed, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusCompleted, completed.Status)

	assert.Eventually(t, func() bool {
		return env.sink.hasKind(constants.EventCompletionFailed)
	}, time.Second, 10*time.Millisecond)
}

func TestComplete_ExpiredSession(t *testing.T) {
	env := newFinalizerEnv(t)
	ctx := context.Background()
	sessionID := env.completeStudentRoute(t, "principal-1")

	env.finalizer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	defer func() { env.finalizer.now = time.Now }()

	_, err := env.finalizer.Complete(ctx, sessionID, "principal-1")
	require.Error(t, err)
	assert.True(t, errors.IsSessionExpired(err))

	env.provisioner.AssertNotCalled(t, "AssignRole")
}

func TestComplete_Ownership(t *testing.T) {
	env := newFinalizerEnv(t)
	sessionID := env.completeStudentRoute(t, "principal-1")

	_, err := env.finalizer.Complete(context.Background(), sessionID, "principal-2")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", errors.GetErrorCode(err))
}
