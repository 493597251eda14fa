package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
)

func newTestRepo(t *testing.T) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	conn := database.NewFromDB(db)
	repo := NewSessionRepository(conn, NewTransactionManager(conn), time.Hour, logger.NewNop())
	return repo, mock, func() { db.Close() }
}

func sessionRows(sessionID, principalID string, status constants.SessionStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		constants.FieldSessionID, constants.FieldPrincipalID, constants.FieldCurrentStep,
		constants.FieldCompletedSteps, constants.FieldFormData, constants.FieldStatus,
		constants.FieldSelectedRole, constants.FieldStartedAt, constants.FieldUpdatedAt,
		constants.FieldExpiresAt, constants.FieldCompletedAt, constants.FieldErrorCount,
		constants.FieldLastError,
	}).AddRow(
		sessionID, principalID, string(constants.StepBasicInfo),
		`["role-selection"]`, `{"role-selection":{"role":"student"}}`, string(status),
		"student", now, now, now.Add(time.Hour), nil, 0, nil,
	)
}

func TestSessionRepositoryLoad(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		sessionColumns, constants.TableOnboardingSession, constants.FieldSessionID)

	t.Run("hydrates the session row", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("obs_1").
			WillReturnRows(sessionRows("obs_1", "principal-1", constants.SessionStatusActive))

		session, err := repo.Load(context.Background(), "obs_1")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "obs_1", session.SessionID)
		assert.Equal(t, constants.StepBasicInfo, session.CurrentStep)
		assert.Equal(t, []constants.StepID{constants.StepRoleSelection}, session.CompletedSteps)
		assert.Equal(t, "student", session.FormData[constants.StepRoleSelection]["role"])
		require.NotNil(t, session.SelectedRole)
		assert.Equal(t, constants.RoleStudent, *session.SelectedRole)
	})

	t.Run("missing session returns nil, nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("obs_missing").
			WillReturnRows(sqlmock.NewRows([]string{constants.FieldSessionID}))

		session, err := repo.Load(context.Background(), "obs_missing")
		assert.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestSessionRepositoryFindActiveByPrincipal(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s IN (?, ?, ?) ORDER BY %s DESC LIMIT 1",
		sessionColumns, constants.TableOnboardingSession,
		constants.FieldPrincipalID, constants.FieldStatus, constants.FieldStartedAt)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("principal-1",
			constants.SessionStatusActive, constants.SessionStatusPaused, constants.SessionStatusAbandoned).
		WillReturnRows(sessionRows("obs_1", "principal-1", constants.SessionStatusPaused))

	session, err := repo.FindActiveByPrincipal(context.Background(), "principal-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, constants.SessionStatusPaused, session.Status)
}

func TestSessionRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	// Creating retires any open session the principal still holds, in the
	// same transaction as the insert
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ? AND %s IN (?, ?, ?)",
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldUpdatedAt,
		constants.FieldPrincipalID, constants.FieldStatus))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("INSERT INTO %s", constants.TableOnboardingSession))).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	session, err := repo.Create(context.Background(), "principal-1")
	require.NoError(t, err)
	assert.Equal(t, "principal-1", session.PrincipalID)
	assert.Equal(t, constants.StepRoleSelection, session.CurrentStep)
	assert.Equal(t, constants.SessionStatusActive, session.Status)
	assert.True(t, session.ExpiresAt.After(session.StartedAt))
	assert.NotEmpty(t, session.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySave(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	role := constants.RoleStudent
	session := &models.OnboardingSession{
		SessionID:   "obs_1",
		PrincipalID: "principal-1",
		CurrentStep: constants.StepContactInfo,
		CompletedSteps: []constants.StepID{
			constants.StepRoleSelection, constants.StepBasicInfo, constants.StepRoleSelection,
		},
		FormData:     models.FormData{constants.StepRoleSelection: {"role": "student"}},
		Status:       constants.SessionStatusActive,
		SelectedRole: &role,
	}

	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("UPDATE %s SET", constants.TableOnboardingSession))).
		WillReturnResult(sqlmock.NewResult(0, 1))

	before := time.Now()
	saved, err := repo.Save(context.Background(), session)
	require.NoError(t, err)

	// Duplicates collapse and the expiry slides forward
	assert.Equal(t, []constants.StepID{constants.StepRoleSelection, constants.StepBasicInfo}, saved.CompletedSteps)
	assert.False(t, saved.UpdatedAt.Before(before))
	assert.True(t, saved.ExpiresAt.After(saved.UpdatedAt))
}

func TestSessionRepositorySaveMissingRow(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("UPDATE %s SET", constants.TableOnboardingSession))).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Save(context.Background(), &models.OnboardingSession{SessionID: "obs_gone"})
	assert.Error(t, err)
}

func TestSessionRepositoryRecordError(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	query := fmt.Sprintf("UPDATE %s SET %s = %s + 1, %s = ? WHERE %s = ?",
		constants.TableOnboardingSession,
		constants.FieldErrorCount, constants.FieldErrorCount,
		constants.FieldLastError, constants.FieldSessionID)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs("email: invalid email format", "obs_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordError(context.Background(), "obs_1", "email: invalid email format")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryExpire(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ? AND %s NOT IN (?, ?)",
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldSessionID, constants.FieldStatus)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(constants.SessionStatusExpired, "obs_1",
			constants.SessionStatusCompleted, constants.SessionStatusExpired).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Expire(context.Background(), "obs_1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryComplete(t *testing.T) {
	lockQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? FOR UPDATE",
		sessionColumns, constants.TableOnboardingSession, constants.FieldSessionID)

	t.Run("runs guard and flips status inside the transaction", func(t *testing.T) {
		repo, mock, cleanup := newTestRepo(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("obs_1").
			WillReturnRows(sessionRows("obs_1", "principal-1", constants.SessionStatusActive))
		mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("UPDATE %s SET %s = ?", constants.TableOnboardingSession, constants.FieldStatus))).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		guardCalled := false
		err := repo.Complete(context.Background(), "obs_1", func(s *models.OnboardingSession) error {
			guardCalled = true
			assert.Equal(t, "obs_1", s.SessionID)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, guardCalled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already completed skips guard and succeeds", func(t *testing.T) {
		repo, mock, cleanup := newTestRepo(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("obs_1").
			WillReturnRows(sessionRows("obs_1", "principal-1", constants.SessionStatusCompleted))
		mock.ExpectCommit()

		err := repo.Complete(context.Background(), "obs_1", func(s *models.OnboardingSession) error {
			t.Fatal("guard must not run for a completed session")
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard failure rolls back", func(t *testing.T) {
		repo, mock, cleanup := newTestRepo(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs("obs_1").
			WillReturnRows(sessionRows("obs_1", "principal-1", constants.SessionStatusActive))
		mock.ExpectRollback()

		guardErr := fmt.Errorf("billing unavailable")
		err := repo.Complete(context.Background(), "obs_1", func(s *models.OnboardingSession) error {
			return guardErr
		})
		assert.ErrorIs(t, err, guardErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepositoryExpireStale(t *testing.T) {
	repo, mock, cleanup := newTestRepo(t)
	defer cleanup()

	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IN (?, ?, ?) AND %s < ?",
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldStatus, constants.FieldExpiresAt)

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	reclaimed, err := repo.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), reclaimed)
}
