package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
	"github.com/preceptly/backend/pkg/utils"
)

// sessionColumns is the SELECT list shared by every session read
var sessionColumns = fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
	constants.FieldSessionID,
	constants.FieldPrincipalID,
	constants.FieldCurrentStep,
	constants.FieldCompletedSteps,
	constants.FieldFormData,
	constants.FieldStatus,
	constants.FieldSelectedRole,
	constants.FieldStartedAt,
	constants.FieldUpdatedAt,
	constants.FieldExpiresAt,
	constants.FieldCompletedAt,
	constants.FieldErrorCount,
	constants.FieldLastError,
)

// SessionRepository persists onboarding sessions in MySQL. Writes are
// last-writer-wins at the session granularity; form data merges at the
// field level because the engine merges before saving the whole row.
type SessionRepository struct {
	db  *database.MySQLConnection
	tm  *TransactionManager
	ttl time.Duration
	log *logger.Logger
}

// Ensure SessionRepository implements ports.SessionStore at compile time
var _ ports.SessionStore = (*SessionRepository)(nil)

// NewSessionRepository creates a repository with the given inactivity TTL
func NewSessionRepository(db *database.MySQLConnection, tm *TransactionManager, ttl time.Duration, log *logger.Logger) *SessionRepository {
	return &SessionRepository{db: db, tm: tm, ttl: ttl, log: log}
}

// Load fetches a session by id regardless of status. Returns (nil, nil)
// when no session exists.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*models.OnboardingSession, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		sessionColumns, constants.TableOnboardingSession, constants.FieldSessionID)

	row := r.db.QueryRowContext(ctx, query, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return session, nil
}

// FindActiveByPrincipal returns the principal's resumable session, or
// (nil, nil) when none exists.
func (r *SessionRepository) FindActiveByPrincipal(ctx context.Context, principalID string) (*models.OnboardingSession, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s IN (?, ?, ?) ORDER BY %s DESC LIMIT 1",
		sessionColumns, constants.TableOnboardingSession,
		constants.FieldPrincipalID, constants.FieldStatus, constants.FieldStartedAt)

	row := r.db.QueryRowContext(ctx, query, principalID,
		constants.SessionStatusActive, constants.SessionStatusPaused, constants.SessionStatusAbandoned)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session for principal %s: %w", principalID, err)
	}
	return session, nil
}

// Create inserts a fresh session at the first step. Any open session the
// principal already holds is retired in the same transaction, so a
// principal never ends up with two resumable rows even under concurrent
// session starts.
func (r *SessionRepository) Create(ctx context.Context, principalID string) (*models.OnboardingSession, error) {
	now := time.Now()
	session := &models.OnboardingSession{
		SessionID:      utils.GenerateSessionID(),
		PrincipalID:    principalID,
		CurrentStep:    constants.StepRoleSelection,
		CompletedSteps: []constants.StepID{},
		FormData:       models.FormData{},
		Status:         constants.SessionStatusActive,
		StartedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(r.ttl),
	}

	err := r.tm.WithTransaction(func(tx *sql.Tx) error {
		retire := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ? AND %s IN (?, ?, ?)",
			constants.TableOnboardingSession,
			constants.FieldStatus, constants.FieldUpdatedAt,
			constants.FieldPrincipalID, constants.FieldStatus)
		if _, err := tx.ExecContext(ctx, retire,
			constants.SessionStatusExpired, now, principalID,
			constants.SessionStatusActive, constants.SessionStatusPaused, constants.SessionStatusAbandoned); err != nil {
			return fmt.Errorf("failed to retire open sessions for principal %s: %w", principalID, err)
		}

		insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			constants.TableOnboardingSession, sessionColumns)
		if _, err := tx.ExecContext(ctx, insert,
			session.SessionID, session.PrincipalID, session.CurrentStep,
			"[]", "{}", session.Status, nil,
			session.StartedAt, session.UpdatedAt, session.ExpiresAt,
			nil, 0, nil); err != nil {
			return fmt.Errorf("failed to create session for principal %s: %w", principalID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Save overwrites the session's mutable fields, bumps updated_at, and
// slides expires_at forward by the TTL. Completed steps are de-duplicated
// before serialization.
func (r *SessionRepository) Save(ctx context.Context, session *models.OnboardingSession) (*models.OnboardingSession, error) {
	session.CompletedSteps = dedupSteps(session.CompletedSteps)

	completedJSON, err := json.Marshal(session.CompletedSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completed steps: %w", err)
	}
	formJSON, err := json.Marshal(session.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	now := time.Now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(r.ttl)

	var role interface{}
	if session.SelectedRole != nil {
		role = string(*session.SelectedRole)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ?, %s = ?, %s = ?, %s = ?, %s = ?, %s = ? WHERE %s = ?`,
		constants.TableOnboardingSession,
		constants.FieldCurrentStep, constants.FieldCompletedSteps, constants.FieldFormData,
		constants.FieldStatus, constants.FieldSelectedRole,
		constants.FieldUpdatedAt, constants.FieldExpiresAt,
		constants.FieldSessionID)

	result, err := r.db.ExecContext(ctx, query,
		session.CurrentStep, completedJSON, formJSON,
		session.Status, role,
		session.UpdatedAt, session.ExpiresAt,
		session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	if rows, rerr := result.RowsAffected(); rerr == nil && rows == 0 {
		return nil, fmt.Errorf("session %s not found", session.SessionID)
	}

	return session, nil
}

// RecordError bumps the error counters without touching updated_at or
// expires_at; a failed validation is not a successful mutation.
func (r *SessionRepository) RecordError(ctx context.Context, sessionID, message string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = %s + 1, %s = ? WHERE %s = ?`,
		constants.TableOnboardingSession,
		constants.FieldErrorCount, constants.FieldErrorCount,
		constants.FieldLastError, constants.FieldSessionID)

	if _, err := r.db.ExecContext(ctx, query, message, sessionID); err != nil {
		return fmt.Errorf("failed to record error on session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateStatus applies an advisory status change
func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID string, status constants.SessionStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ? WHERE %s = ?`,
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldUpdatedAt, constants.FieldSessionID)

	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), sessionID); err != nil {
		return fmt.Errorf("failed to update status of session %s: %w", sessionID, err)
	}
	return nil
}

// Expire marks the session expired. Idempotent: terminal sessions are
// untouched.
func (r *SessionRepository) Expire(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ? AND %s NOT IN (?, ?)`,
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldSessionID, constants.FieldStatus)

	_, err := r.db.ExecContext(ctx, query,
		constants.SessionStatusExpired, sessionID,
		constants.SessionStatusCompleted, constants.SessionStatusExpired)
	if err != nil {
		return fmt.Errorf("failed to expire session %s: %w", sessionID, err)
	}
	return nil
}

// Complete flips the session to completed with guard running inside the
// same transaction, holding a row lock so concurrent completions serialize.
// If the row is already completed the guard is skipped and the call
// succeeds.
func (r *SessionRepository) Complete(ctx context.Context, sessionID string, guard func(*models.OnboardingSession) error) error {
	return r.tm.WithRetry(func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? FOR UPDATE",
			sessionColumns, constants.TableOnboardingSession, constants.FieldSessionID)

		row := tx.QueryRowContext(ctx, query, sessionID)
		session, err := scanSession(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("session %s not found", sessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock session %s: %w", sessionID, err)
		}

		if session.Status == constants.SessionStatusCompleted {
			return nil
		}

		if err := guard(session); err != nil {
			return err
		}

		now := time.Now()
		update := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ?, %s = ? WHERE %s = ?`,
			constants.TableOnboardingSession,
			constants.FieldStatus, constants.FieldCompletedAt,
			constants.FieldUpdatedAt, constants.FieldSessionID)

		if _, err := tx.ExecContext(ctx, update,
			constants.SessionStatusCompleted, now, now, sessionID); err != nil {
			return fmt.Errorf("failed to complete session %s: %w", sessionID, err)
		}
		return nil
	}, 3)
}

// ExpireStale retires every resumable session past its expiry
func (r *SessionRepository) ExpireStale(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s IN (?, ?, ?) AND %s < ?`,
		constants.TableOnboardingSession,
		constants.FieldStatus, constants.FieldStatus, constants.FieldExpiresAt)

	result, err := r.db.ExecContext(ctx, query,
		constants.SessionStatusExpired,
		constants.SessionStatusActive, constants.SessionStatusPaused, constants.SessionStatusAbandoned,
		time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession hydrates one session row
func scanSession(row rowScanner) (*models.OnboardingSession, error) {
	var (
		session       models.OnboardingSession
		completedJSON []byte
		formJSON      []byte
		selectedRole  sql.NullString
		completedAt   sql.NullTime
		lastError     sql.NullString
	)

	err := row.Scan(
		&session.SessionID,
		&session.PrincipalID,
		&session.CurrentStep,
		&completedJSON,
		&formJSON,
		&session.Status,
		&selectedRole,
		&session.StartedAt,
		&session.UpdatedAt,
		&session.ExpiresAt,
		&completedAt,
		&session.ErrorCount,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(completedJSON, &session.CompletedSteps); err != nil {
		return nil, fmt.Errorf("corrupt completed_steps for session %s: %w", session.SessionID, err)
	}
	if err := json.Unmarshal(formJSON, &session.FormData); err != nil {
		return nil, fmt.Errorf("corrupt form_data for session %s: %w", session.SessionID, err)
	}

	if selectedRole.Valid {
		role := constants.Role(selectedRole.String)
		session.SelectedRole = &role
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	if lastError.Valid {
		session.LastError = &lastError.String
	}

	return &session, nil
}

// dedupSteps removes duplicate step ids preserving first-seen order
func dedupSteps(steps []constants.StepID) []constants.StepID {
	seen := make(map[constants.StepID]struct{}, len(steps))
	out := make([]constants.StepID, 0, len(steps))
	for _, s := range steps {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
