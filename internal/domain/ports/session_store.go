// Package ports declares the interfaces the engine consumes. Implementations
// live in infrastructure; tests substitute doubles.
package ports

import (
	"context"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
)

// SessionStore is the persistence abstraction for onboarding sessions.
// Load returns (nil, nil) when no session exists — expiry handling is the
// caller's concern, evaluated lazily on access.
type SessionStore interface {
	// Load fetches a session by id regardless of status
	Load(ctx context.Context, sessionID string) (*models.OnboardingSession, error)

	// FindActiveByPrincipal returns the principal's resumable session
	// (status active, paused, or abandoned), or nil when none exists.
	// Enforces "one active session per principal".
	FindActiveByPrincipal(ctx context.Context, principalID string) (*models.OnboardingSession, error)

	// Create inserts a fresh session for the principal at the first step
	Create(ctx context.Context, principalID string) (*models.OnboardingSession, error)

	// Save overwrites the session atomically, bumping updated_at and sliding
	// expires_at forward. Last-writer-wins at the session granularity,
	// field-merge at the form_data granularity; completed_steps are
	// de-duplicated by step id on insert.
	Save(ctx context.Context, session *models.OnboardingSession) (*models.OnboardingSession, error)

	// RecordError bumps the error counters without sliding the expiry;
	// a failed validation is not a successful mutation.
	RecordError(ctx context.Context, sessionID, message string) error

	// UpdateStatus applies an advisory status change (pause/resume/abandon)
	UpdateStatus(ctx context.Context, sessionID string, status constants.SessionStatus) error

	// Expire marks the session expired. Idempotent.
	Expire(ctx context.Context, sessionID string) error

	// Complete atomically flips the session to completed, running guard
	// inside the same critical section so collaborator side effects apply
	// at most once. When the session is already completed, guard is not
	// invoked and the call succeeds.
	Complete(ctx context.Context, sessionID string, guard func(*models.OnboardingSession) error) error

	// ExpireStale retires every resumable session past its expiry and
	// returns the number reclaimed. Used by the reaper; lazy expiry on
	// access does not depend on it.
	ExpireStale(ctx context.Context) (int64, error)
}
