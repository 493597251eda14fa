package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/utils"
)

// MemorySessionStore is the map-backed SessionStore used by tests and
// local development without a database. Semantics mirror SessionRepository.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.OnboardingSession
	ttl      time.Duration
	now      func() time.Time
}

// Ensure MemorySessionStore implements ports.SessionStore at compile time
var _ ports.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty store with the given TTL
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.OnboardingSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the time source (tests only)
func (s *MemorySessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load fetches a session by id regardless of status
func (s *MemorySessionStore) Load(ctx context.Context, sessionID string) (*models.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(session), nil
}

// FindActiveByPrincipal returns the principal's resumable session
func (s *MemorySessionStore) FindActiveByPrincipal(ctx context.Context, principalID string) (*models.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.OnboardingSession
	for _, session := range s.sessions {
		if session.PrincipalID != principalID || constants.IsTerminalStatus(session.Status) {
			continue
		}
		if latest == nil || session.StartedAt.After(latest.StartedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSession(latest), nil
}

// Create inserts a fresh session at the first step. Open sessions the
// principal already holds are retired first, matching the repository's
// one-resumable-session guarantee.
func (s *MemorySessionStore) Create(ctx context.Context, principalID string) (*models.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, existing := range s.sessions {
		if existing.PrincipalID == principalID && !constants.IsTerminalStatus(existing.Status) {
			existing.Status = constants.SessionStatusExpired
			existing.UpdatedAt = now
		}
	}
	session := &models.OnboardingSession{
		SessionID:      utils.GenerateSessionID(),
		PrincipalID:    principalID,
		CurrentStep:    constants.StepRoleSelection,
		CompletedSteps: []constants.StepID{},
		FormData:       models.FormData{},
		Status:         constants.SessionStatusActive,
		StartedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	s.sessions[session.SessionID] = session
	return cloneSession(session), nil
}

// Save overwrites the session, bumping updated_at and sliding expires_at
func (s *MemorySessionStore) Save(ctx context.Context, session *models.OnboardingSession) (*models.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.SessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", session.SessionID)
	}

	now := s.now()
	updated := cloneSession(session)
	updated.CompletedSteps = dedupSteps(updated.CompletedSteps)
	updated.UpdatedAt = now
	updated.ExpiresAt = now.Add(s.ttl)
	// Error counters stay authoritative in the store
	updated.ErrorCount = stored.ErrorCount
	updated.LastError = stored.LastError

	s.sessions[session.SessionID] = updated
	return cloneSession(updated), nil
}

// RecordError bumps the error counters without sliding the expiry
func (s *MemorySessionStore) RecordError(ctx context.Context, sessionID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	session.ErrorCount++
	session.LastError = &message
	return nil
}

// UpdateStatus applies an advisory status change
func (s *MemorySessionStore) UpdateStatus(ctx context.Context, sessionID string, status constants.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	session.Status = status
	session.UpdatedAt = s.now()
	return nil
}

// Expire marks the session expired. Idempotent.
func (s *MemorySessionStore) Expire(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if constants.IsTerminalStatus(session.Status) {
		return nil
	}
	session.Status = constants.SessionStatusExpired
	return nil
}

// Complete flips the session to completed with guard inside the lock
func (s *MemorySessionStore) Complete(ctx context.Context, sessionID string, guard func(*models.OnboardingSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if session.Status == constants.SessionStatusCompleted {
		return nil
	}

	if err := guard(cloneSession(session)); err != nil {
		return err
	}

	now := s.now()
	session.Status = constants.SessionStatusCompleted
	session.CompletedAt = &now
	session.UpdatedAt = now
	return nil
}

// ExpireStale retires every resumable session past its expiry
func (s *MemorySessionStore) ExpireStale(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var reclaimed int64
	for _, session := range s.sessions {
		if constants.IsTerminalStatus(session.Status) {
			continue
		}
		if session.IsExpired(now) {
			session.Status = constants.SessionStatusExpired
			reclaimed++
		}
	}
	return reclaimed, nil
}

// cloneSession deep-copies a session so callers never alias store state
func cloneSession(s *models.OnboardingSession) *models.OnboardingSession {
	out := *s
	out.CompletedSteps = append([]constants.StepID(nil), s.CompletedSteps...)
	out.FormData = make(models.FormData, len(s.FormData))
	for step, data := range s.FormData {
		copied := make(models.StepData, len(data))
		for k, v := range data {
			copied[k] = v
		}
		out.FormData[step] = copied
	}
	if s.SelectedRole != nil {
		role := *s.SelectedRole
		out.SelectedRole = &role
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.LastError != nil {
		msg := *s.LastError
		out.LastError = &msg
	}
	return &out
}
